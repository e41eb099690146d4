package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const forceFlagName = "force"

// secretConfigKeys are never written to disk; set them through FAULTLINE_* variables.
var secretConfigKeys = map[string]struct{}{
	openAIAPIKeyKey: {},
}

// initCmd represents the init command.
var initCmd = newInitCmd()

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write faultline.yaml with the current run, predicate and log settings",
		Long: `Create faultline.yaml in the current directory from the effective settings:
built-in defaults, an existing config file and FAULTLINE_* environment variables.
Secrets such as predicates.openai.api_key are left out of the file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			targetPath := filepath.Join(configFolderPath, configFileName)

			if err := writeConfig(targetPath, force); err != nil {
				return err
			}

			cmd.Printf("wrote %s\n", targetPath)

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, forceFlagName, false, "overwrite an existing "+configFileName)

	return cmd
}

// writeConfig stores every non-secret setting at path. Without force an
// existing file is an error.
func writeConfig(path string, force bool) error {
	out := viper.New()
	out.SetConfigType("yaml")

	for _, key := range viper.AllKeys() {
		if _, secret := secretConfigKeys[key]; secret {
			continue
		}

		out.Set(key, viper.Get(key))
	}

	write := out.SafeWriteConfigAs
	if force {
		write = out.WriteConfigAs
	}

	if err := write(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(initCmd)
}
