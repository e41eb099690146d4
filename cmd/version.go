package cmd

import (
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"faultline.dev/pkg/faultline/internal/domain"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the faultline build and the formulas it ranks with",
		Long: `Print the faultline module version, the Go toolchain and VCS revision it was
built from, and the suspiciousness formulas accepted by --formula.`,
		Run: func(cmd *cobra.Command, _ []string) {
			info, _ := debug.ReadBuildInfo()

			for _, line := range versionLines(info) {
				cmd.Println(line)
			}
		},
	}
}

// versionLines renders build metadata; a nil info yields an unknown version.
func versionLines(info *debug.BuildInfo) []string {
	version, goVersion := "unknown", "unknown"

	var revision string

	modified := false

	if info != nil {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			version = v
		}

		if info.GoVersion != "" {
			goVersion = info.GoVersion
		}

		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				revision = s.Value
			case "vcs.modified":
				modified = s.Value == "true"
			}
		}
	}

	lines := []string{
		"faultline\t" + version,
		"go\t\t" + goVersion,
	}

	if revision != "" {
		if len(revision) > 12 {
			revision = revision[:12]
		}

		if modified {
			revision += " (modified)"
		}

		lines = append(lines, "revision\t"+revision)
	}

	return append(lines,
		"formulas\t"+strings.Join(domain.FormulaNames(), ", "),
		"default\t\t"+domain.DefaultFormula,
	)
}

// versionCmd represents the version command.
var versionCmd = newVersionCmd()

func init() {
	rootCmd.AddCommand(versionCmd)
}
