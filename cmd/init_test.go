package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// chdirTemp switches into a fresh directory for the duration of the test.
func chdirTemp(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	originalWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(originalWD)) })

	return dir
}

func executeInit(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	cmd.AddCommand(newInitCmd())

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"init"}, args...))

	err := cmd.Execute()

	return out.String(), err
}

func readConfig(t *testing.T, path string) map[string]any {
	t.Helper()

	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(contents, &doc))

	return doc
}

func TestInitCmd_WritesFaultlineSettings(t *testing.T) {
	dir := chdirTemp(t)

	viper.Set(openAIAPIKeyKey, "sk-not-for-disk")
	t.Cleanup(func() { viper.Set(openAIAPIKeyKey, "") })

	out, err := executeInit(t)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+filepath.Join(configFolderPath, configFileName))

	doc := readConfig(t, filepath.Join(dir, configFileName))

	run, ok := doc["run"].(map[string]any)
	require.True(t, ok, "run section missing: %v", doc)
	assert.Equal(t, defaultFormula, run["formula"])
	assert.Equal(t, int(defaultBuildTimeout.Seconds()), run["build_timeout"])

	predicates, ok := doc["predicates"].(map[string]any)
	require.True(t, ok, "predicates section missing: %v", doc)
	assert.Equal(t, defaultPredicateSource, predicates["source"])
	assert.Equal(t, defaultTopK, predicates["top_k"])

	openAI, ok := predicates["openai"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, defaultOpenAIModel, openAI["model"])
	assert.NotContains(t, openAI, "api_key")

	assert.Equal(t, currentConfigVersion, doc[configVersionKey])
}

func TestInitCmd_ExistingFile(t *testing.T) {
	t.Run("kept without --force", func(t *testing.T) {
		dir := chdirTemp(t)
		targetPath := filepath.Join(dir, configFileName)
		require.NoError(t, os.WriteFile(targetPath, []byte("run:\n  formula: dstar\n"), 0o644))

		_, err := executeInit(t)
		require.Error(t, err)

		contents, err := os.ReadFile(targetPath)
		require.NoError(t, err)
		assert.Equal(t, "run:\n  formula: dstar\n", string(contents))
	})

	t.Run("replaced with --force", func(t *testing.T) {
		dir := chdirTemp(t)
		targetPath := filepath.Join(dir, configFileName)
		require.NoError(t, os.WriteFile(targetPath, []byte("stale: true\n"), 0o644))

		_, err := executeInit(t, "--force")
		require.NoError(t, err)

		doc := readConfig(t, targetPath)
		assert.NotContains(t, doc, "stale")
		assert.Contains(t, doc, "run")
	})
}
