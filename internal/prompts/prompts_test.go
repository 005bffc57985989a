package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, dir, name, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".txt"), []byte(text), 0o644))
}

func TestLoader_RenderSubstitutesVariables(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "greeting", "Write a {{mood}} greeting for {{name}}.")

	out, err := NewLoader(dir).Render("greeting", map[string]string{
		"mood": "cheerful",
		"name": "the household",
	})
	require.NoError(t, err)
	assert.Equal(t, "Write a cheerful greeting for the household.", out)
}

func TestLoader_RenderFailsOnMissingVariable(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "greeting", "Hello {{name}}, the time is {{time}}.")

	_, err := NewLoader(dir).Render("greeting", map[string]string{"name": "world"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "time")
}

func TestLoader_UnusedVariablesIgnored(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "plain", "No placeholders here.")

	out, err := NewLoader(dir).Render("plain", map[string]string{"extra": "value"})
	require.NoError(t, err)
	assert.Equal(t, "No placeholders here.", out)
}

func TestLoader_MissingTemplate(t *testing.T) {
	_, err := NewLoader(t.TempDir()).Load("nope")
	assert.Error(t, err)
}

func TestLoader_CachesTemplates(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "cached", "v1 {{x}}")

	loader := NewLoader(dir)
	_, err := loader.Load("cached")
	require.NoError(t, err)

	// The file changes on disk but the cached text is served.
	writeTemplate(t, dir, "cached", "v2 {{x}}")
	out, err := loader.Render("cached", map[string]string{"x": "!"})
	require.NoError(t, err)
	assert.Equal(t, "v1 !", out)
}
