package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hoppxi/nightdisplay/internal/manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseReply(t *testing.T) {
	out, err := parseReply(`OK: {"activated":true}`)
	require.NoError(t, err)
	assert.Equal(t, `{"activated":true}`, out)

	_, err = parseReply("ERR: expected on|off")
	assert.EqualError(t, err, "expected on|off")

	_, err = parseReply("garbage")
	assert.Error(t, err)
}

func TestWriteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "nightdisplay.yaml")

	err := writeConfig(path, map[string]string{
		"user":                      "1234",
		"settings.backend":          "redis",
		"night_display.temperature": "3500",
		"metrics.listen":            "127.0.0.1:9100",
	})
	require.NoError(t, err)

	cfg, err := manager.NewConfigManager(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 1234, cfg.User)
	assert.Equal(t, "redis", cfg.Settings.Backend)
	assert.Equal(t, uint16(3500), cfg.NightDisplay.Temperature)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Listen)
	assert.Equal(t, "Night Display", cfg.Tile.Labels.Label)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# file, redis or memory")
}

func TestWriteConfigUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nightdisplay.yaml")
	err := writeConfig(path, map[string]string{"settings.nope": "x"})
	assert.ErrorContains(t, err, `unknown config key "settings.nope"`)
	assert.NoFileExists(t, path)
}

func TestSetValueRejectsMapping(t *testing.T) {
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("a:\n  b: 1\n"), &doc))
	assert.Error(t, setValue(&doc, []string{"a"}, "x"))
	require.NoError(t, setValue(&doc, []string{"a", "b"}, "2"))

	var out struct {
		A struct {
			B int `yaml:"b"`
		} `yaml:"a"`
	}
	require.NoError(t, doc.Decode(&out))
	assert.Equal(t, 2, out.A.B)
}

func TestExtractEmbed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, extractEmbed(dir))
	assert.FileExists(t, filepath.Join(dir, "nightdisplay.yaml"))
	assert.FileExists(t, filepath.Join(dir, "tile.yuck"))
}
