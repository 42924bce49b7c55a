package setup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBinary(t *testing.T, dir string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, BinaryName)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), mode))
	return path
}

func TestLoadClientConfig_Missing(t *testing.T) {
	cfg, err := LoadClientConfig(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Empty(t, cfg.MCPServers)
}

func TestLoadClientConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err := LoadClientConfig(path)
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	dir := t.TempDir()
	binary := fakeBinary(t, dir, 0o755)
	path := filepath.Join(dir, "client", "config.json")

	existing := `{"theme": "dark", "mcpServers": {"other": {"command": "/bin/other"}}}`
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

	written, err := Register(RegisterOptions{
		ConfigPath: path,
		BinaryPath: binary,
		Env:        map[string]string{"LOLLIPOP_LOGGING_LEVEL": "debug"},
	})
	require.NoError(t, err)
	assert.Equal(t, path, written)

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	require.Contains(t, cfg.MCPServers, DefaultServerName)
	assert.Equal(t, binary, cfg.MCPServers[DefaultServerName].Command)
	assert.Equal(t, "debug", cfg.MCPServers[DefaultServerName].Env["LOLLIPOP_LOGGING_LEVEL"])
	assert.Equal(t, "/bin/other", cfg.MCPServers["other"].Command)

	// unrelated keys survive the rewrite
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "dark", doc["theme"])
}

func TestGetStatus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	status, err := GetStatus(path, "")
	require.NoError(t, err)
	assert.False(t, status.Registered)
	assert.Len(t, status.Issues, 1)

	_, err = Register(RegisterOptions{ConfigPath: path, BinaryPath: fakeBinary(t, dir, 0o755)})
	require.NoError(t, err)
	status, err = GetStatus(path, "")
	require.NoError(t, err)
	assert.True(t, status.Registered)
	assert.Empty(t, status.Issues)
	assert.Equal(t, []string{DefaultServerName}, status.Servers)

	_, err = Register(RegisterOptions{ConfigPath: path, BinaryPath: filepath.Join(dir, "gone"), ServerName: "stale"})
	require.NoError(t, err)
	status, err = GetStatus(path, "stale")
	require.NoError(t, err)
	assert.True(t, status.Registered)
	require.Len(t, status.Issues, 1)
	assert.Contains(t, status.Issues[0], "not found")
}

func TestDefaultClientConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	path, err := DefaultClientConfigPath()
	if err != nil {
		t.Skip(err)
	}
	assert.Equal(t, "claude_desktop_config.json", filepath.Base(path))
}
