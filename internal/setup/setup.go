// Package setup registers the lollipop MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
)

// DefaultServerName is the key the server is registered under
const DefaultServerName = "lollipop-layout"

// BinaryName is the MCP server executable
const BinaryName = "lollipop-mcp"

// ClientConfig represents the mcpServers section of a desktop client
// configuration file. Other top level keys are preserved.
type ClientConfig struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`
	other      map[string]json.RawMessage
}

// ServerEntry represents a single MCP server launch configuration.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// RegisterOptions contains options for Register.
type RegisterOptions struct {
	ConfigPath string // client config file, DefaultClientConfigPath when empty
	BinaryPath string // server executable, searched for when empty
	ServerName string
	Env        map[string]string
}

// DefaultClientConfigPath returns the desktop client's config file location.
func DefaultClientConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClientConfig reads a client config file. A missing file yields an
// empty config.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{MCPServers: make(map[string]ServerEntry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.other); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.other["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.other, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]ServerEntry)
	}
	return cfg, nil
}

// SaveClientConfig writes the config, creating its directory.
func SaveClientConfig(path string, cfg *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	doc := make(map[string]interface{}, len(cfg.other)+1)
	for k, v := range cfg.other {
		doc[k] = v
	}
	doc["mcpServers"] = cfg.MCPServers

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the lollipop server entry and returns the config
// file written.
func Register(opts RegisterOptions) (string, error) {
	path := opts.ConfigPath
	if path == "" {
		var err error
		if path, err = DefaultClientConfigPath(); err != nil {
			return "", err
		}
	}
	name := opts.ServerName
	if name == "" {
		name = DefaultServerName
	}

	binary := opts.BinaryPath
	if binary == "" {
		var err error
		if binary, err = findBinary(); err != nil {
			return "", fmt.Errorf("could not find server binary: %w", err)
		}
	} else if abs, err := filepath.Abs(binary); err == nil {
		binary = abs
	}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		return "", err
	}
	cfg.MCPServers[name] = ServerEntry{Command: binary, Env: opts.Env}

	if err := SaveClientConfig(path, cfg); err != nil {
		return "", err
	}
	return path, nil
}

// findBinary looks for the server executable on PATH and in common locations.
func findBinary() (string, error) {
	if path, err := exec.LookPath(BinaryName); err == nil {
		return path, nil
	}

	locations := []string{
		"./" + BinaryName,
		"./bin/" + BinaryName,
		filepath.Join(os.Getenv("HOME"), "go", "bin", BinaryName),
		"/usr/local/bin/" + BinaryName,
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			if abs, err := filepath.Abs(loc); err == nil {
				return abs, nil
			}
			return loc, nil
		}
	}

	return "", fmt.Errorf("binary '%s' not found in common locations", BinaryName)
}

// Status represents the registration state of the server.
type Status struct {
	ConfigPath string
	Registered bool
	Command    string
	Servers    []string
	Issues     []string
}

// GetStatus inspects a client config file for the named server.
func GetStatus(path, name string) (*Status, error) {
	if name == "" {
		name = DefaultServerName
	}
	cfg, err := LoadClientConfig(path)
	if err != nil {
		return nil, err
	}

	status := &Status{ConfigPath: path}
	for server := range cfg.MCPServers {
		status.Servers = append(status.Servers, server)
	}
	sort.Strings(status.Servers)

	entry, ok := cfg.MCPServers[name]
	if !ok {
		status.Issues = append(status.Issues, fmt.Sprintf("%s is not registered", name))
		return status, nil
	}
	status.Registered = true
	status.Command = entry.Command

	info, err := os.Stat(entry.Command)
	switch {
	case os.IsNotExist(err):
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	case err == nil && runtime.GOOS != "windows" && info.Mode()&0o111 == 0:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
	}
	return status, nil
}
