package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ConfigDirName is the directory under the user config root.
const ConfigDirName = "jobview"

// ConfigDir returns the platform-appropriate config directory.
//   - Windows: %APPDATA%\jobview
//   - Unix: ~/.config/jobview
func ConfigDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, ConfigDirName)
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", ConfigDirName)
	}
	return ""
}

// DefaultConfigPath returns the default INI config path.
func DefaultConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return "jobview.ini"
	}
	return filepath.Join(dir, "config")
}

// LogDirectory is where the explorer writes its log while it owns the terminal.
func LogDirectory() string {
	dir := ConfigDir()
	if dir == "" {
		return filepath.Join(os.TempDir(), "jobview-logs")
	}
	return filepath.Join(dir, "logs")
}

// EnsureLogDirectory creates the log directory with owner-only permissions.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}

// ReadTokenFile reads an API key from a file containing only the key.
// It warns on stderr if the file is readable by group or others.
func ReadTokenFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat token file: %w", err)
	}

	if runtime.GOOS != "windows" {
		if mode := info.Mode().Perm(); mode&0077 != 0 {
			fmt.Fprintf(os.Stderr, "Warning: Token file %s has insecure permissions %04o. Consider using 'chmod 600 %s'\n", path, mode, path)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file is empty")
	}
	return token, nil
}
