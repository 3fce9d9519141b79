// Package paths provides sudo-aware path resolution for jellyrename.
//
// When running with sudo, these functions resolve paths to the original
// user's directories (via SUDO_USER) instead of root's directories.
package paths

import (
	"os"
	"os/user"
	"path/filepath"
)

const appName = "jellyrename"

// UserHomeDir returns the home directory of the actual user.
// If running with sudo, returns the SUDO_USER's home directory, not root's.
func UserHomeDir() (string, error) {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" && sudoUser != "root" {
		u, err := user.Lookup(sudoUser)
		if err == nil {
			return u.HomeDir, nil
		}
	}
	return os.UserHomeDir()
}

// UserConfigDir returns the config directory of the actual user.
// XDG_CONFIG_HOME wins when set, otherwise ~/.config.
func UserConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && os.Getenv("SUDO_USER") == "" {
		return xdg, nil
	}
	homeDir, err := UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config"), nil
}

// AppDir returns ~/.config/jellyrename for the actual user.
func AppDir() (string, error) {
	configDir, err := UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

func inAppDir(elem ...string) (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{dir}, elem...)...), nil
}

// DatabasePath returns the path to the rename history database.
func DatabasePath() (string, error) {
	return inAppDir("history.db")
}

// ConfigPath returns the path to config.toml.
func ConfigPath() (string, error) {
	return inAppDir("config.toml")
}

// LogPath returns the default log file.
func LogPath() (string, error) {
	return inAppDir("logs", appName+".log")
}

// LockPath returns the lock file that serializes batches across processes.
func LockPath() (string, error) {
	return inAppDir(appName + ".lock")
}
