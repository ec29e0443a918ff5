package config

import (
	"errors"
	"os"
	"path/filepath"

	gap "github.com/muesli/go-app-paths"
)

// AppName names the config, cache and log directories.
const AppName = "readaloud"

// FileName is the config file name, without extension.
const FileName = "readaloud"

// Dirs returns the directories searched for the config file, most specific
// first.
func Dirs() []string {
	scope := gap.NewScope(gap.User, AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		dirs = nil
	}
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, AppName)}, dirs...)
	}
	if c := os.Getenv("READALOUD_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return dirs
}

// DefaultPath is where the config command creates the file.
func DefaultPath() (string, error) {
	dirs := Dirs()
	if len(dirs) == 0 {
		return "", errors.New("could not find a configuration directory")
	}
	return filepath.Join(dirs[0], FileName+".yml"), nil
}

// CacheDir is the default directory of the synthesis cache.
func CacheDir() (string, error) {
	dir, err := gap.NewScope(gap.User, AppName).CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "speech"), nil
}

// LogPath is the log file of the interactive session.
func LogPath() (string, error) {
	dir, err := gap.NewScope(gap.User, AppName).CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName+".log"), nil
}
