package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# debug, info, warn or error
log_level: "info"

playback:
  # language used for text without one, e.g. "en-US" (default: the
  # document language, then English)
  # language: "en"
  # 0.25 to 4, 1 is natural speed
  speed: 1.0
  pitch: 1.0
  # preferred voice per language
  # voices:
  #   en: "en_US-lessac-medium"
  #   fr-CA: "fr-CA-Standard-A"
  # roles skipped by skip forward/backward (default: notes, asides,
  # page breaks, lists of illustrations and tables, ...)
  # skippable_roles: ["aside", "footnote", "pagebreak"]
  # roles escape jumps out of
  # escapable_roles: ["aside", "figure", "table"]
  read_continuously: true
  # start reading as soon as the document is open
  auto_play: false

speech:
  # piper, gtts, google or mock
  engine: "mock"
  # longer utterances are split at sentence boundaries
  max_chars: 1000
  piper:
    binary: "piper"
    # model: "~/.local/share/piper/en_US-lessac-medium.onnx"
    timeout: "30s"
  gtts:
    binary: "gtts-cli"
    slow: false
    requests_per_minute: 50
    timeout: "30s"
  google:
    # credentials come from GOOGLE_APPLICATION_CREDENTIALS
    # language_filter: "en"

audio:
  sample_rate: 44100
  channels: 2
  buffer_size: 4096
  # 0 to 1
  volume: 1.0
  # drop audio instead of opening a device
  discard: false

cache:
  enabled: true
  # dir: "~/.cache/readaloud/speech"
  memory_capacity: 67108864
  disk_capacity: 1073741824
  # zstd level, 0 disables compression
  compression_level: 3
  ttl: "168h"
  cleanup_interval: "1h"

remote:
  # serve the remote control API, e.g. ":8377"
  listen: ""
  # browser origins allowed to connect (default: the server's own host)
  # allowed_origins: ["localhost:3000"]
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the readaloud config file",
	Long:    paragraph(fmt.Sprintf("\n%s the readaloud config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("readaloud config\nreadaloud config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	// A broken config file must stay editable.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("readaloud", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		if _, err := config.LoadFile(configFile); err != nil {
			fmt.Println(subtle("Warning: " + err.Error()))
		}
		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
	}
	if configFile == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		configFile = p
	}
	configFile = expandPath(configFile)

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
