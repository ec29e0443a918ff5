package ui

// Config contains TUI-specific configuration.
type Config struct {
	// Document path shown in the status bar.
	Path string

	EnableMouse bool `env:"READALOUD_ENABLE_MOUSE"`
	ShowRoles   bool `env:"READALOUD_SHOW_ROLES"`

	// Outline width cap. 0 uses the terminal width.
	MaxWidth uint `env:"READALOUD_MAX_WIDTH" envDefault:"100"`

	// Speed change applied by + and -.
	SpeedStep float64 `env:"READALOUD_SPEED_STEP" envDefault:"0.25"`
}
