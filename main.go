// Package main provides the entry point for the readaloud CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/remote"
	"github.com/dgnsrekt/readaloud/internal/source"
	"github.com/dgnsrekt/readaloud/readaloud"
	"github.com/dgnsrekt/readaloud/ui"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	envFiles   []string
	engine     string
	listen     string
	autoPlay   bool
	headless   bool
	mouse      bool

	// cfg is loaded in PersistentPreRunE and used by every command.
	cfg config.Config

	rootCmd = &cobra.Command{
		Use:   "readaloud FILE",
		Short: "Read documents aloud in the terminal",
		Long: paragraph(
			fmt.Sprintf("\nRead Markdown, XHTML, PDF, DOCX and guided navigation documents %s, with synchronized highlighting.", keyword("aloud")),
		),
		Example:          paragraph("readaloud book.md\nreadaloud --engine piper --listen :8377 chapter.xhtml"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.ExactArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if err := config.LoadEnvFiles(envFiles...); err != nil {
		return err
	}
	if configFile != "" {
		viper.SetConfigFile(expandPath(configFile))
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	var err error
	cfg, err = config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	// Flags win over the file and the environment.
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = viper.GetString("log_level")
	}
	if cmd.Flags().Changed("engine") {
		cfg.Speech.Engine = engine
	}
	if cmd.Flags().Changed("listen") {
		cfg.Remote.Listen = listen
	}
	if cmd.Flags().Changed("play") {
		cfg.Playback.AutoPlay = autoPlay
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)
	return nil
}

func execute(cmd *cobra.Command, args []string) error {
	path := expandPath(args[0])
	if !source.Supported(path) {
		return fmt.Errorf("unsupported document %s, expected one of %v", filepath.Base(path), source.Extensions())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cfg, path)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Error("error closing session", "err", err)
		}
	}()

	if used := viper.ConfigFileUsed(); used != "" {
		if err := config.Watch(ctx, used, s.reload); err != nil {
			log.Warn("config changes will not be applied", "err", err)
		}
	}

	errc := make(chan error, 1)
	if cfg.Remote.Listen != "" {
		srv := remote.NewServer(s.nav,
			remote.WithMetrics(s.metrics.Handler()),
			remote.WithAllowedOrigins(cfg.Remote.AllowedOrigins),
		)
		go func() { errc <- srv.Serve(ctx, cfg.Remote.Listen) }()
	}

	if headless || !term.IsTerminal(int(os.Stdout.Fd())) {
		return runHeadless(ctx, s, errc)
	}
	return runTUI(path, s)
}

// runHeadless plays until the document ends, the remote server fails or the
// process is interrupted.
func runHeadless(ctx context.Context, s *session, errc <-chan error) error {
	if err := s.nav.Play(); err != nil {
		return err
	}
	updates, unsubscribe := s.nav.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if err != nil {
				return fmt.Errorf("remote control failed: %w", err)
			}
			return nil
		case p, ok := <-updates:
			if !ok {
				return nil
			}
			log.Debug("playback", "condition", p.Condition, "node", p.Node, "index", p.Index)
			if p.Condition == readaloud.Failure && p.Err != nil {
				log.Error("playback failed", "node", p.Node, "err", p.Err)
			}
			if p.Condition == readaloud.Ended && cfg.Remote.Listen == "" {
				return nil
			}
		}
	}
}

func runTUI(path string, s *session) error {
	// Read environment to get interface settings
	uicfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	uicfg.Path = filepath.Base(path)
	if mouse {
		uicfg.EnableMouse = true
	}

	// Run Bubble Tea program
	if _, err := ui.NewProgram(uicfg, s.nav).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func expandPath(path string) string {
	s, err := homedir.Expand(path)
	if err == nil {
		return os.ExpandEnv(s)
	}
	return os.ExpandEnv(path)
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "load environment variables from these files (default .env)")
	rootCmd.PersistentFlags().StringVarP(&engine, "engine", "e", "", "speech engine: piper, gtts, google or mock")
	rootCmd.Flags().StringVarP(&listen, "listen", "l", "", "serve the remote control API on this address, e.g. :8377")
	rootCmd.Flags().BoolVarP(&autoPlay, "play", "p", false, "start reading immediately")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "read without the interface")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")

	rootCmd.PersistentFlags().String("log-level", "info", "debug, info, warn or error")

	// Config bindings
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(configCmd, manCmd, outlineCmd, searchCmd, listCmd, voicesCmd, cacheCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	dirs := config.Dirs()
	if len(dirs) == 0 {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.FileName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("readaloud")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	configFile = filepath.Join(dirs[0], config.FileName+".yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
