package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"comboboard/internal/config"
	"comboboard/internal/logging"
)

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath string
	envFile    string
	logLevel   string
	noAudio    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "comboboard",
		Short: "A soundboard driven by global arrow-key combos",
		Long: `comboboard listens to the keyboard globally. Type a combo of
slash and arrow keys, then press Enter: the bound sound plays or the
volume changes.

With no subcommand comboboard runs the board.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBoard(cmd, opts)
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("comboboard %s (built %s)\n", Version, BuildTime))

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default: first config.{toml,json,yaml} found)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "environment file loaded before the config")
	flags.StringVar(&opts.logLevel, "log-level", "", "override the configured log level")
	flags.BoolVar(&opts.noAudio, "no-audio", false, "do not open an audio device")

	root.AddCommand(
		newRunCmd(opts),
		newCombosCmd(opts),
		newCheckCmd(opts),
		newHistoryCmd(opts),
		newDevicesCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// path returns the config file to use. Without --config the first file
// found in the standard places wins, then the default path.
func (o *globalOptions) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	if p := config.FindConfigFile(); p != "" {
		return p
	}
	return config.ConfigPath()
}

// loader returns a config loader after reading the env file.
func (o *globalOptions) loader() (*config.Loader, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, err
	}
	return config.NewLoader(o.path()), nil
}

// load reads and validates the config.
func (o *globalOptions) load() (*config.Config, error) {
	l, err := o.loader()
	if err != nil {
		return nil, err
	}
	cfg, err := l.Load()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", l.Path(), err)
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg and the --log-level flag.
func (o *globalOptions) newLogger(cfg *config.Config, stderr io.Writer) (*logging.Logger, error) {
	lc := cfg.Logging
	if o.logLevel != "" {
		lc.Level = o.logLevel
	}

	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return nil, err
	}

	out := &logging.Config{
		Level:      level,
		Format:     format,
		Output:     lc.Output,
		FilePath:   cfg.LogPath(),
		MaxSize:    int64(lc.MaxSizeMB),
		MaxAge:     lc.MaxAgeDays,
		MaxBackups: lc.MaxBackups,
		Compress:   lc.Compress,
		Component:  "comboboard",
	}
	if lc.Output == "" || lc.Output == "stderr" {
		out.Writer = stderr
	}
	return logging.New(out)
}
