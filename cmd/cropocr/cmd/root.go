package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/cropocr/internal/config"
	"github.com/MeKo-Tech/cropocr/internal/version"
)

// app is the state shared by one command tree: its viper instance, the
// loaded configuration and the --config path.
type app struct {
	loader  *config.Loader
	config  *config.Config
	cfgFile string
}

// flagBinding maps a command-line flag to a configuration key.
type flagBinding struct {
	flag string
	key  string
}

// NewRootCommand builds the complete command tree with its own
// configuration state.
func NewRootCommand() *cobra.Command {
	a := &app{loader: config.NewLoaderWithViper(viper.New())}

	rootCmd := &cobra.Command{
		Use:   "cropocr",
		Short: "Region OCR for annotated shipping labels",
		Long: `cropocr crops user-annotated regions out of an uploaded image, reads each
region through an OCR service and returns one row of cleaned field texts.

Regions are marked on a display canvas (a resized copy of the image) either
as groups of clicked points or as dragged rectangles, following a layout.
Coordinates are rescaled to the original image before cropping.

Examples:
  cropocr canvas label.jpg --output display.jpg
  cropocr extract label.jpg --annotations canvas.json
  cropocr extract label.jpg --annotations canvas.json --layout rect2 --format csv
  cropocr serve --port 8080`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			setupLogging(cmd, a.config)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/cropocr, /etc/cropocr)")
	flags.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.StringP("layout", "l", "", "region layout (default from config: points3)")
	flags.String("layouts-file", "", "YAML file with additional layouts")
	a.bind(flags.Lookup, []flagBinding{
		{"verbose", "verbose"},
		{"log-level", "log_level"},
		{"layout", "layout"},
		{"layouts-file", "layouts_file"},
	})

	rootCmd.AddCommand(
		newExtractCommand(a),
		newBatchCommand(a),
		newPreviewCommand(a),
		newCanvasCommand(a),
		newLayoutsCommand(a),
		newServeCommand(a),
		newConfigCommand(a),
	)
	return rootCmd
}

// Execute runs the root command and exits non-zero on error.
// This is called by main.main().
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		os.Exit(1)
	}
}

// GetRootCommand returns a fresh root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return NewRootCommand()
}

// bind registers flags as configuration sources. Flags only override the
// file and environment when set explicitly.
func (a *app) bind(lookup func(string) *pflag.Flag, bindings []flagBinding) {
	v := a.loader.GetViper()
	for _, b := range bindings {
		if err := v.BindPFlag(b.key, lookup(b.flag)); err != nil {
			panic(fmt.Sprintf("bind flag %q: %v", b.flag, err))
		}
	}
}

// load reads the configuration once per command tree.
func (a *app) load() error {
	if a.config != nil {
		return nil
	}
	var err error
	if a.cfgFile != "" {
		a.config, err = a.loader.LoadWithFile(a.cfgFile)
	} else {
		a.config, err = a.loader.Load()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	return nil
}

// setupLogging installs the JSON slog handler. Logs go to stderr so stdout
// carries only command output.
func setupLogging(cmd *cobra.Command, cfg *config.Config) {
	var logLevel slog.Level
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}

	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}
