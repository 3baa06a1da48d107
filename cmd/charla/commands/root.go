package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/satriahrh/charla/internal/config"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "charla",
	Short: "Spanish conversation practice",
	Long: `charla - practice Spanish conversation with an AI partner.

Each turn you speak or type in Spanish, charla shows what it understood and
an English translation, then answers out loud in Spanish.

Configuration is read from a .env file, an optional YAML file (--config) and
the environment. Provider keys: OPENAI_API_KEY, GEMINI_API_KEY,
ELEVEN_LABS_API_KEY, GOOGLE_APPLICATION_CREDENTIALS.

Examples:
  # Type your turns
  charla chat

  # Speak your turns: ENTER to start recording, ENTER to stop
  charla chat --mode voice

  # Serve the web API on :8080
  charla serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// newLogger returns a production logger, or a development one with
// --verbose. Interactive commands only log warnings unless verbose.
func newLogger(interactive bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	if interactive {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return cfg.Build()
}
