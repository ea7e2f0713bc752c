package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/voicebridge/voicebridge/cmd/voicebridge/internal/config"
)

var (
	// Global flags
	verbose bool

	// Settings store, opened lazily so commands that never touch it
	// (version, help) work even when the config directory is unavailable.
	store    *config.Store
	storeErr error
)

var rootCmd = &cobra.Command{
	Use:   "voicebridge",
	Short: "Bidirectional realtime speech translation",
	Long: `voicebridge - a realtime two-way translation session in your terminal.

The session infers the language pair from whatever is spoken: the first
utterance fixes the main language, answering in the other language swaps
the direction, and a third language replaces the target.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/voicebridge/
  Linux:   ~/.config/voicebridge/
  Windows: %AppData%/voicebridge/

Examples:
  # Create a context and configure the bridge
  voicebridge config add-context dev
  voicebridge config set dev credential_url https://api.example.com/credentials
  voicebridge config set dev signal_url https://api.example.com/signal
  voicebridge config use-context dev

  # Run a session
  voicebridge run`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(openStore, initLogging)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func openStore() {
	store, storeErr = config.Open()
}

func initLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// getStore returns the settings store, retrying the open in case the
// config directory became available after init.
func getStore() (*config.Store, error) {
	if store == nil {
		if storeErr != nil {
			return nil, fmt.Errorf("settings not available: %w", storeErr)
		}
		openStore()
		if storeErr != nil {
			return nil, fmt.Errorf("settings not available: %w", storeErr)
		}
	}
	return store, nil
}
