// Command server runs the flash-quiz web app and its offline helpers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flash-quiz/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "flash-quiz",
	Short: "Turn study notes into flashcards and a quiz with a local model",
	Long: `flash-quiz sends uploaded notes to a locally hosted model, parses the
reply into flashcards and a four-option quiz, and serves them as pages and
JSON endpoints for a lesson-based study game.

Run without a subcommand to start the server.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./flash-quiz.yaml when present)")
	rootCmd.Flags().String("port", "", "listen port (overrides PORT)")
}

// loadConfig reads configuration honoring the --config flag.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	return config.Load(file)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
