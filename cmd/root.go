package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/petcli/petcli/internal/config"
	"github.com/petcli/petcli/internal/logging"
)

var (
	homeDir          string
	debug            bool
	providerOverride string
	logger           *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "petcli",
	Short: "PetCLI: a terminal pet that comments on your shell habits",
	Long: `PetCLI is a small terminal companion whose mood drifts over time.

Chat with it and it answers through an LLM (OpenAI or a local Ollama server),
peeking at your recent shell history for tips. When the backend is down it
still answers, just less eloquently.

Quick Start:
  petcli init                     # write ~/.config/petcli/config.yaml
  petcli                          # start chatting
  petcli --provider ollama        # use a local Ollama server

Session commands:
  /stats /clear /purge /help /exit`,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if homeDir != "" {
			config.SetDir(homeDir)
		}
		var err error
		logger, err = logging.New(config.Dir(), debug)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "Config directory (default: $PETCLI_HOME or ~/.config/petcli)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Write debug logs to petcli.log")
	rootCmd.Flags().StringVarP(&providerOverride, "provider", "p", "", "LLM provider for this session: openai or ollama")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
