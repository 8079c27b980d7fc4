package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/petcli/petcli/internal/command"
	"github.com/petcli/petcli/internal/config"
	"github.com/petcli/petcli/internal/pet"
)

func openStore() *pet.Store {
	cfg, err := config.Load()
	if err != nil {
		logger.Warn("config recovered with defaults", zap.Error(err))
	}
	store, err := pet.Open(config.Dir(), cfg.PetName)
	if err != nil {
		logger.Warn("state load failed, using defaults", zap.Error(err))
	}
	return store
}

func init() {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the pet's saved state",
	}

	stateCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show mood, last interaction and history size",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := openStore()
			store.Decay(time.Now())
			st := store.Snapshot()
			fmt.Printf("Name:       %s\n", st.Name)
			fmt.Println(command.FormatStats(st.Mood, st.LastInteraction, len(st.ChatHistory)))
			fmt.Printf("File:       %s\n", store.Path())
			return nil
		},
	})

	stateCmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete the saved chat history (mood and name are kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := openStore()
			n := store.HistoryLen()
			if err := store.Purge(); err != nil {
				return err
			}
			fmt.Printf("Purged %d exchanges\n", n)
			return nil
		},
	})

	rootCmd.AddCommand(stateCmd)
}
