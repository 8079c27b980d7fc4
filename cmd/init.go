package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/petcli/petcli/internal/config"
)

func init() {
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config to the config directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path()
			if _, err := os.Stat(path); err == nil && !force {
				fmt.Println("Exists", path)
				return nil
			}
			if err := config.Write(config.Default()); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Println("Created", path)
			fmt.Println("✅ PetCLI initialized at", config.Dir())
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")
	rootCmd.AddCommand(initCmd)
}
