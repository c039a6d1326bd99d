package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maskline/numsync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "numsync",
	Short: "Keep the local phone-number inventory in sync with Twilio",
	Long:  "Reconciles the local numbers and messaging-services tables against Twilio, reports drift, and pushes local enrollment truth back where that is safe.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
