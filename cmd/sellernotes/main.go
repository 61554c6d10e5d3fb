package main

import (
	"os"

	"github.com/boddenberg/sellernotes-bot-go/internal/config"

	"github.com/spf13/cobra"
)

var envFile string

func main() {
	root := &cobra.Command{
		Use:   "sellernotes",
		Short: "Seller notes bot: records customer contacts through a chat",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// --- Load .env file (for local development) ---
			return config.LoadDotEnv(envFile)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(serveCmd())
	root.AddCommand(chatCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
