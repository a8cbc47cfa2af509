package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "ecocash-cli",
		Short:   "Start and follow EcoCash checkout payments against the gateway service",
		Version: Version,
	}

	rootCmd.PersistentFlags().String("server", envOr("ECOCASH_GATEWAY_URL", "http://localhost:8080"), "Gateway service base URL")

	rootCmd.AddCommand(payCmd())
	rootCmd.AddCommand(waitCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
