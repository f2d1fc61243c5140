package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kbmigrate",
	Short: "Idempotent schema migrations for the consultation knowledge base",
	Long: `kbmigrate manages the PostgreSQL + pgvector schema of the consultation
knowledge base and provisions its inference backend.

Examples:

  kbmigrate migrate
  kbmigrate status
  kbmigrate seed
  kbmigrate provision --config provision.yaml
`,
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("❌", err)
		os.Exit(1)
	}
}

// Register subcommands
func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(provisionCmd)
}
