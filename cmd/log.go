package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/callact/kbmigrate/database"
	"github.com/callact/kbmigrate/registry"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent migration activities",
	Long: `Show recent migration activities from the durable activity log.

Examples:
  kbmigrate log                  # Show recent migration logs
  kbmigrate log --limit 20       # Show last 20 log entries
`,
	Run: func(cmd *cobra.Command, args []string) {
		pool, err := database.GetPool()
		if err != nil {
			fmt.Printf("❌ Error connecting to database: %v\n", err)
			os.Exit(1)
		}

		logs, err := registry.Logs(context.Background(), pool, logLimit)
		if err != nil {
			fmt.Printf("❌ Error getting migration logs: %v\n", err)
			os.Exit(1)
		}

		if len(logs) == 0 {
			fmt.Println("📋 No migration logs found")
			return
		}

		showMigrationLogs(logs)
	},
}

func showMigrationLogs(logs []registry.ActivityLog) {
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	blue := color.New(color.FgBlue, color.Bold)
	cyan := color.New(color.FgCyan)

	fmt.Println("📋 Recent Migration Activities")
	fmt.Println(strings.Repeat("=", 60))

	for i, l := range logs {
		fmt.Printf("\n%d. ", i+1)

		switch l.Level {
		case "INFO":
			blue.Print("ℹ️  ")
		case "ERROR":
			red.Print("❌ ")
		case "SUCCESS":
			green.Print("✅ ")
		default:
			fmt.Print("📝 ")
		}

		cyan.Printf("[%s] ", l.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Printf("%s", l.Message)
		if l.User != "" {
			fmt.Printf(" (by %s)", l.User)
		}
		fmt.Println()

		if l.Details != "" {
			cyan.Printf("   📄 Details: %s\n", l.Details)
		}
	}

	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("📊 Showing %d recent log entries\n", len(logs))
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "l", 50, "Limit number of log entries to show")
}
