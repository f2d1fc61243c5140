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

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show detailed migration history",
	Long: `Show migration history with timestamps, execution times, and user information.

Examples:
  kbmigrate history                  # Show all migration history
  kbmigrate history --limit 10       # Show last 10 migrations
`,
	Run: func(cmd *cobra.Command, args []string) {
		pool, err := database.GetPool()
		if err != nil {
			fmt.Printf("❌ Error connecting to database: %v\n", err)
			os.Exit(1)
		}

		history, err := registry.History(context.Background(), pool, historyLimit)
		if err != nil {
			fmt.Printf("❌ Error getting migration history: %v\n", err)
			os.Exit(1)
		}

		if len(history) == 0 {
			fmt.Println("📋 No migration history found")
			return
		}

		showMigrationHistory(history)
	},
}

func showMigrationHistory(history []registry.Record) {
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	blue := color.New(color.FgBlue, color.Bold)

	fmt.Println("📋 Migration History")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Printf("%-8s %-16s %-28s %-12s %s\n", "Status", "Version", "Name", "Duration", "Date")
	fmt.Println(strings.Repeat("-", 72))

	successCount := 0
	failedCount := 0

	for _, r := range history {
		var status string
		switch r.Status {
		case "success":
			status = green.Sprint("✅")
			successCount++
		case "failed":
			status = red.Sprint("❌")
			failedCount++
		default:
			status = yellow.Sprint("⚠️")
		}

		duration := "N/A"
		if r.ExecutionTime > 0 {
			duration = r.ExecutionTime.String()
		}

		name := r.Name
		if len(name) > 26 {
			name = name[:23] + "..."
		}

		fmt.Printf("%-8s %-16s %-28s %-12s %s\n",
			status,
			blue.Sprint(r.Version),
			name,
			duration,
			r.ExecutedAt.Format("2006-01-02 15:04"),
		)

		if r.Status == "failed" && r.ErrorMessage != "" {
			red.Printf("         💥 %s\n", r.ErrorMessage)
		}
	}

	fmt.Println(strings.Repeat("-", 72))
	fmt.Printf("📊 Summary: %d total, %d successful, %d failed\n", len(history), successCount, failedCount)
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 0, "Limit number of records to show (0 = all)")
}
