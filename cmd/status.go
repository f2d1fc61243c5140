package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/callact/kbmigrate/database"
	"github.com/callact/kbmigrate/inspect"
	"github.com/callact/kbmigrate/migrations"
	"github.com/callact/kbmigrate/runner"
)

var statusTable string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Long: `Show applied and pending migrations, or the live column layout of a
migrated table.

Examples:
  kbmigrate status
  kbmigrate status --table service_guide_documents
`,
	Run: func(cmd *cobra.Command, args []string) {

		if statusTable != "" {
			if err := showTableColumns(statusTable); err != nil {
				fmt.Println("❌ Status error:", err)
				os.Exit(1)
			}
			return
		}

		applied, pending, failed, err := runner.Status(migrations.Default())
		if err != nil {
			fmt.Println("❌ Status error:", err)
			os.Exit(1)
		}

		fmt.Println("✅ Applied migrations:")
		for _, u := range applied {
			fmt.Println("   -", u)
		}

		if len(failed) > 0 {
			fmt.Println("\n❌ Failed migrations:")
			for _, f := range failed {
				fmt.Printf("   - %s %s: %s\n", f.Version, f.Name, f.ErrorMessage)
			}
		}

		fmt.Println("\n🕒 Pending migrations:")
		for _, u := range pending {
			fmt.Println("   -", u)
		}
	},
}

// showTableColumns prints the live column layout of a table as the database
// reports it, so an operator can verify what a migration actually produced.
func showTableColumns(table string) error {
	pool, err := database.GetPool()
	if err != nil {
		return fmt.Errorf("get connection pool: %v", err)
	}

	ins := inspect.NewCatalogInspector(pool)
	columns, err := ins.TableColumns(context.Background(), table)
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		return fmt.Errorf("table %q not found", table)
	}

	fmt.Printf("📋 Columns of %s\n", table)
	fmt.Println(strings.Repeat("-", 72))
	for _, col := range columns {
		fmt.Println("   " + columnLine(col))
	}
	fmt.Println(strings.Repeat("-", 72))
	fmt.Printf("📊 %d columns\n", len(columns))
	return nil
}

func columnLine(col inspect.ExistingColumn) string {
	nullability := "NOT NULL"
	if col.IsNullable {
		nullability = "NULL"
	}
	line := fmt.Sprintf("%-28s %-28s %-8s", col.ColumnName, col.DataType, nullability)
	if col.ColumnDefault != nil {
		line += " DEFAULT " + *col.ColumnDefault
	}
	return line
}

func init() {
	statusCmd.Flags().StringVar(&statusTable, "table", "", "Show the live column layout of this table instead of the migration status")
}
