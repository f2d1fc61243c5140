package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/callact/kbmigrate/database"
)

var healthTimeout time.Duration

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check database connectivity",
	Long: `Check if the database is accessible and responsive.

Examples:
  kbmigrate health                  # Check default database connection
  kbmigrate health --timeout 10s    # Set custom timeout
`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := checkDatabaseHealth(); err != nil {
			fmt.Printf("❌ Database health check failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✅ Database is healthy and accessible")
	},
}

func init() {
	healthCmd.Flags().DurationVarP(&healthTimeout, "timeout", "t", 5*time.Second, "Timeout for health check")
}

func checkDatabaseHealth() error {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	pool, err := database.GetPool()
	if err != nil {
		return fmt.Errorf("failed to get database pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %v", err)
	}

	var vectorReady bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`).Scan(&vectorReady); err != nil {
		return fmt.Errorf("failed to check vector extension: %v", err)
	}
	if !vectorReady {
		fmt.Println("⚠️  Database is accessible but the vector extension is not installed")
		fmt.Println("   Run 'kbmigrate migrate' to set up the schema")
	}

	var ledgerExists bool
	query := `SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_schema = 'public'
		AND table_name = 'schema_migrations'
	)`
	if err := pool.QueryRow(ctx, query).Scan(&ledgerExists); err != nil {
		return fmt.Errorf("failed to check schema_migrations table: %v", err)
	}

	if !ledgerExists {
		fmt.Println("⚠️  Database is accessible but schema_migrations table not found")
		fmt.Println("   Run 'kbmigrate migrate' to set up the migration ledger")
		return nil
	}

	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE status = 'success'").Scan(&count); err != nil {
		return fmt.Errorf("failed to count migrations: %v", err)
	}

	fmt.Printf("📊 Found %d applied migrations\n", count)

	return nil
}
