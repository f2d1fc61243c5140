package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/callact/kbmigrate/database"
	"github.com/callact/kbmigrate/seed"
)

var (
	seedDataDir      string
	seedSkipGuides   bool
	seedSkipProducts bool
	seedSkipNotices  bool
	seedSkipKeywords bool
	seedVerifyOnly   bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load knowledge-base JSON exports into the database",
	Long: `Load the preprocessed knowledge-base exports (service guides, card
products, notices, keyword dictionary) into the migrated schema. All loads
are idempotent upserts.

Examples:
  kbmigrate seed --data-dir ./data/teddycard
  kbmigrate seed --skip-keywords
  kbmigrate seed --verify-only
`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSeed(); err != nil {
			fmt.Println("❌ Seed failed:", err)
			os.Exit(1)
		}
	},
}

func runSeed() error {
	ctx := context.Background()
	pool, err := database.GetPool()
	if err != nil {
		return fmt.Errorf("get connection pool: %v", err)
	}

	if seedVerifyOnly {
		return verifySeed(ctx, pool)
	}

	if !seedSkipGuides {
		path := filepath.Join(seedDataDir, "teddycard_service_guides_with_embeddings.json")
		n, err := seed.LoadServiceGuides(ctx, pool, path)
		if err != nil {
			return err
		}
		fmt.Printf("✅ service_guide_documents: %d loaded\n", n)
	}

	if !seedSkipProducts {
		path := filepath.Join(seedDataDir, "teddycard_card_products_with_embeddings.json")
		n, err := seed.LoadCardProducts(ctx, pool, path)
		if err != nil {
			return err
		}
		fmt.Printf("✅ card_products: %d loaded\n", n)
	}

	if !seedSkipNotices {
		path := filepath.Join(seedDataDir, "teddycard_notices_with_embeddings.json")
		n, err := seed.LoadNotices(ctx, pool, path)
		if err != nil {
			return err
		}
		fmt.Printf("✅ notices: %d loaded\n", n)
	}

	if !seedSkipKeywords {
		path := filepath.Join(seedDataDir, "keywords_dict_v2_with_patterns.json")
		keywords, synonyms, err := seed.LoadKeywords(ctx, pool, path)
		if err != nil {
			return err
		}
		fmt.Printf("✅ keyword_dictionary: %d loaded, keyword_synonyms: %d loaded\n", keywords, synonyms)
	}

	return verifySeed(ctx, pool)
}

func verifySeed(ctx context.Context, db seed.Batcher) error {
	counts, err := seed.VerifyCounts(ctx, db)
	if err != nil {
		return err
	}
	fmt.Println("📊 Row counts:")
	for _, table := range []string{"service_guide_documents", "card_products", "notices", "keyword_dictionary", "keyword_synonyms"} {
		fmt.Printf("   %s: %d\n", table, counts[table])
	}
	return nil
}

func init() {
	seedCmd.Flags().StringVar(&seedDataDir, "data-dir", "data", "Directory holding the JSON exports")
	seedCmd.Flags().BoolVar(&seedSkipGuides, "skip-guides", false, "Skip service guide documents")
	seedCmd.Flags().BoolVar(&seedSkipProducts, "skip-products", false, "Skip card products")
	seedCmd.Flags().BoolVar(&seedSkipNotices, "skip-notices", false, "Skip notices")
	seedCmd.Flags().BoolVar(&seedSkipKeywords, "skip-keywords", false, "Skip keyword dictionary")
	seedCmd.Flags().BoolVar(&seedVerifyOnly, "verify-only", false, "Only report row counts")
}
