// Package seed loads the preprocessed knowledge-base JSON exports into the
// migrated schema. All loads are upserts keyed on the document id, so
// re-seeding refreshes rows instead of duplicating them.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Batcher is the pgx batch surface the loaders need. *pgxpool.Pool and
// *pgx.Conn satisfy it.
type Batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StringList accepts either a JSON array of strings or a single
// comma-separated string; both spellings occur in the source exports.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("keywords must be a string or string array: %v", err)
	}
	parts := strings.Split(single, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	*s = parts
	return nil
}

// Document is one service-guide export entry.
type Document struct {
	ID             string         `json:"id"`
	DocumentType   string         `json:"document_type"`
	Category       string         `json:"category"`
	Title          string         `json:"title"`
	Content        string         `json:"content"`
	Text           string         `json:"text"`
	Keywords       StringList     `json:"keywords"`
	Embedding      []float64      `json:"embedding"`
	Metadata       map[string]any `json:"metadata"`
	DocumentSource string         `json:"document_source"`
	Priority       string         `json:"priority"`
	Structured     map[string]any `json:"structured"`
	UsageCount     int            `json:"usage_count"`
}

// CardProduct is one card-product export entry.
type CardProduct struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	CardType             string         `json:"card_type"`
	Brand                string         `json:"brand"`
	AnnualFeeDomestic    *int           `json:"annual_fee_domestic"`
	AnnualFeeGlobal      *int           `json:"annual_fee_global"`
	PerformanceCondition string         `json:"performance_condition"`
	MainBenefits         string         `json:"main_benefits"`
	Status               string         `json:"status"`
	Metadata             map[string]any `json:"metadata"`
	Structured           map[string]any `json:"structured"`
}

// Notice is one notice export entry.
type Notice struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Text      string         `json:"text"`
	Category  string         `json:"category"`
	Priority  string         `json:"priority"`
	IsPinned  bool           `json:"is_pinned"`
	StartDate string         `json:"start_date"`
	EndDate   string         `json:"end_date"`
	Status    string         `json:"status"`
	CreatedBy string         `json:"created_by"`
	Keywords  StringList     `json:"keywords"`
	Embedding []float64      `json:"embedding"`
	Metadata  map[string]any `json:"metadata"`
}

// KeywordCategory is one category entry under a dictionary keyword.
type KeywordCategory struct {
	Category         string     `json:"category"`
	Priority         int        `json:"priority"`
	Urgency          string     `json:"urgency"`
	ContextHints     StringList `json:"context_hints"`
	Weight           float64    `json:"weight"`
	CompoundPatterns any        `json:"compound_patterns"`
	AmbiguityRules   any        `json:"ambiguity_rules"`
}

// KeywordEntry is one keyword of the dictionary export.
type KeywordEntry struct {
	Canonical  string            `json:"canonical"`
	Synonyms   StringList        `json:"synonyms"`
	Variations StringList        `json:"variations"`
	Categories []KeywordCategory `json:"categories"`
}

var documentNumberPattern = regexp.MustCompile(`제\d+조`)

// ExtractDocumentNumber pulls the clause number (e.g. 제12조) out of a guide
// title, when present.
func ExtractDocumentNumber(title string) string {
	return documentNumberPattern.FindString(title)
}

// VectorLiteral renders an embedding in pgvector's input format. Returns an
// empty string for a missing embedding (stored as NULL).
func VectorLiteral(embedding []float64) string {
	if len(embedding) == 0 {
		return ""
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// PrepareMetadata copies a document's metadata and stamps the extracted
// clause number into it, matching the source preprocessing.
func PrepareMetadata(doc Document) map[string]any {
	metadata := map[string]any{}
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	if num := ExtractDocumentNumber(doc.Title); num != "" {
		metadata["document_number"] = num
	}
	return metadata
}

// content returns the document body, falling back to the legacy "text" field.
func (d Document) content() string {
	if d.Content != "" {
		return d.Content
	}
	return d.Text
}

func (n Notice) content() string {
	if n.Content != "" {
		return n.Content
	}
	return n.Text
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %v", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %v", path, err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func jsonbArg(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb value: %v", err)
	}
	return string(data), nil
}

func sendBatch(ctx context.Context, db Batcher, batch *pgx.Batch) error {
	results := db.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch statement %d: %v", i+1, err)
		}
	}
	return nil
}

// LoadServiceGuides upserts the service-guide documents export.
func LoadServiceGuides(ctx context.Context, db Batcher, path string) (int, error) {
	var docs []Document
	if err := readJSON(path, &docs); err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for _, doc := range docs {
		metadata, err := jsonbArg(PrepareMetadata(doc))
		if err != nil {
			return 0, err
		}
		structured, err := jsonbArg(doc.Structured)
		if err != nil {
			return 0, err
		}
		priority := doc.Priority
		if priority == "" {
			priority = "normal"
		}
		batch.Queue(`
			INSERT INTO service_guide_documents (
				id, document_type, category, title, content, keywords,
				embedding, metadata, document_source, priority, usage_count, structured
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO UPDATE SET
				document_type = EXCLUDED.document_type,
				category = EXCLUDED.category,
				title = EXCLUDED.title,
				content = EXCLUDED.content,
				keywords = EXCLUDED.keywords,
				embedding = EXCLUDED.embedding,
				metadata = EXCLUDED.metadata,
				document_source = EXCLUDED.document_source,
				priority = EXCLUDED.priority,
				structured = EXCLUDED.structured,
				updated_at = now()
		`, doc.ID, doc.DocumentType, doc.Category, doc.Title, doc.content(),
			[]string(doc.Keywords), nullable(VectorLiteral(doc.Embedding)),
			metadata, doc.DocumentSource, priority, doc.UsageCount, structured)
	}

	if err := sendBatch(ctx, db, batch); err != nil {
		return 0, fmt.Errorf("load service guides: %v", err)
	}
	return len(docs), nil
}

// LoadCardProducts upserts the card-products export.
func LoadCardProducts(ctx context.Context, db Batcher, path string) (int, error) {
	var products []CardProduct
	if err := readJSON(path, &products); err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for _, p := range products {
		metadata, err := jsonbArg(p.Metadata)
		if err != nil {
			return 0, err
		}
		structured, err := jsonbArg(p.Structured)
		if err != nil {
			return 0, err
		}
		cardType := p.CardType
		if cardType == "" {
			cardType = "credit"
		}
		brand := p.Brand
		if brand == "" {
			brand = "local"
		}
		status := p.Status
		if status == "" {
			status = "active"
		}
		batch.Queue(`
			INSERT INTO card_products (
				id, name, card_type, brand, annual_fee_domestic, annual_fee_global,
				performance_condition, main_benefits, status, metadata, structured
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				card_type = EXCLUDED.card_type,
				brand = EXCLUDED.brand,
				annual_fee_domestic = EXCLUDED.annual_fee_domestic,
				annual_fee_global = EXCLUDED.annual_fee_global,
				performance_condition = EXCLUDED.performance_condition,
				main_benefits = EXCLUDED.main_benefits,
				status = EXCLUDED.status,
				metadata = EXCLUDED.metadata,
				structured = EXCLUDED.structured,
				updated_at = now()
		`, p.ID, p.Name, cardType, brand, p.AnnualFeeDomestic, p.AnnualFeeGlobal,
			p.PerformanceCondition, p.MainBenefits, status, metadata, structured)
	}

	if err := sendBatch(ctx, db, batch); err != nil {
		return 0, fmt.Errorf("load card products: %v", err)
	}
	return len(products), nil
}

// LoadNotices upserts the notices export.
func LoadNotices(ctx context.Context, db Batcher, path string) (int, error) {
	var notices []Notice
	if err := readJSON(path, &notices); err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for _, n := range notices {
		metadata, err := jsonbArg(n.Metadata)
		if err != nil {
			return 0, err
		}
		category := n.Category
		if category == "" {
			category = "system"
		}
		priority := n.Priority
		if priority == "" {
			priority = "normal"
		}
		status := n.Status
		if status == "" {
			status = "active"
		}
		batch.Queue(`
			INSERT INTO notices (
				id, title, content, category, priority, is_pinned,
				start_date, end_date, status, created_by, keywords, embedding, metadata
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				content = EXCLUDED.content,
				category = EXCLUDED.category,
				priority = EXCLUDED.priority,
				is_pinned = EXCLUDED.is_pinned,
				start_date = EXCLUDED.start_date,
				end_date = EXCLUDED.end_date,
				status = EXCLUDED.status,
				keywords = EXCLUDED.keywords,
				embedding = EXCLUDED.embedding,
				metadata = EXCLUDED.metadata,
				updated_at = now()
		`, n.ID, n.Title, n.content(), category, priority, n.IsPinned,
			nullable(n.StartDate), nullable(n.EndDate), status, n.CreatedBy,
			[]string(n.Keywords), nullable(VectorLiteral(n.Embedding)), metadata)
	}

	if err := sendBatch(ctx, db, batch); err != nil {
		return 0, fmt.Errorf("load notices: %v", err)
	}
	return len(notices), nil
}

// LoadKeywords upserts the keyword dictionary and its synonym expansion. The
// export maps surface keyword -> entry; each entry fans out per category.
func LoadKeywords(ctx context.Context, db Batcher, path string) (int, int, error) {
	var export struct {
		Keywords map[string]KeywordEntry `json:"keywords"`
	}
	if err := readJSON(path, &export); err != nil {
		return 0, 0, err
	}

	dictBatch := &pgx.Batch{}
	synBatch := &pgx.Batch{}
	synCount := 0

	for keyword, entry := range export.Keywords {
		canonical := entry.Canonical
		if canonical == "" {
			canonical = keyword
		}

		for _, cat := range entry.Categories {
			weight := cat.Weight
			if weight == 0 {
				weight = 1.0
			}
			urgency := cat.Urgency
			if urgency == "" {
				urgency = "medium"
			}
			priority := cat.Priority
			if priority == 0 {
				priority = 5
			}
			compound, err := jsonbArg(cat.CompoundPatterns)
			if err != nil {
				return 0, 0, err
			}
			ambiguity, err := jsonbArg(cat.AmbiguityRules)
			if err != nil {
				return 0, 0, err
			}
			dictBatch.Queue(`
				INSERT INTO keyword_dictionary (
					keyword, category, priority, urgency, context_hints,
					weight, synonyms, variations, compound_patterns, ambiguity_rules
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT (keyword, category) DO UPDATE SET
					priority = EXCLUDED.priority,
					urgency = EXCLUDED.urgency,
					context_hints = EXCLUDED.context_hints,
					weight = EXCLUDED.weight,
					synonyms = EXCLUDED.synonyms,
					variations = EXCLUDED.variations,
					compound_patterns = EXCLUDED.compound_patterns,
					ambiguity_rules = EXCLUDED.ambiguity_rules,
					updated_at = now()
			`, canonical, cat.Category, priority, urgency, []string(cat.ContextHints),
				weight, []string(entry.Synonyms), []string(entry.Variations), compound, ambiguity)

			for _, synonym := range entry.Synonyms {
				if synonym == "" || synonym == canonical {
					continue
				}
				synCount++
				synBatch.Queue(`
					INSERT INTO keyword_synonyms (synonym, canonical_keyword, category)
					VALUES ($1, $2, $3)
					ON CONFLICT (synonym, canonical_keyword, category) DO NOTHING
				`, synonym, canonical, cat.Category)
			}
		}
	}

	if err := sendBatch(ctx, db, dictBatch); err != nil {
		return 0, 0, fmt.Errorf("load keyword dictionary: %v", err)
	}
	if err := sendBatch(ctx, db, synBatch); err != nil {
		return 0, 0, fmt.Errorf("load keyword synonyms: %v", err)
	}
	return dictBatch.Len(), synCount, nil
}

// VerifyCounts returns row counts of the seeded tables.
func VerifyCounts(ctx context.Context, db Batcher) (map[string]int64, error) {
	tables := []string{
		"service_guide_documents",
		"card_products",
		"notices",
		"keyword_dictionary",
		"keyword_synonyms",
	}

	counts := map[string]int64{}
	for _, table := range tables {
		var count int64
		if err := db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table)).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s: %v", table, err)
		}
		counts[table] = count
	}
	return counts, nil
}
