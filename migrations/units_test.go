package migrations

import (
	"strings"
	"testing"

	"github.com/callact/kbmigrate/change"
	"github.com/callact/kbmigrate/registry"
)

func TestDefaultCatalogValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}
}

func TestDefaultCatalogShape(t *testing.T) {
	units := Default().Units()
	if len(units) != 6 {
		t.Fatalf("expected 6 units, got %d", len(units))
	}

	for _, u := range units {
		for _, c := range u.Changes {
			sql := c.SQL()
			if sql == "" {
				t.Errorf("%s: %q renders empty SQL", u.Version, c.Describe())
			}
			if !strings.HasSuffix(sql, ";") {
				t.Errorf("%s: %q does not end with a semicolon: %s", u.Version, c.Describe(), sql)
			}
		}
	}
}

func findUnit(t *testing.T, version string) registry.Unit {
	t.Helper()
	for _, u := range Default().Units() {
		if u.Version == version {
			return u
		}
	}
	t.Fatalf("unit %s not in catalog", version)
	return registry.Unit{}
}

func TestCoreSchemaStartsWithVectorExtension(t *testing.T) {
	u := findUnit(t, "20240115093000")

	ext, ok := u.Changes[0].(change.CreateExtension)
	if !ok || ext.Extension != "vector" {
		t.Fatalf("expected the vector extension first, got %q", u.Changes[0].Describe())
	}
}

func TestEmployeesTablePreservesLegacyColumns(t *testing.T) {
	u := findUnit(t, "20240115093000")

	var employees change.CreateTable
	for _, c := range u.Changes {
		if ct, ok := c.(change.CreateTable); ok && ct.Table == "employees" {
			employees = ct
		}
	}
	if employees.Table == "" {
		t.Fatal("employees table missing from the core unit")
	}

	// Camel-cased and reserved-word columns from the legacy dashboard stay
	// quoted exactly as produced there.
	for _, want := range []string{
		`"avgTime" VARCHAR(10) DEFAULT '0:00'`,
		`"rank" INT DEFAULT 0`,
		`"status" employee_status DEFAULT 'active'`,
	} {
		if !strings.Contains(employees.Definition, want) {
			t.Errorf("employees definition missing %s", want)
		}
	}
}

func TestVectorColumnsAndHNSWIndexes(t *testing.T) {
	embedding := map[string]bool{}
	hnsw := map[string]bool{}

	for _, u := range Default().Units() {
		for _, c := range u.Changes {
			switch c := c.(type) {
			case change.CreateTable:
				if strings.Contains(c.Definition, `"embedding" VECTOR(1536)`) {
					embedding[c.Table] = true
				}
			case change.CreateIndex:
				if strings.Contains(c.Definition, "USING hnsw") {
					hnsw[c.Table] = true
					if !strings.Contains(c.Definition, "vector_cosine_ops") {
						t.Errorf("index %s is not a cosine index", c.Index)
					}
					if !strings.Contains(c.Definition, "m = 16") || !strings.Contains(c.Definition, "ef_construction = 64") {
						t.Errorf("index %s has wrong build parameters: %s", c.Index, c.Definition)
					}
				}
			}
		}
	}

	for _, table := range []string{"consultation_documents", "service_guide_documents", "notices"} {
		if !embedding[table] {
			t.Errorf("table %s has no 1536-dim embedding column", table)
		}
		if !hnsw[table] {
			t.Errorf("table %s has no HNSW index", table)
		}
	}
}

func TestBrandEnumGainsLocalValue(t *testing.T) {
	u := findUnit(t, "20240302110000")

	var found bool
	for _, c := range u.Changes {
		if ev, ok := c.(change.AddEnumValue); ok {
			if ev.TypeName != "brand_type" || ev.Value != "local" {
				t.Errorf("unexpected enum extension %s/%s", ev.TypeName, ev.Value)
			}
			found = true
		}
	}
	if !found {
		t.Error("brand_type 'local' extension missing")
	}
}

// Widening the document id runs as drop-pkey, alter-type, re-add-pkey, in that
// order, so a rerun interrupted between steps picks up where it left off.
func TestWidenIdentifierSequence(t *testing.T) {
	u := findUnit(t, "20240303094500")
	if len(u.Changes) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(u.Changes))
	}

	drop, ok := u.Changes[0].(change.DropConstraint)
	if !ok || drop.Constraint != "service_guide_documents_pkey" {
		t.Errorf("step 1 should drop the primary key, got %q", u.Changes[0].Describe())
	}
	alter, ok := u.Changes[1].(change.AlterColumnType)
	if !ok || alter.Column != "id" || alter.NewType != "VARCHAR(100)" {
		t.Errorf("step 2 should widen id to VARCHAR(100), got %q", u.Changes[1].Describe())
	}
	add, ok := u.Changes[2].(change.AddConstraint)
	if !ok || add.Constraint != "service_guide_documents_pkey" {
		t.Errorf("step 3 should restore the primary key, got %q", u.Changes[2].Describe())
	}
}

func TestKeywordTablesCarryUniqueConstraints(t *testing.T) {
	u := findUnit(t, "20240310132000")

	defs := map[string]string{}
	for _, c := range u.Changes {
		if ct, ok := c.(change.CreateTable); ok {
			defs[ct.Table] = ct.Definition
		}
	}

	if !strings.Contains(defs["keyword_dictionary"], `UNIQUE ("keyword", "category")`) {
		t.Error("keyword_dictionary missing its keyword/category unique constraint")
	}
	if !strings.Contains(defs["keyword_synonyms"], `UNIQUE ("synonym", "canonical_keyword", "category")`) {
		t.Error("keyword_synonyms missing its triple unique constraint")
	}
}
