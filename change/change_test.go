package change

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

type columnType struct {
	dataType string
	maxLen   int
}

// fakeInspector answers existence probes from in-memory sets.
type fakeInspector struct {
	extensions  map[string]bool
	types       map[string]bool
	enumValues  map[string]bool // "type/value"
	tables      map[string]bool
	columns     map[string]bool // "table.column"
	constraints map[string]bool // "table.constraint"
	indexes     map[string]bool
	columnTypes map[string]columnType // "table.column"
}

func newFakeInspector() *fakeInspector {
	return &fakeInspector{
		extensions:  map[string]bool{},
		types:       map[string]bool{},
		enumValues:  map[string]bool{},
		tables:      map[string]bool{},
		columns:     map[string]bool{},
		constraints: map[string]bool{},
		indexes:     map[string]bool{},
		columnTypes: map[string]columnType{},
	}
}

func (f *fakeInspector) ExtensionExists(_ context.Context, name string) (bool, error) {
	return f.extensions[name], nil
}

func (f *fakeInspector) TypeExists(_ context.Context, name string) (bool, error) {
	return f.types[name], nil
}

func (f *fakeInspector) EnumHasValue(_ context.Context, typeName, value string) (bool, error) {
	return f.enumValues[typeName+"/"+value], nil
}

func (f *fakeInspector) TableExists(_ context.Context, table string) (bool, error) {
	return f.tables[table], nil
}

func (f *fakeInspector) ColumnExists(_ context.Context, table, column string) (bool, error) {
	return f.columns[table+"."+column], nil
}

func (f *fakeInspector) ConstraintExists(_ context.Context, table, constraint string) (bool, error) {
	return f.constraints[table+"."+constraint], nil
}

func (f *fakeInspector) IndexExists(_ context.Context, index string) (bool, error) {
	return f.indexes[index], nil
}

func (f *fakeInspector) ColumnType(_ context.Context, table, column string) (string, int, error) {
	ct := f.columnTypes[table+"."+column]
	return ct.dataType, ct.maxLen, nil
}

func TestCreateExtensionSQL(t *testing.T) {
	c := CreateExtension{Extension: "vector"}
	if got := c.SQL(); got != `CREATE EXTENSION "vector";` {
		t.Errorf("unexpected SQL: %s", got)
	}
}

func TestCreateEnumTypeSQL(t *testing.T) {
	c := CreateEnumType{TypeName: "brand_type", Values: []string{"visa", "mastercard"}}
	want := `CREATE TYPE "brand_type" AS ENUM ('visa', 'mastercard');`
	if got := c.SQL(); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestAddEnumValueSQL(t *testing.T) {
	c := AddEnumValue{TypeName: "brand_type", Value: "local"}
	want := `ALTER TYPE "brand_type" ADD VALUE 'local';`
	if got := c.SQL(); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestAddColumnSQL(t *testing.T) {
	c := AddColumn{Table: "service_guide_documents", Column: "structured", Definition: "JSONB"}
	want := `ALTER TABLE "service_guide_documents" ADD COLUMN "structured" JSONB;`
	if got := c.SQL(); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCreateIndexSQL(t *testing.T) {
	c := CreateIndex{
		Index:      "idx_consultation_documents_embedding",
		Table:      "consultation_documents",
		Definition: `USING hnsw ("embedding" vector_cosine_ops) WITH (m = 16, ef_construction = 64)`,
	}
	got := c.SQL()
	if !strings.Contains(got, "USING hnsw") {
		t.Errorf("expected hnsw index, got %s", got)
	}
	if !strings.Contains(got, "m = 16") || !strings.Contains(got, "ef_construction = 64") {
		t.Errorf("expected hnsw build parameters, got %s", got)
	}
}

func TestConstraintSQL(t *testing.T) {
	drop := DropConstraint{Table: "service_guide_documents", Constraint: "service_guide_documents_pkey"}
	if got := drop.SQL(); got != `ALTER TABLE "service_guide_documents" DROP CONSTRAINT "service_guide_documents_pkey";` {
		t.Errorf("unexpected drop SQL: %s", got)
	}

	add := AddConstraint{Table: "service_guide_documents", Constraint: "service_guide_documents_pkey", Definition: `PRIMARY KEY ("id")`}
	if got := add.SQL(); got != `ALTER TABLE "service_guide_documents" ADD CONSTRAINT "service_guide_documents_pkey" PRIMARY KEY ("id");` {
		t.Errorf("unexpected add SQL: %s", got)
	}
}

func TestEnumChangesAreSpecialCased(t *testing.T) {
	if (CreateEnumType{}).Transactional() != true {
		t.Error("enum type creation should run inside the transaction")
	}
	if (AddEnumValue{}).Transactional() {
		t.Error("enum value addition must run outside the transaction")
	}
	if !(CreateEnumType{}).DuplicateMeansApplied() || !(AddEnumValue{}).DuplicateMeansApplied() {
		t.Error("enum changes should treat duplicate-object errors as applied")
	}
	if (CreateTable{}).DuplicateMeansApplied() {
		t.Error("table creation should not swallow duplicate errors")
	}
}

func TestAlreadyExists(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicate object", &pgconn.PgError{Code: "42710"}, true},
		{"duplicate table", &pgconn.PgError{Code: "42P07"}, true},
		{"duplicate column", &pgconn.PgError{Code: "42701"}, true},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AlreadyExists(tc.err); got != tc.want {
				t.Errorf("AlreadyExists(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestDropConstraintApplied(t *testing.T) {
	ctx := context.Background()
	ins := newFakeInspector()
	c := DropConstraint{Table: "docs", Constraint: "docs_pkey"}

	// Constraint present: drop not yet in effect.
	ins.constraints["docs.docs_pkey"] = true
	done, err := c.Applied(ctx, ins)
	if err != nil || done {
		t.Errorf("expected not applied while constraint exists, got %v %v", done, err)
	}

	// Constraint absent: drop already in effect.
	delete(ins.constraints, "docs.docs_pkey")
	done, err = c.Applied(ctx, ins)
	if err != nil || !done {
		t.Errorf("expected applied once constraint is gone, got %v %v", done, err)
	}
}

func TestAlterColumnTypeApplied(t *testing.T) {
	ctx := context.Background()
	ins := newFakeInspector()
	c := AlterColumnType{Table: "docs", Column: "id", NewType: "VARCHAR(100)"}

	ins.columnTypes["docs.id"] = columnType{dataType: "character varying", maxLen: 50}
	done, err := c.Applied(ctx, ins)
	if err != nil || done {
		t.Errorf("expected not applied at length 50, got %v %v", done, err)
	}

	ins.columnTypes["docs.id"] = columnType{dataType: "character varying", maxLen: 100}
	done, err = c.Applied(ctx, ins)
	if err != nil || !done {
		t.Errorf("expected applied at length 100, got %v %v", done, err)
	}
}

func TestNormalizeType(t *testing.T) {
	cases := []struct {
		in       string
		wantType string
		wantLen  int
	}{
		{"VARCHAR(100)", "character varying", 100},
		{"varchar(50)", "character varying", 50},
		{"TEXT", "text", 0},
		{"INT", "integer", 0},
		{"BOOLEAN", "boolean", 0},
		{"TIMESTAMP", "timestamp without time zone", 0},
	}
	for _, tc := range cases {
		gotType, gotLen := normalizeType(tc.in)
		if gotType != tc.wantType || gotLen != tc.wantLen {
			t.Errorf("normalizeType(%q) = (%q, %d), want (%q, %d)", tc.in, gotType, gotLen, tc.wantType, tc.wantLen)
		}
	}
}
