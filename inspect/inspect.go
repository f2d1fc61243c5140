package inspect

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Inspector answers whether a schema object currently exists. Checks are
// evaluated lazily per call and never cached: another session may be altering
// the schema between checks, so a fresh catalog query is the only honest
// answer (a check can still go stale between probe and DDL; that residual
// risk is accepted).
type Inspector interface {
	ExtensionExists(ctx context.Context, name string) (bool, error)
	TypeExists(ctx context.Context, name string) (bool, error)
	EnumHasValue(ctx context.Context, typeName, value string) (bool, error)
	TableExists(ctx context.Context, table string) (bool, error)
	ColumnExists(ctx context.Context, table, column string) (bool, error)
	ConstraintExists(ctx context.Context, table, constraint string) (bool, error)
	IndexExists(ctx context.Context, index string) (bool, error)
	// ColumnType returns the information_schema data_type and character
	// maximum length (0 when not applicable) of a live column.
	ColumnType(ctx context.Context, table, column string) (string, int, error)
}

// Queryer is the subset of pgx connection behavior the inspector needs.
// *pgxpool.Pool, *pgx.Conn and pgx.Tx all satisfy it.
type Queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// CatalogInspector implements Inspector with read-only queries against the
// PostgreSQL system catalogs.
type CatalogInspector struct {
	db Queryer
}

func NewCatalogInspector(db Queryer) *CatalogInspector {
	return &CatalogInspector{db: db}
}

func (c *CatalogInspector) ExtensionExists(ctx context.Context, name string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = $1);`
	return c.exists(ctx, query, "extension", name)
}

func (c *CatalogInspector) TypeExists(ctx context.Context, name string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = $1);`
	return c.exists(ctx, query, "type", name)
}

func (c *CatalogInspector) EnumHasValue(ctx context.Context, typeName, value string) (bool, error) {
	query := `
	SELECT EXISTS (
		SELECT 1
		FROM pg_enum e
		JOIN pg_type t ON t.oid = e.enumtypid
		WHERE t.typname = $1 AND e.enumlabel = $2
	);`
	return c.exists(ctx, query, "enum value", typeName, value)
}

func (c *CatalogInspector) TableExists(ctx context.Context, table string) (bool, error) {
	query := `
	SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	);`
	return c.exists(ctx, query, "table", table)
}

func (c *CatalogInspector) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	query := `
	SELECT EXISTS (
		SELECT 1 FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2
	);`
	return c.exists(ctx, query, "column", table, column)
}

func (c *CatalogInspector) ConstraintExists(ctx context.Context, table, constraint string) (bool, error) {
	query := `
	SELECT EXISTS (
		SELECT 1 FROM information_schema.table_constraints
		WHERE table_schema = 'public' AND table_name = $1 AND constraint_name = $2
	);`
	return c.exists(ctx, query, "constraint", table, constraint)
}

func (c *CatalogInspector) IndexExists(ctx context.Context, index string) (bool, error) {
	query := `
	SELECT EXISTS (
		SELECT 1 FROM pg_indexes
		WHERE schemaname = 'public' AND indexname = $1
	);`
	return c.exists(ctx, query, "index", index)
}

func (c *CatalogInspector) ColumnType(ctx context.Context, table, column string) (string, int, error) {
	query := `
	SELECT data_type, COALESCE(character_maximum_length, 0)
	FROM information_schema.columns
	WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2;`

	var dataType string
	var maxLen int
	if err := c.db.QueryRow(ctx, query, table, column).Scan(&dataType, &maxLen); err != nil {
		return "", 0, fmt.Errorf("checking column type: %v", err)
	}
	return dataType, maxLen, nil
}

func (c *CatalogInspector) exists(ctx context.Context, query, kind string, args ...any) (bool, error) {
	var found bool
	if err := c.db.QueryRow(ctx, query, args...).Scan(&found); err != nil {
		return false, fmt.Errorf("checking %s existence: %v", kind, err)
	}
	return found, nil
}

// ExistingColumn describes one column of a live table.
type ExistingColumn struct {
	ColumnName    string
	DataType      string
	IsNullable    bool
	ColumnDefault *string
}

// TableColumns returns the live column list for a table, in ordinal order.
// Used by status/verification output rather than precondition checks.
func (c *CatalogInspector) TableColumns(ctx context.Context, table string) ([]ExistingColumn, error) {
	query := `
	SELECT column_name, data_type, (is_nullable = 'YES'), column_default
	FROM information_schema.columns
	WHERE table_schema = 'public' AND table_name = $1
	ORDER BY ordinal_position;`

	rows, err := c.db.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %v", err)
	}
	defer rows.Close()

	var columns []ExistingColumn
	for rows.Next() {
		var col ExistingColumn
		if err := rows.Scan(&col.ColumnName, &col.DataType, &col.IsNullable, &col.ColumnDefault); err != nil {
			return nil, fmt.Errorf("scanning column: %v", err)
		}
		columns = append(columns, col)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterating column rows: %v", rows.Err())
	}

	return columns, nil
}
