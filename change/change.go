package change

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/callact/kbmigrate/inspect"
)

// SchemaChange is one idempotent schema mutation. Applied reports whether the
// change's effect is already present, so re-running a migration skips it.
type SchemaChange interface {
	// Describe returns a short human-readable label for status lines.
	Describe() string
	// SQL renders the single mutation statement.
	SQL() string
	// Applied evaluates the precondition against the live schema.
	Applied(ctx context.Context, ins inspect.Inspector) (bool, error)
	// Transactional reports whether the statement may run inside the
	// migration unit's transaction. ALTER TYPE ... ADD VALUE cannot.
	Transactional() bool
	// DuplicateMeansApplied reports whether an engine duplicate-object
	// error counts as success for this change. Enum creation/extension is
	// the one place where the engine's error classification is trusted
	// over a pre-check.
	DuplicateMeansApplied() bool
}

// AlreadyExists reports whether err is the engine's duplicate-object class
// of failure (SQLSTATE 42710/42P07/42701).
func AlreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.DuplicateObject, pgerrcode.DuplicateTable, pgerrcode.DuplicateColumn:
		return true
	}
	return false
}

// CreateExtension installs a database extension (e.g. pgvector).
type CreateExtension struct {
	Extension string
}

func (c CreateExtension) Describe() string { return fmt.Sprintf("create extension %s", c.Extension) }

func (c CreateExtension) SQL() string {
	return fmt.Sprintf(`CREATE EXTENSION "%s";`, c.Extension)
}

func (c CreateExtension) Applied(ctx context.Context, ins inspect.Inspector) (bool, error) {
	return ins.ExtensionExists(ctx, c.Extension)
}

func (c CreateExtension) Transactional() bool         { return true }
func (c CreateExtension) DuplicateMeansApplied() bool { return false }

// CreateEnumType creates an enum type with its initial value set.
type CreateEnumType struct {
	TypeName string
	Values   []string
}

func (c CreateEnumType) Describe() string { return fmt.Sprintf("create type %s", c.TypeName) }

func (c CreateEnumType) SQL() string {
	quoted := make([]string, len(c.Values))
	for i, v := range c.Values {
		quoted[i] = "'" + v + "'"
	}
	return fmt.Sprintf(`CREATE TYPE "%s" AS ENUM (%s);`, c.TypeName, strings.Join(quoted, ", "))
}

func (c CreateEnumType) Applied(ctx context.Context, ins inspect.Inspector) (bool, error) {
	return ins.TypeExists(ctx, c.TypeName)
}

func (c CreateEnumType) Transactional() bool         { return true }
func (c CreateEnumType) DuplicateMeansApplied() bool { return true }

// AddEnumValue appends a value to an existing enum type. Runs outside the
// unit transaction: ALTER TYPE ... ADD VALUE is rejected inside a
// transaction block that also touches the type.
type AddEnumValue struct {
	TypeName string
	Value    string
}

func (c AddEnumValue) Describe() string {
	return fmt.Sprintf("add enum value '%s' to %s", c.Value, c.TypeName)
}

func (c AddEnumValue) SQL() string {
	return fmt.Sprintf(`ALTER TYPE "%s" ADD VALUE '%s';`, c.TypeName, c.Value)
}

func (c AddEnumValue) Applied(ctx context.Context, ins inspect.Inspector) (bool, error) {
	return ins.EnumHasValue(ctx, c.TypeName, c.Value)
}

func (c AddEnumValue) Transactional() bool         { return false }
func (c AddEnumValue) DuplicateMeansApplied() bool { return true }

// CreateTable creates a table. Definition is the parenthesized body
// (columns and table constraints) without the surrounding parentheses.
type CreateTable struct {
	Table      string
	Definition string
}

func (c CreateTable) Describe() string { return fmt.Sprintf("create table %s", c.Table) }

func (c CreateTable) SQL() string {
	return fmt.Sprintf(`CREATE TABLE "%s" (%s);`, c.Table, c.Definition)
}

func (c CreateTable) Applied(ctx context.Context, ins inspect.Inspector) (bool, error) {
	return ins.TableExists(ctx, c.Table)
}

func (c CreateTable) Transactional() bool         { return true }
func (c CreateTable) DuplicateMeansApplied() bool { return false }

// AddColumn adds a column to an existing table. Definition is the column
// type plus any constraints/default.
type AddColumn struct {
	Table      string
	Column     string
	Definition string
}

func (c AddColumn) Describe() string {
	return fmt.Sprintf("add column %s.%s", c.Table, c.Column)
}

func (c AddColumn) SQL() string {
	return fmt.Sprintf(`ALTER TABLE "%s" ADD COLUMN "%s" %s;`, c.Table, c.Column, c.Definition)
}

func (c AddColumn) Applied(ctx context.Context, ins inspect.Inspector) (bool, error) {
	return ins.ColumnExists(ctx, c.Table, c.Column)
}

func (c AddColumn) Transactional() bool         { return true }
func (c AddColumn) DuplicateMeansApplied() bool { return false }

// DropConstraint removes a named constraint. Already in effect when the
// constraint is absent.
type DropConstraint struct {
	Table      string
	Constraint string
}

func (c DropConstraint) Describe() string {
	return fmt.Sprintf("drop constraint %s on %s", c.Constraint, c.Table)
}

func (c DropConstraint) SQL() string {
	return fmt.Sprintf(`ALTER TABLE "%s" DROP CONSTRAINT "%s";`, c.Table, c.Constraint)
}

func (c DropConstraint) Applied(ctx context.Context, ins inspect.Inspector) (bool, error) {
	exists, err := ins.ConstraintExists(ctx, c.Table, c.Constraint)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

func (c DropConstraint) Transactional() bool         { return true }
func (c DropConstraint) DuplicateMeansApplied() bool { return false }

// AddConstraint adds a named constraint. Definition is everything after the
// constraint name (e.g. `PRIMARY KEY ("id")`).
type AddConstraint struct {
	Table      string
	Constraint string
	Definition string
}

func (c AddConstraint) Describe() string {
	return fmt.Sprintf("add constraint %s on %s", c.Constraint, c.Table)
}

func (c AddConstraint) SQL() string {
	return fmt.Sprintf(`ALTER TABLE "%s" ADD CONSTRAINT "%s" %s;`, c.Table, c.Constraint, c.Definition)
}

func (c AddConstraint) Applied(ctx context.Context, ins inspect.Inspector) (bool, error) {
	return ins.ConstraintExists(ctx, c.Table, c.Constraint)
}

func (c AddConstraint) Transactional() bool         { return true }
func (c AddConstraint) DuplicateMeansApplied() bool { return false }

// CreateIndex creates a named index. Definition is everything after the
// table name (e.g. `USING hnsw ("embedding" vector_cosine_ops) WITH (m = 16,
// ef_construction = 64)` or `("category")`).
type CreateIndex struct {
	Index      string
	Table      string
	Definition string
}

func (c CreateIndex) Describe() string {
	return fmt.Sprintf("create index %s on %s", c.Index, c.Table)
}

func (c CreateIndex) SQL() string {
	return fmt.Sprintf(`CREATE INDEX "%s" ON "%s" %s;`, c.Index, c.Table, c.Definition)
}

func (c CreateIndex) Applied(ctx context.Context, ins inspect.Inspector) (bool, error) {
	return ins.IndexExists(ctx, c.Index)
}

func (c CreateIndex) Transactional() bool         { return true }
func (c CreateIndex) DuplicateMeansApplied() bool { return false }

// AlterColumnType widens or changes a column's type. Already in effect when
// the live column type matches NewType.
type AlterColumnType struct {
	Table   string
	Column  string
	NewType string
}

func (c AlterColumnType) Describe() string {
	return fmt.Sprintf("alter column %s.%s type to %s", c.Table, c.Column, c.NewType)
}

func (c AlterColumnType) SQL() string {
	return fmt.Sprintf(`ALTER TABLE "%s" ALTER COLUMN "%s" TYPE %s;`, c.Table, c.Column, c.NewType)
}

func (c AlterColumnType) Applied(ctx context.Context, ins inspect.Inspector) (bool, error) {
	dataType, maxLen, err := ins.ColumnType(ctx, c.Table, c.Column)
	if err != nil {
		return false, err
	}
	wantType, wantLen := normalizeType(c.NewType)
	if !strings.EqualFold(dataType, wantType) {
		return false, nil
	}
	if wantLen == 0 {
		return true, nil
	}
	return maxLen == wantLen, nil
}

func (c AlterColumnType) Transactional() bool         { return true }
func (c AlterColumnType) DuplicateMeansApplied() bool { return false }

// normalizeType maps a DDL type spelling to the information_schema data_type
// plus character length, e.g. VARCHAR(100) -> ("character varying", 100).
func normalizeType(ddlType string) (string, int) {
	t := strings.ToLower(strings.TrimSpace(ddlType))
	length := 0
	if open := strings.Index(t, "("); open != -1 {
		if close := strings.Index(t, ")"); close > open {
			if n, err := strconv.Atoi(strings.TrimSpace(t[open+1 : close])); err == nil {
				length = n
			}
		}
		t = strings.TrimSpace(t[:open])
	}
	switch t {
	case "varchar", "character varying":
		return "character varying", length
	case "char", "character":
		return "character", length
	case "int", "int4", "integer":
		return "integer", 0
	case "bigint", "int8":
		return "bigint", 0
	case "bool", "boolean":
		return "boolean", 0
	case "timestamp":
		return "timestamp without time zone", 0
	default:
		return t, length
	}
}
