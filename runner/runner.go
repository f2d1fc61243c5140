package runner

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callact/kbmigrate/change"
	"github.com/callact/kbmigrate/database"
	"github.com/callact/kbmigrate/inspect"
	"github.com/callact/kbmigrate/registry"
)

// StepStatus is the per-change outcome reported to the operator.
type StepStatus string

const (
	StepApplied StepStatus = "applied"
	StepSkipped StepStatus = "skipped"
)

// StepResult pairs a change with what the executor did about it.
type StepResult struct {
	Change change.SchemaChange
	Status StepStatus
}

// Execer is the statement-execution surface shared by pgx.Tx, *pgx.Conn and
// *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	savepointSQL         = `SAVEPOINT kbmigrate_step;`
	rollbackSavepointSQL = `ROLLBACK TO SAVEPOINT kbmigrate_step;`
	releaseSavepointSQL  = `RELEASE SAVEPOINT kbmigrate_step;`
)

// execGuarded runs a duplicate-tolerant statement under a savepoint. A
// swallowed duplicate-object error would otherwise abort the unit's
// transaction and fail every remaining step with 25P02.
func execGuarded(ctx context.Context, tx Execer, sql string) error {
	if _, err := tx.Exec(ctx, savepointSQL); err != nil {
		return fmt.Errorf("set savepoint: %v", err)
	}
	if _, err := tx.Exec(ctx, sql); err != nil {
		if change.AlreadyExists(err) {
			if _, rbErr := tx.Exec(ctx, rollbackSavepointSQL); rbErr != nil {
				return fmt.Errorf("roll back to savepoint: %v", rbErr)
			}
		}
		return err
	}
	if _, err := tx.Exec(ctx, releaseSavepointSQL); err != nil {
		return fmt.Errorf("release savepoint: %v", err)
	}
	return nil
}

// applyChanges walks one unit's changes in order. For each change the
// precondition is evaluated fresh via ins; changes already in effect are
// skipped, the rest execute on txExec, except non-transactional changes
// (enum value addition) which run on sideExec outside the unit's atomic
// scope. Duplicate-tolerant transactional changes run under a savepoint so
// the transaction survives a swallowed duplicate. The first failure aborts
// the remaining steps and returns the engine error unmodified, except that a
// duplicate-object failure on changes that opt into it counts as already
// applied.
func applyChanges(ctx context.Context, u registry.Unit, ins inspect.Inspector, txExec, sideExec Execer, report func(string)) ([]StepResult, error) {
	var results []StepResult

	for _, c := range u.Changes {
		done, err := c.Applied(ctx, ins)
		if err != nil {
			return results, fmt.Errorf("precondition for %q: %v", c.Describe(), err)
		}
		if done {
			results = append(results, StepResult{Change: c, Status: StepSkipped})
			report(fmt.Sprintf("   ⏭️  skipped (already exists): %s", c.Describe()))
			continue
		}

		var execErr error
		switch {
		case !c.Transactional():
			_, execErr = sideExec.Exec(ctx, c.SQL())
		case c.DuplicateMeansApplied():
			execErr = execGuarded(ctx, txExec, c.SQL())
		default:
			_, execErr = txExec.Exec(ctx, c.SQL())
		}

		if execErr != nil {
			if c.DuplicateMeansApplied() && change.AlreadyExists(execErr) {
				results = append(results, StepResult{Change: c, Status: StepSkipped})
				report(fmt.Sprintf("   ⏭️  skipped (duplicate reported by engine): %s", c.Describe()))
				continue
			}
			return results, execErr
		}

		results = append(results, StepResult{Change: c, Status: StepApplied})
		report(fmt.Sprintf("   ✅ applied: %s", c.Describe()))
	}

	return results, nil
}

// applyUnit runs one unit under a transaction and records the outcome in the
// ledger. The ledger row is written outside the transaction so a failed
// unit's record survives the rollback.
func applyUnit(ctx context.Context, db *pgxpool.Pool, u registry.Unit, report func(string)) error {
	start := time.Now()
	registry.LogActivity(ctx, db, "INFO", fmt.Sprintf("Starting migration: %s %s", u.Version, u.Name), u.Version, "Migration execution started")

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %v", u.Version, err)
	}

	ins := inspect.NewCatalogInspector(tx)
	_, err = applyChanges(ctx, u, ins, tx, db, report)
	execTime := time.Since(start)

	if err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return recordFailure(ctx, db, u, execTime, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %v", u.Version, err)
	}

	registry.LogActivity(ctx, db, "SUCCESS", fmt.Sprintf("Migration completed: %s", u.Version), u.Version, fmt.Sprintf("Execution time: %v", execTime))
	if err := registry.RecordOutcome(ctx, db, u, execTime, "success", ""); err != nil {
		return err
	}

	return nil
}

// recordFailure writes the failed unit's ledger row and activity entry.
// Recording runs on a detached context so a cancelled run still leaves its
// failure on record, and the engine error survives even when recording itself
// fails.
func recordFailure(ctx context.Context, db registry.DB, u registry.Unit, execTime time.Duration, execErr error) error {
	ctx = context.WithoutCancel(ctx)
	registry.LogActivity(ctx, db, "ERROR", fmt.Sprintf("Migration failed: %s", u.Version), u.Version, execErr.Error())
	if recErr := registry.RecordOutcome(ctx, db, u, execTime, "failed", execErr.Error()); recErr != nil {
		return fmt.Errorf("executing migration %s: %w (recording outcome also failed: %v)", u.Version, execErr, recErr)
	}
	return fmt.Errorf("executing migration %s: %w", u.Version, execErr)
}

// ApplyAll applies every pending unit in version order under the run-wide
// advisory lock. A termination signal cancels the run; the in-flight unit's
// transaction rolls back, committed units stay applied.
func ApplyAll(reg *registry.Registry) error {
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("invalid migration registry: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.GetPool()
	if err != nil {
		return fmt.Errorf("get connection pool: %v", err)
	}

	lockConn, err := database.AcquireMigrationLock(ctx)
	if err != nil {
		return err
	}
	defer database.ReleaseMigrationLock(context.Background(), lockConn)

	if err := registry.EnsureLedger(ctx, pool); err != nil {
		return fmt.Errorf("ensure migrations ledger: %v", err)
	}

	failed, err := registry.FailedRecords(ctx, pool)
	if err != nil {
		return fmt.Errorf("check failed migrations: %v", err)
	}
	for _, f := range failed {
		fmt.Printf("⚠️  Retrying previously failed migration %s (%s): %s\n", f.Version, f.Name, f.ErrorMessage)
	}

	applied, err := registry.AppliedVersions(ctx, pool)
	if err != nil {
		return err
	}

	pending := reg.PendingAgainst(applied)
	if len(pending) == 0 {
		fmt.Println("✅ No pending migrations.")
		return nil
	}

	fmt.Printf("Applying %d migration(s)...\n", len(pending))
	for _, u := range pending {
		fmt.Printf("Applying: %s %s\n", u.Version, u.Name)
		if err := applyUnit(ctx, pool, u, func(line string) { fmt.Println(line) }); err != nil {
			return err
		}
	}

	fmt.Println("✅ All migrations applied.")
	return nil
}

// Status reports applied, pending, and failed units.
func Status(reg *registry.Registry) (applied []string, pending []string, failed []registry.Record, err error) {
	ctx := context.Background()
	pool, err := database.GetPool()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get connection pool: %v", err)
	}

	if err := registry.EnsureLedger(ctx, pool); err != nil {
		return nil, nil, nil, err
	}

	appliedMap, err := registry.AppliedVersions(ctx, pool)
	if err != nil {
		return nil, nil, nil, err
	}

	for _, u := range reg.Units() {
		if appliedMap[u.Version] {
			applied = append(applied, fmt.Sprintf("%s %s", u.Version, u.Name))
		} else {
			pending = append(pending, fmt.Sprintf("%s %s", u.Version, u.Name))
		}
	}

	failed, err = registry.FailedRecords(ctx, pool)
	if err != nil {
		return nil, nil, nil, err
	}

	return applied, pending, failed, nil
}

// Preview prints the SQL of all pending units without applying anything.
func Preview(reg *registry.Registry) error {
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("invalid migration registry: %v", err)
	}

	ctx := context.Background()
	pool, err := database.GetPool()
	if err != nil {
		return fmt.Errorf("get connection pool: %v", err)
	}

	if err := registry.EnsureLedger(ctx, pool); err != nil {
		return fmt.Errorf("ensure migrations ledger: %v", err)
	}

	applied, err := registry.AppliedVersions(ctx, pool)
	if err != nil {
		return err
	}

	pending := reg.PendingAgainst(applied)
	if len(pending) == 0 {
		fmt.Println("✅ No pending migrations.")
		return nil
	}

	fmt.Println("\n================ DRY RUN: Migration Preview ================")
	for _, u := range pending {
		fmt.Printf("\n-- Migration: %s %s --\n", u.Version, u.Name)
		for _, c := range u.Changes {
			fmt.Println(c.SQL())
		}
	}
	fmt.Println("============================================================")
	fmt.Println("(Dry run only. No migrations were applied.)")
	return nil
}
