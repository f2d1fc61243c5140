package registry

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/callact/kbmigrate/change"
)

// Unit is one named, versioned migration: an ordered sequence of idempotent
// schema changes applied under a single atomic scope. Units are authored in
// code and never mutated after registration except by ledger bookkeeping.
type Unit struct {
	Version string
	Name    string
	Changes []change.SchemaChange
}

// Checksum hashes the rendered SQL of all changes, recorded in the ledger so
// drift between an applied unit and its current definition is detectable.
func (u Unit) Checksum() string {
	var b strings.Builder
	for _, c := range u.Changes {
		b.WriteString(c.SQL())
		b.WriteString("\n")
	}
	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", hash)
}

// Registry holds the ordered list of migration units.
type Registry struct {
	units []Unit
}

func New() *Registry {
	return &Registry{}
}

func (r *Registry) Register(u Unit) {
	r.units = append(r.units, u)
}

// Units returns all registered units in registration order.
func (r *Registry) Units() []Unit {
	return r.units
}

// Validate checks the registered list before any database work: versions must
// be non-empty, unique, and strictly increasing, and every unit must carry at
// least one change.
func (r *Registry) Validate() error {
	seen := map[string]bool{}
	prev := ""
	for _, u := range r.units {
		if u.Version == "" {
			return fmt.Errorf("migration %q has an empty version", u.Name)
		}
		if seen[u.Version] {
			return fmt.Errorf("duplicate migration version %s", u.Version)
		}
		seen[u.Version] = true
		if prev != "" && u.Version <= prev {
			return fmt.Errorf("migration versions out of order: %s after %s", u.Version, prev)
		}
		prev = u.Version
		if len(u.Changes) == 0 {
			return fmt.Errorf("migration %s (%s) has no changes", u.Version, u.Name)
		}
	}
	return nil
}

// PendingAgainst filters the registered units down to those not marked
// applied, preserving order. Failed units remain pending: re-invocation after
// an operator fix is the recovery path, and precondition checks make
// re-running a partially applied unit safe.
func (r *Registry) PendingAgainst(applied map[string]bool) []Unit {
	var pending []Unit
	for _, u := range r.units {
		if !applied[u.Version] {
			pending = append(pending, u)
		}
	}
	return pending
}
