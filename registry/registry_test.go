package registry

import (
	"strings"
	"testing"

	"github.com/callact/kbmigrate/change"
)

func unit(version, name string) Unit {
	return Unit{
		Version: version,
		Name:    name,
		Changes: []change.SchemaChange{
			change.CreateTable{Table: name, Definition: `"id" SERIAL PRIMARY KEY`},
		},
	}
}

func TestValidateAcceptsOrderedRegistry(t *testing.T) {
	r := New()
	r.Register(unit("20240115093000", "employees"))
	r.Register(unit("20240116101500", "consultation_documents"))
	r.Register(unit("20240214150000", "card_products"))

	if err := r.Validate(); err != nil {
		t.Fatalf("expected valid registry, got %v", err)
	}
}

func TestValidateRejectsEmptyVersion(t *testing.T) {
	r := New()
	r.Register(unit("", "employees"))

	if err := r.Validate(); err == nil {
		t.Fatal("expected an error for an empty version")
	}
}

func TestValidateRejectsDuplicateVersion(t *testing.T) {
	r := New()
	r.Register(unit("20240115093000", "employees"))
	r.Register(unit("20240115093000", "consultations"))

	err := r.Validate()
	if err == nil {
		t.Fatal("expected an error for a duplicate version")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected a duplicate-version error, got %v", err)
	}
}

func TestValidateRejectsOutOfOrderVersions(t *testing.T) {
	r := New()
	r.Register(unit("20240214150000", "card_products"))
	r.Register(unit("20240115093000", "employees"))

	err := r.Validate()
	if err == nil {
		t.Fatal("expected an error for out-of-order versions")
	}
	if !strings.Contains(err.Error(), "out of order") {
		t.Errorf("expected an ordering error, got %v", err)
	}
}

func TestValidateRejectsEmptyUnit(t *testing.T) {
	r := New()
	r.Register(Unit{Version: "20240115093000", Name: "empty"})

	if err := r.Validate(); err == nil {
		t.Fatal("expected an error for a unit with no changes")
	}
}

func TestPendingAgainst(t *testing.T) {
	r := New()
	r.Register(unit("20240115093000", "employees"))
	r.Register(unit("20240116101500", "consultation_documents"))
	r.Register(unit("20240214150000", "card_products"))

	applied := map[string]bool{
		"20240115093000": true,
		"20240214150000": true,
	}

	pending := r.PendingAgainst(applied)
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending unit, got %d", len(pending))
	}
	if pending[0].Version != "20240116101500" {
		t.Errorf("expected the unapplied unit pending, got %s", pending[0].Version)
	}

	if got := r.PendingAgainst(map[string]bool{}); len(got) != 3 {
		t.Errorf("expected all units pending on a fresh database, got %d", len(got))
	}
}

func TestPendingAgainstPreservesOrder(t *testing.T) {
	r := New()
	r.Register(unit("20240115093000", "employees"))
	r.Register(unit("20240116101500", "consultation_documents"))
	r.Register(unit("20240214150000", "card_products"))

	pending := r.PendingAgainst(map[string]bool{})
	for i := 1; i < len(pending); i++ {
		if pending[i].Version <= pending[i-1].Version {
			t.Errorf("pending units out of order: %s after %s", pending[i].Version, pending[i-1].Version)
		}
	}
}

func TestChecksumStableAndContentSensitive(t *testing.T) {
	a := unit("20240115093000", "employees")
	b := unit("20240115093000", "employees")

	if a.Checksum() != b.Checksum() {
		t.Error("identical units should produce identical checksums")
	}

	c := unit("20240115093000", "consultations")
	if a.Checksum() == c.Checksum() {
		t.Error("units with different SQL should produce different checksums")
	}
}
