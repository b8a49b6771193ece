// Package shaderdb collects per-variant metadata records across a compile
// batch and exports them for offline inspection, the way a driver's
// shaderdb tooling collects one entry per compiled variant for later
// triage.
//
// Grounded on the teacher's internal/reporting.ReportingModule: a
// mutex-guarded map keyed by ID, appended to one record at a time, with a
// format-dispatching Export method. This package drops reporting.go's
// security-report-specific fields (CVSS, compliance frameworks) and
// templated HTML output — a compiled shader variant has no audience for a
// styled report — and keeps the JSON/CSV export shape plus the
// "gather, then format" division of labor.
package shaderdb

import (
	"fmt"
	"sync"
	"time"

	"github.com/tiledgpu/ir3c/internal/meta"
)

// Record is one compiled variant's entry.
type Record struct {
	ShaderID    string
	Variant     *meta.Descriptor
	BinaryBytes int
	CompiledAt  time.Time
}

// DB accumulates Records across a compile batch.
type DB struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string // insertion order, for deterministic export
}

// New returns an empty DB.
func New() *DB {
	return &DB{records: make(map[string]*Record)}
}

// Add records one compiled variant. compiledAt is supplied by the caller
// rather than taken from time.Now() here, so a batch compile can stamp
// every variant with the same instant.
func (db *DB) Add(shaderID string, d *meta.Descriptor, binaryBytes int, compiledAt time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.records[shaderID]; !exists {
		db.order = append(db.order, shaderID)
	}
	db.records[shaderID] = &Record{ShaderID: shaderID, Variant: d, BinaryBytes: binaryBytes, CompiledAt: compiledAt}
}

// Get returns the record for shaderID, or false if none was added.
func (db *DB) Get(shaderID string) (*Record, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	r, ok := db.records[shaderID]
	return r, ok
}

// Records returns every record in insertion order.
func (db *DB) Records() []*Record {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]*Record, 0, len(db.order))
	for _, id := range db.order {
		out = append(out, db.records[id])
	}
	return out
}

// Export writes every accumulated record to filename in format, one of
// "json", "csv" or "text".
func (db *DB) Export(format, filename string) error {
	records := db.Records()
	switch format {
	case "json":
		return exportJSON(records, filename)
	case "csv":
		return exportCSV(records, filename)
	case "text":
		return exportText(records, filename)
	default:
		return fmt.Errorf("shaderdb: unsupported export format %q", format)
	}
}
