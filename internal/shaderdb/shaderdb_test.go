package shaderdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tiledgpu/ir3c/internal/ir"
	"github.com/tiledgpu/ir3c/internal/meta"
)

func sampleDescriptor() *meta.Descriptor {
	return &meta.Descriptor{
		Stage:      ir.StageFragment,
		Generation: "a6xx",
		Stats: meta.Stats{
			InstructionCount: 42,
			HalfRegsUsed:     16,
			FullRegsUsed:     8,
		},
		Key: "deadbeef",
	}
}

func TestDB_AddAndGet(t *testing.T) {
	db := New()
	db.Add("shader-1", sampleDescriptor(), 256, time.Unix(0, 0))

	r, ok := db.Get("shader-1")
	if !ok {
		t.Fatalf("expected shader-1 to be recorded")
	}
	if r.Variant.Stats.InstructionCount != 42 {
		t.Fatalf("unexpected stats: %+v", r.Variant.Stats)
	}
	if len(db.Records()) != 1 {
		t.Fatalf("expected 1 record, got %d", len(db.Records()))
	}
}

func TestDB_ExportFormats(t *testing.T) {
	db := New()
	db.Add("shader-1", sampleDescriptor(), 256, time.Unix(0, 0))
	db.Add("shader-2", sampleDescriptor(), 512, time.Unix(0, 0))

	dir := t.TempDir()
	for _, format := range []string{"json", "csv", "text"} {
		path := filepath.Join(dir, "out."+format)
		if err := db.Export(format, path); err != nil {
			t.Fatalf("export %s failed: %v", format, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("export %s did not create a file: %v", format, err)
		}
		if info.Size() == 0 {
			t.Fatalf("export %s produced an empty file", format)
		}
	}
}

func TestDB_ExportUnsupportedFormat(t *testing.T) {
	db := New()
	if err := db.Export("yaml", filepath.Join(t.TempDir(), "out.yaml")); err == nil {
		t.Fatalf("expected an error for an unsupported export format")
	}
}
