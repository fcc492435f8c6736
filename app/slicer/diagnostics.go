package slicer

import (
	"log/slog"
)

const (
	DiagItemSkipped          = "item_skipped"
	DiagSourceFailed         = "source_failed"
	DiagFingerprintCollision = "fingerprint_collision"
	DiagUnknownLinkTarget    = "unknown_link_target"
	DiagUnknownSource        = "unknown_source"
	DiagUnknownCategory      = "unknown_category"
)

// Diagnostic is one structured warning produced during a slicing run. The
// run never fails because of a diagnostic; fatal conditions are errors.
type Diagnostic struct {
	Code    string
	Source  string
	Slice   string
	Message string
}

// Diagnostics is a run-scoped accumulator. Each concurrent slice worker owns
// its own instance; buffers are merged in slice-definition order at the end
// of the run so the combined sequence is deterministic.
type Diagnostics struct {
	entries []Diagnostic
}

func (d *Diagnostics) Add(diag Diagnostic) {
	d.entries = append(d.entries, diag)
}

func (d *Diagnostics) Merge(other *Diagnostics) {
	d.entries = append(d.entries, other.entries...)
}

func (d *Diagnostics) Entries() []Diagnostic {
	return d.entries
}

func (d *Diagnostics) Len() int {
	return len(d.entries)
}

// Log emits every accumulated diagnostic as a structured warning.
func (d *Diagnostics) Log() {
	for _, diag := range d.entries {
		slog.Warn("Slicing diagnostic",
			"code", diag.Code,
			"source", diag.Source,
			"slice", diag.Slice,
			"message", diag.Message)
	}
}
