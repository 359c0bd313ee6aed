package workbook

import (
	"strconv"
	"testing"
)

func TestInterner(t *testing.T) {
	in := newInterner()

	a := in.intern("Completed")
	b := in.intern(string([]byte("Completed")))
	if a != b {
		t.Errorf("expected equal strings, got %q and %q", a, b)
	}
	in.intern("Failed")
	if in.len() != 2 {
		t.Errorf("expected pool size 2, got %d", in.len())
	}
}

func TestInterner_Limit(t *testing.T) {
	in := newInterner()
	for i := 0; i < maxInterned; i++ {
		in.intern("v" + strconv.Itoa(i))
	}
	full := in.len()

	got := in.intern("one more")
	if got != "one more" {
		t.Errorf("expected value returned unchanged, got %q", got)
	}
	if in.len() != full {
		t.Errorf("expected pool to stay at %d, got %d", full, in.len())
	}
}

func TestRecords_SharedHeader(t *testing.T) {
	rows := [][]string{
		{"hostname", "status"},
		{"web-01", "Completed"},
		{"web-02", "Completed"},
	}
	recs := records(rows, newInterner())
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0]["status"] != "Completed" || recs[1]["status"] != "Completed" {
		t.Errorf("unexpected status values: %v", recs)
	}
}
