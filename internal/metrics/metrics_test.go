package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSuccess(t *testing.T) {
	r := New()
	finished := time.Unix(1700000000, 0)
	r.ObserveSuccess(3, finished, 1500*time.Millisecond)

	if got := testutil.ToFloat64(r.records); got != 3 {
		t.Errorf("records = %v; want 3", got)
	}
	if got := testutil.ToFloat64(r.success); got != 1 {
		t.Errorf("success = %v; want 1", got)
	}
	if got := testutil.ToFloat64(r.lastRun); got != 1700000000 {
		t.Errorf("last run = %v; want 1700000000", got)
	}
	if got := testutil.ToFloat64(r.duration); got != 1.5 {
		t.Errorf("duration = %v; want 1.5", got)
	}
}

func TestObserveFailure(t *testing.T) {
	r := New()
	r.ObserveFailure("normalize", 1, time.Now(), time.Second)

	if got := testutil.ToFloat64(r.failures.WithLabelValues("normalize")); got != 1 {
		t.Errorf("failures{normalize} = %v; want 1", got)
	}
	if got := testutil.ToFloat64(r.success); got != 0 {
		t.Errorf("success = %v; want 0", got)
	}
	if n := testutil.CollectAndCount(r.failures); n != 1 {
		t.Errorf("expected one failure series, got %d", n)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.ObserveSuccess(2, time.Now(), time.Second)

	if err := r.WriteTextfile(""); err != nil {
		t.Fatalf("WriteTextfile(\"\") error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "harbour.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "harbour_scrape_records_total 2") {
		t.Fatalf("expected records counter in textfile, got:\n%s", data)
	}
}

func TestWriteTextfileBadPath(t *testing.T) {
	r := New()
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "harbour.prom")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
