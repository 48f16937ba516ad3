package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "sub", DBName))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAndListBuilds(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	for i, code := range []int{1, 0} {
		b := Build{
			SessionID:  "s1",
			SourceHash: "abc",
			Command:    "cc -shared",
			ExitCode:   code,
			Duration:   time.Duration(i+1) * time.Millisecond,
		}
		if err := l.RecordBuild(ctx, b); err != nil {
			t.Fatalf("RecordBuild: %v", err)
		}
	}

	builds, err := l.RecentBuilds(ctx, 10)
	if err != nil {
		t.Fatalf("RecentBuilds: %v", err)
	}
	if len(builds) != 2 {
		t.Fatalf("got %d builds, want 2", len(builds))
	}
	if builds[0].ExitCode != 0 || builds[1].ExitCode != 1 {
		t.Errorf("builds not newest-first: %+v", builds)
	}
	if builds[0].Duration != 2*time.Millisecond {
		t.Errorf("Duration = %v", builds[0].Duration)
	}
	if builds[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}
}

func TestRecordAndListRuns(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r := Run{
			SessionID:      "s1",
			Backend:        "interp",
			Cells:          12,
			Steps:          100 * (i + 1),
			Elapsed:        time.Second,
			CellsPerSecond: 1200,
		}
		if err := l.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	runs, err := l.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].Steps != 300 || runs[0].Backend != "interp" || runs[0].Elapsed != time.Second {
		t.Errorf("unexpected newest run: %+v", runs[0])
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), DBName)
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.RecordRun(context.Background(), Run{SessionID: "x", Backend: "native"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	l2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()
	runs, err := l2.RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].SessionID != "x" {
		t.Errorf("runs after reopen = %+v", runs)
	}
}

func TestCloseNilSafe(t *testing.T) {
	var l *Ledger
	if err := l.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}
