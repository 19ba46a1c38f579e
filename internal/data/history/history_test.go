package history

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStore_SaveLoadRuns(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	runs := []Run{
		{RunID: "r1", Module: "gtsam", Timestamp: base, Status: "success", Classes: 3, Methods: 9},
		{RunID: "r2", Module: "gtsam", Timestamp: base.Add(500 * time.Millisecond), Status: "failure", Stage: "parse", ErrorCode: "SYNTAX_ERROR"},
		{RunID: "r3", Module: "gtsam", Timestamp: base.Add(time.Second), Status: "success", Classes: 4, Written: 1},
	}
	for _, run := range runs {
		if err := store.SaveRun(run); err != nil {
			t.Fatalf("save %s: %v", run.RunID, err)
		}
	}

	got, err := store.LoadRuns("gtsam", 0)
	if err != nil {
		t.Fatalf("load runs: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(got))
	}
	if got[0].RunID != "r3" || got[1].RunID != "r2" || got[2].RunID != "r1" {
		t.Fatalf("expected newest first, got %s %s %s", got[0].RunID, got[1].RunID, got[2].RunID)
	}
	if got[1].Stage != "parse" || got[1].ErrorCode != "SYNTAX_ERROR" {
		t.Fatalf("failure fields did not roundtrip: %+v", got[1])
	}
	if !got[2].Timestamp.Equal(base) {
		t.Fatalf("timestamp mismatch: %v", got[2].Timestamp)
	}

	limited, err := store.LoadRuns("gtsam", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].Classes != 4 {
		t.Fatalf("unexpected limited rows: %+v", limited)
	}

	// Same run id replaces the row.
	if err := store.SaveRun(Run{RunID: "r1", Module: "gtsam", Timestamp: base, Status: "success", Classes: 7}); err != nil {
		t.Fatal(err)
	}
	all, err := store.LoadRuns("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[2].Classes != 7 {
		t.Fatalf("expected replaced row, got %+v", all)
	}
}

func TestStore_SaveRunRequiresID(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.SaveRun(Run{Module: "gtsam"}); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestStore_LoadRuns_ModuleIsolation(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.SaveRun(Run{RunID: "a", Module: "geometry", Status: "success"}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveRun(Run{RunID: "b", Module: "linear", Status: "success"}); err != nil {
		t.Fatal(err)
	}

	rows, err := store.LoadRuns("geometry", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].RunID != "a" {
		t.Fatalf("unexpected geometry rows: %+v", rows)
	}
	if rows[0].Timestamp.IsZero() {
		t.Fatal("expected timestamp to default to now")
	}
}

func TestStore_OpenRejectsDirectoryPath(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("expected open error for directory path")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_OpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestStore_OpenCorruptDBPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	if err := os.WriteFile(path, []byte("this is not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path)
	if err == nil {
		t.Fatal("expected sqlite open error")
	}
	lower := strings.ToLower(err.Error())
	if !strings.Contains(lower, "not a database") && !strings.Contains(lower, "schema") {
		t.Fatalf("expected schema/open error, got: %v", err)
	}
}

func TestEnsureSchema_DetectsNewerVersionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := store.db.Exec(`INSERT OR REPLACE INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open(driverName, "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	err = EnsureSchema(db)
	if err == nil {
		t.Fatal("expected drift error")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsCorruptError(t *testing.T) {
	if !IsCorruptError(errors.New("database disk image is malformed")) {
		t.Fatal("expected malformed sqlite message to be treated as corrupt")
	}
	if IsCorruptError(errors.New("no such table")) {
		t.Fatal("unexpected corrupt classification")
	}
}
