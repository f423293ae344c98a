package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"blenderer/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "logs", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStartAndFinishSession(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	err := store.Start(ctx, history.Session{
		ID:          "b7e0c5f2-0000-4000-8000-000000000001",
		ScenePath:   "/projects/intro.blend",
		OutputPath:  "/projects/intro.mp4",
		StartFrame:  1,
		TotalFrames: 250,
		Workers:     4,
		Policy:      "wait_all",
		State:       "initialized",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	running, err := store.Get(ctx, "b7e0c5f2-0000-4000-8000-000000000001")
	if err != nil || running == nil {
		t.Fatalf("Get running: %v %v", running, err)
	}
	if running.FinishedAt != nil || running.Duration() != 0 {
		t.Fatal("running session must not have a finish time")
	}

	err = store.Finish(ctx, running.ID, history.Outcome{
		StartFrame:   1,
		TotalFrames:  250,
		Workers:      4,
		State:        "failed",
		FailedStage:  "fleet",
		ErrorClass:   "fleet",
		ErrorMessage: "1 of 4 workers failed",
		ExitCodes:    []int{0, 0, 1, 0},
	})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	done, err := store.Get(ctx, running.ID)
	if err != nil {
		t.Fatalf("Get finished: %v", err)
	}
	if done.State != "failed" || done.FailedStage != "fleet" || done.ErrorClass != "fleet" {
		t.Fatalf("unexpected outcome: %+v", done)
	}
	if done.OutputPath != "/projects/intro.mp4" || done.TotalFrames != 250 {
		t.Fatalf("plan fields not kept: %+v", done)
	}
	if len(done.ExitCodes) != 4 || done.ExitCodes[2] != 1 {
		t.Fatalf("exit codes = %v", done.ExitCodes)
	}
	if done.FinishedAt == nil {
		t.Fatal("expected finish time")
	}
}

func TestListNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		err := store.Start(ctx, history.Session{
			ID:        id,
			State:     "finalized",
			Policy:    "wait_all",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Start %s: %v", id, err)
		}
	}

	sessions, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "third" || sessions[1].ID != "second" {
		t.Fatalf("unexpected order: %v", ids(sessions))
	}

	all, err := store.List(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("List all = %d, %v", len(all), err)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := openStore(t)
	session, err := store.Get(context.Background(), "missing")
	if err != nil || session != nil {
		t.Fatalf("Get missing = %v, %v", session, err)
	}
}

func TestStartRequiresID(t *testing.T) {
	store := openStore(t)
	if err := store.Start(context.Background(), history.Session{}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Start(context.Background(), history.Session{ID: "kept", State: "initialized"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_ = store.Close()

	reopened, err := history.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	session, err := reopened.Get(context.Background(), "kept")
	if err != nil || session == nil {
		t.Fatalf("expected persisted row, got %v %v", session, err)
	}
	if errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatal("unexpected schema mismatch")
	}
}

func ids(sessions []*history.Session) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}
