package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/forPelevin/reelcut/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndGetRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	run := store.Run{
		ID:         "run-1",
		Input:      "talk.mp4",
		SourcePath: "/videos/talk.mp4",
		OutDir:     "out/talk-20260301-120000Z-abc123",
		Status:     store.StatusPartial,
		Limit:      3,
		Segments:   12,
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Clips: []store.Clip{
			{Position: 0, Segment: 2, StartSec: 4.5, EndSec: 9, Score: 0.97, Path: "a.mp4", Text: "great"},
			{Position: 1, Segment: 7, StartSec: 30, EndSec: 33.2, Score: 0.95, Path: "b.mp4"},
		},
		Failures: []store.Failure{{Segment: 9, Kind: "render", Step: "encode", Reason: "exit status 1"}},
	}
	if err := s.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected run")
	}
	if got.Status != store.StatusPartial || got.Segments != 12 || !got.StartedAt.Equal(start) {
		t.Fatalf("unexpected run: %+v", got)
	}
	if len(got.Clips) != 2 || got.Clips[0].Text != "great" || got.Clips[1].Segment != 7 {
		t.Fatalf("unexpected clips: %+v", got.Clips)
	}
	if len(got.Failures) != 1 || got.Failures[0].Step != "encode" {
		t.Fatalf("unexpected failures: %+v", got.Failures)
	}

	missing, err := s.GetRun(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing run, got %+v, %v", missing, err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		r := store.Run{
			ID:         id,
			Input:      id + ".mp4",
			Status:     store.StatusCompleted,
			Limit:      3,
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Minute),
			Clips:      []store.Clip{{Position: 0, Path: id + "-0.mp4"}},
		}
		if err := s.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun(%s) failed: %v", id, err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", runs)
	}
	if runs[0].ClipCount != 1 || runs[0].FailureCount != 0 {
		t.Fatalf("unexpected counts: %+v", runs[0])
	}

	all, err := s.ListRuns(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d, %v", len(all), err)
	}
}

func TestRecordRunRequiresID(t *testing.T) {
	s := openStore(t)
	if err := s.RecordRun(context.Background(), store.Run{}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	now := time.Now().UTC()
	if err := s.RecordRun(context.Background(), store.Run{ID: "x", Input: "x", Status: store.StatusFailed, StartedAt: now, FinishedAt: now}); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	_ = s.Close()

	s2, err := store.Open(path)
	if err != nil {
		if errors.Is(err, store.ErrSchemaMismatch) {
			t.Fatalf("unexpected schema mismatch: %v", err)
		}
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()
	runs, err := s2.ListRuns(context.Background(), 0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected history to persist, got %d, %v", len(runs), err)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := store.Open(" "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
