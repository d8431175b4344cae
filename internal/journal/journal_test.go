package journal_test

import (
	"context"
	"path/filepath"
	"testing"

	"dpxflow/internal/journal"
)

func openJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "logs", "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndHistory(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	entries := []journal.Entry{
		{RunID: "r1", Sequence: "N_1", Kind: journal.KindMove, From: "assessment-intake", To: "policy-check-pending", Path: "/d/N_1"},
		{RunID: "r1", Sequence: "N_2", Kind: journal.KindHold, From: "policy-check-pending", Detail: "tool failed"},
		{RunID: "r1", Sequence: "N_1", Kind: journal.KindMove, From: "policy-check-pending", To: "ready-to-cook", Path: "/c/N_1"},
	}
	for _, e := range entries {
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := j.History(ctx, "N_1", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].To != "ready-to-cook" || got[1].To != "policy-check-pending" {
		t.Fatalf("expected newest first, got %+v", got)
	}
	if got[0].RecordedAt.IsZero() {
		t.Fatal("expected recorded timestamp")
	}

	all, err := j.History(ctx, "", 1)
	if err != nil {
		t.Fatalf("History all: %v", err)
	}
	if len(all) != 1 || all[0].Sequence != "N_1" {
		t.Fatalf("unexpected limited history: %+v", all)
	}

	held, err := j.History(ctx, "N_2", 0)
	if err != nil {
		t.Fatalf("History N_2: %v", err)
	}
	if len(held) != 1 || held[0].Kind != journal.KindHold || held[0].To != "" || held[0].Detail != "tool failed" {
		t.Fatalf("unexpected hold entry: %+v", held)
	}
}

func TestRecordValidatesEntry(t *testing.T) {
	j := openJournal(t)
	if err := j.Record(context.Background(), journal.Entry{Kind: journal.KindMove}); err == nil {
		t.Fatal("expected missing sequence error")
	}
	if err := j.Record(context.Background(), journal.Entry{Sequence: "x"}); err == nil {
		t.Fatal("expected missing kind error")
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := j.Record(context.Background(), journal.Entry{Sequence: "N_1", Kind: journal.KindMove, From: "a"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	_ = j.Close()

	reopened, err := journal.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.History(context.Background(), "N_1", 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("history after reopen: %v %+v", err, got)
	}
}
