package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"deepsearch/internal/domain"
	"deepsearch/internal/memory"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSnapshotFile_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	src, err := memory.NewSQLiteStore(filepath.Join(dir, "src.db"), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	src.CreateConversation(ctx, domain.Conversation{ID: "c1", Title: "what is go"})
	src.AddMessage(ctx, "c1", domain.MessageRecord{Role: domain.RoleUser, Content: "what is go"})

	snap, err := src.Export(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "snap.json")
	if err := writeSnapshot(path, snap); err != nil {
		t.Fatalf("writeSnapshot: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Mode().Perm() != 0o600 {
		t.Errorf("snapshot should be private, got %v %v", info, err)
	}

	loaded, err := readSnapshot(path)
	if err != nil {
		t.Fatalf("readSnapshot: %v", err)
	}

	dst, err := memory.NewSQLiteStore(filepath.Join(dir, "dst.db"), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer dst.Close()
	stats, err := dst.Import(ctx, loaded)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Conversations != 1 || stats.Messages != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if conv, _ := dst.GetConversation(ctx, "c1"); conv == nil || conv.Title != "what is go" {
		t.Errorf("conversation not restored: %+v", conv)
	}
}

func TestDecodeSnapshot_RejectsForeignFiles(t *testing.T) {
	for name, in := range map[string]string{
		"plain text":     "not json",
		"config file":    `{"general":{"logLevel":"info"}}`,
		"missing schema": `{"conversations":[],"cache":[]}`,
	} {
		if _, err := decodeSnapshot(strings.NewReader(in)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("DEBUG").String() != "DEBUG" || parseLevel("bogus").String() != "INFO" {
		t.Error("unexpected level mapping")
	}
}
