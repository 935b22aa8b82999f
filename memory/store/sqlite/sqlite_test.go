package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mnemolabs/mnemo/memory/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "facts.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_PreferenceLastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	if err := store.PutPreference(ctx, "alice", "units", "fahrenheit"); err != nil {
		t.Fatalf("PutPreference failed: %v", err)
	}
	if err := store.PutPreference(ctx, "alice", "units", "celsius"); err != nil {
		t.Fatalf("PutPreference failed: %v", err)
	}

	prefs, err := store.Preferences(ctx, "alice")
	if err != nil {
		t.Fatalf("Preferences failed: %v", err)
	}
	if got := prefs["units"]; got != "celsius" {
		t.Errorf("expected latest write to win, got units=%q", got)
	}
	if len(prefs) != 1 {
		t.Errorf("expected a single preference row, got %d", len(prefs))
	}
}

func TestStore_PreferencesAreUserScoped(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	if err := store.PutPreference(ctx, "alice", "units", "celsius"); err != nil {
		t.Fatalf("PutPreference failed: %v", err)
	}
	if err := store.PutPreference(ctx, "bob", "units", "fahrenheit"); err != nil {
		t.Fatalf("PutPreference failed: %v", err)
	}

	prefs, err := store.Preferences(ctx, "alice")
	if err != nil {
		t.Fatalf("Preferences failed: %v", err)
	}
	if prefs["units"] != "celsius" {
		t.Errorf("alice's preference polluted by bob's: got %q", prefs["units"])
	}
}

func TestStore_FactsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	for _, content := range []string{"lives in Miami", "works as a pilot", "has two cats"} {
		if err := store.AddFact(ctx, "alice", "general", content, "conversation"); err != nil {
			t.Fatalf("AddFact failed: %v", err)
		}
	}

	facts, err := store.Facts(ctx, "alice", 2)
	if err != nil {
		t.Fatalf("Facts failed: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(facts))
	}
	if facts[0].Content != "has two cats" {
		t.Errorf("expected newest fact first, got %q", facts[0].Content)
	}
}

func TestStore_ClearIsUserScoped(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	if err := store.PutPreference(ctx, "alice", "units", "celsius"); err != nil {
		t.Fatalf("PutPreference failed: %v", err)
	}
	if err := store.AddFact(ctx, "alice", "general", "lives in Miami", ""); err != nil {
		t.Fatalf("AddFact failed: %v", err)
	}
	if err := store.PutPreference(ctx, "bob", "units", "kelvin"); err != nil {
		t.Fatalf("PutPreference failed: %v", err)
	}

	if err := store.Clear(ctx, "alice"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	prefs, err := store.Preferences(ctx, "alice")
	if err != nil {
		t.Fatalf("Preferences failed: %v", err)
	}
	if len(prefs) != 0 {
		t.Errorf("alice's preferences should be empty after clear, got %v", prefs)
	}
	facts, err := store.Facts(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("Facts failed: %v", err)
	}
	if len(facts) != 0 {
		t.Errorf("alice's facts should be empty after clear, got %d", len(facts))
	}

	prefs, err = store.Preferences(ctx, "bob")
	if err != nil {
		t.Fatalf("Preferences failed: %v", err)
	}
	if prefs["units"] != "kelvin" {
		t.Errorf("bob's preference lost on alice's clear: got %v", prefs)
	}
}

func TestStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "facts.db")

	store, err := sqlite.New(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.PutPreference(ctx, "alice", "units", "celsius"); err != nil {
		t.Fatalf("PutPreference failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	store, err = sqlite.New(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer store.Close()

	prefs, err := store.Preferences(ctx, "alice")
	if err != nil {
		t.Fatalf("Preferences failed: %v", err)
	}
	if prefs["units"] != "celsius" {
		t.Errorf("preference did not survive reopen: got %v", prefs)
	}
}
