package agentstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voicebridge/voicebridge/pkg/kv"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(kv.NewMemory())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
	return s
}

func TestAddSetsCurrentAndTimestamps(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.Add(ctx, Agent{ID: "a1", Model: "gpt-4o", Name: "helper", Instructions: "be brief"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := s.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CreatedAt.IsZero() || got.LastUsed.IsZero() {
		t.Fatalf("timestamps not set: %+v", got)
	}

	current, err := s.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current.ID != "a1" {
		t.Fatalf("current = %s, want a1", current.ID)
	}
}

func TestFindMatchesExactConfig(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.Add(ctx, Agent{ID: "a1", Model: "gpt-4o", Name: "helper", Instructions: "be brief"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, err := s.Find(ctx, "gpt-4o", "helper", "be brief"); err != nil {
		t.Fatalf("Find(exact): %v", err)
	}
	if _, err := s.Find(ctx, "gpt-4o", "helper", "be verbose"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Find(different instructions) = %v, want ErrNotFound", err)
	}
}

func TestActivateBumpsLastUsed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.Add(ctx, Agent{ID: "a1", Model: "m", Name: "n", Instructions: "i"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(ctx, Agent{ID: "a2", Model: "m", Name: "n2", Instructions: "i"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	before, _ := s.Get(ctx, "a1")
	activated, err := s.Activate(ctx, "a1")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !activated.LastUsed.After(before.LastUsed) {
		t.Fatalf("LastUsed not bumped: %v -> %v", before.LastUsed, activated.LastUsed)
	}
	current, _ := s.Current(ctx)
	if current.ID != "a1" {
		t.Fatalf("current = %s, want a1", current.ID)
	}

	if _, err := s.Activate(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Activate(unknown) = %v, want ErrNotFound", err)
	}
}

func TestDeleteClearsCurrentPointer(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.Add(ctx, Agent{ID: "a1", Model: "m", Name: "n", Instructions: "i"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(ctx, Agent{ID: "a2", Model: "m", Name: "n2", Instructions: "i"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// a2 is current; deleting a1 must leave the pointer alone.
	if err := s.Delete(ctx, "a1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if current, err := s.Current(ctx); err != nil || current.ID != "a2" {
		t.Fatalf("Current = %v, %v", current, err)
	}

	// Deleting the current agent clears the pointer.
	if err := s.Delete(ctx, "a2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Current(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Current after delete = %v, want ErrNotFound", err)
	}

	if err := s.Delete(ctx, "a2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete(absent) = %v, want ErrNotFound", err)
	}
}

func TestListReturnsAllAgents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, id := range []string{"b", "a", "c"} {
		if err := s.Add(ctx, Agent{ID: id, Model: "m", Name: id, Instructions: "i"}); err != nil {
			t.Fatalf("Add(%s): %v", id, err)
		}
	}
	agents, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(agents) != 3 {
		t.Fatalf("List = %d agents, want 3", len(agents))
	}
	for i, want := range []string{"a", "b", "c"} {
		if agents[i].ID != want {
			t.Fatalf("agents[%d].ID = %s, want %s", i, agents[i].ID, want)
		}
	}
}
