package session

import (
	"testing"
	"time"
)

func TestInsertDistinctIDs(t *testing.T) {
	table := NewTable()
	a := &Session{ID: 0xAAAA, EstablishedAt: time.Unix(1, 0)}
	b := &Session{ID: 0xBBBB, EstablishedAt: time.Unix(2, 0)}

	table.Insert(a)
	table.Insert(b)

	gotA, ok := table.Find(0xAAAA)
	if !ok || gotA != a {
		t.Fatalf("Find(0xAAAA) = %v, %v; want %v", gotA, ok, a)
	}
	gotB, ok := table.Find(0xBBBB)
	if !ok || gotB != b {
		t.Fatalf("Find(0xBBBB) = %v, %v; want %v", gotB, ok, b)
	}
	if gotA == gotB {
		t.Error("distinct ids returned the same session")
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
}

func TestInsertReplaces(t *testing.T) {
	table := NewTable()
	first := &Session{ID: 0xAAAA, EstablishedAt: time.Unix(1, 0)}
	second := &Session{ID: 0xAAAA, EstablishedAt: time.Unix(5, 0)}

	if table.Insert(first) {
		t.Error("first insert reported a replacement")
	}
	if !table.Insert(second) {
		t.Error("second insert did not report a replacement")
	}

	got, _ := table.Find(0xAAAA)
	if got != second {
		t.Errorf("Find returned %v, want the replacing session", got)
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}
}

func TestFindUnknown(t *testing.T) {
	table := NewTable()
	if s, ok := table.Find(42); ok || s != nil {
		t.Errorf("Find(42) on empty table = %v, %v", s, ok)
	}
}

func TestRemove(t *testing.T) {
	table := NewTable()
	table.Insert(&Session{ID: 1})
	table.Insert(&Session{ID: 2})

	if !table.Remove(1) {
		t.Error("Remove(1) reported absent")
	}
	if _, ok := table.Find(1); ok {
		t.Error("session 1 still present after Remove")
	}
	if _, ok := table.Find(2); !ok {
		t.Error("session 2 removed as a side effect")
	}

	// Unknown ids are a no-op.
	if table.Remove(99) {
		t.Error("Remove(99) reported present")
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}
}

func TestSnapshotCopies(t *testing.T) {
	table := NewTable()
	table.Insert(&Session{ID: 7, Name: "peer"})

	snap := table.Snapshot()
	if len(snap) != 1 || snap[0].ID != 7 || snap[0].Name != "peer" {
		t.Fatalf("Snapshot() = %+v", snap)
	}

	snap[0].Name = "changed"
	got, _ := table.Find(7)
	if got.Name != "peer" {
		t.Error("Snapshot aliased the stored session")
	}
}
