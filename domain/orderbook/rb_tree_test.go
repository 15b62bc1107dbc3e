package orderbook

import (
	"math/rand"
	"testing"
)

func TestRBTreeInsertFindDelete(t *testing.T) {
	tree := NewRBTree(ascending)
	pl1 := tree.UpsertLevel(100)
	if pl1 == nil {
		t.Fatal("UpsertLevel failed")
	}
	if pl2 := tree.FindLevel(100); pl2 != pl1 {
		t.Error("FindLevel did not return same PriceLevel")
	}

	tree.UpsertLevel(200)
	if tree.First().Price != 100 {
		t.Error("expected first=100")
	}
	if tree.Size() != 2 {
		t.Errorf("expected 2 levels, got %d", tree.Size())
	}

	if !tree.DeleteLevel(100) {
		t.Error("DeleteLevel failed")
	}
	if tree.FindLevel(100) != nil {
		t.Error("expected level 100 to be gone")
	}
	if tree.First().Price != 200 {
		t.Error("expected first=200 after deleting the best level")
	}
}

func TestRBTreeDescendingOrder(t *testing.T) {
	tree := NewRBTree(descending)
	for _, p := range []int64{100, 300, 200} {
		tree.UpsertLevel(p)
	}

	var got []int64
	tree.ForEach(func(pl *PriceLevel) bool {
		got = append(got, pl.Price)
		return true
	})
	want := []int64{300, 200, 100}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("descending walk = %v, want %v", got, want)
		}
	}
}

func TestRBTreeForEachStops(t *testing.T) {
	tree := NewRBTree(ascending)
	for p := int64(1); p <= 10; p++ {
		tree.UpsertLevel(p)
	}
	visited := 0
	tree.ForEach(func(*PriceLevel) bool {
		visited++
		return visited < 3
	})
	if visited != 3 {
		t.Errorf("visited %d levels, want 3", visited)
	}
}

// --- Edge Cases ---

func TestDeleteNonExistentLevel(t *testing.T) {
	tree := NewRBTree(ascending)
	if tree.DeleteLevel(123) {
		t.Error("expected false when deleting non-existent level")
	}
}

func TestEmptyTreeFirst(t *testing.T) {
	tree := NewRBTree(ascending)
	if tree.First() != nil {
		t.Error("expected nil for first on empty tree")
	}
}

func TestUpsertDuplicateLevel(t *testing.T) {
	tree := NewRBTree(ascending)
	pl1 := tree.UpsertLevel(150)
	pl2 := tree.UpsertLevel(150)
	if pl1 != pl2 {
		t.Error("Upsert should return the same node for duplicate level")
	}
	if tree.Size() != 1 {
		t.Errorf("size = %d, want 1", tree.Size())
	}
}

func TestRBTreeRandomOpsKeepInvariants(t *testing.T) {
	for _, less := range []func(a, b int64) bool{ascending, descending} {
		tree := NewRBTree(less)
		present := make(map[int64]bool)
		rng := rand.New(rand.NewSource(7))

		for i := 0; i < 5000; i++ {
			p := int64(rng.Intn(500))
			if rng.Intn(3) == 0 {
				if tree.DeleteLevel(p) != present[p] {
					t.Fatalf("DeleteLevel(%d) disagreed with model", p)
				}
				delete(present, p)
			} else {
				tree.UpsertLevel(p)
				present[p] = true
			}

			if tree.checkInvariants() < 0 {
				t.Fatalf("red-black invariants broken after op %d", i)
			}
			if tree.Size() != len(present) {
				t.Fatalf("size = %d, model = %d", tree.Size(), len(present))
			}
		}

		prev := tree.First()
		tree.ForEach(func(pl *PriceLevel) bool {
			if pl != prev && !less(prev.Price, pl.Price) {
				t.Fatalf("walk out of order: %d before %d", prev.Price, pl.Price)
			}
			prev = pl
			return true
		})
	}
}
