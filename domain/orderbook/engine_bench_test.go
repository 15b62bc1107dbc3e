package orderbook

import (
	"math/rand"
	"testing"
)

// ---------------- Basic Benchmarks ---------------- //

func BenchmarkSubmitResting(b *testing.B) {
	e := NewEngine(Config{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Submit(Buy, Limit, 100, 1000); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCancel(b *testing.B) {
	e := NewEngine(Config{})
	ids := make([]uint64, b.N)
	for i := range ids {
		ids[i], _ = e.Submit(Buy, Limit, int64(100+i%64), 1000)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !e.Cancel(ids[i]) {
			b.Fatalf("cancel %d failed", ids[i])
		}
	}
}

func BenchmarkSubmitCrossing(b *testing.B) {
	e := NewEngine(Config{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Submit(Sell, Limit, 100, 10)
		e.Submit(Buy, Limit, 100, 10)
	}
}

func BenchmarkDepth(b *testing.B) {
	e := NewEngine(Config{})
	for i := 0; i < 50000; i++ {
		if i%2 == 0 {
			e.Submit(Buy, Limit, int64(9000+i%500), 1000)
		} else {
			e.Submit(Sell, Limit, int64(10001+i%500), 1000)
		}
	}
	q := e.Query()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if len(q.Depth(10, Buy)) != 10 {
			b.Fatal("depth returned too few levels")
		}
	}
}

func BenchmarkMixedWorkload(b *testing.B) {
	e := NewEngine(Config{})
	rng := rand.New(rand.NewSource(1))
	live := make([]uint64, 0, 1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		switch r := rng.Intn(10); {
		case r < 2 && len(live) > 0:
			j := rng.Intn(len(live))
			e.Cancel(live[j])
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
		case r < 3:
			e.Submit(Side(rng.Intn(2)), Market, 0, int64(1+rng.Intn(50)))
		default:
			id, _ := e.Submit(Side(rng.Intn(2)), Limit, int64(9950+rng.Intn(100)), int64(1+rng.Intn(100)))
			live = append(live, id)
		}
	}
}
