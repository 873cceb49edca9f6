package marketdata

import (
	"testing"
	"time"
)

func TestLadderBookDeterministicWithoutNoise(t *testing.T) {
	builder, err := NewLadderBookBuilder("EQ-ACME", LadderConfig{
		Levels:        3,
		TickSize:      0.01,
		BaseQuantity:  500,
		QuantityDecay: 0.6,
	}, 1)
	if err != nil {
		t.Fatalf("build ladder: %v", err)
	}

	snapshot, err := builder.Build(100.0, time.Unix(1_700_000_000, 0).UTC())
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}

	wantBids := [][2]float64{{99.99, 500}, {99.98, 300}, {99.97, 180}}
	wantAsks := [][2]float64{{100.01, 500}, {100.02, 300}, {100.03, 180}}
	if len(snapshot.Bids) != len(wantBids) || len(snapshot.Asks) != len(wantAsks) {
		t.Fatalf("unexpected depth: %d bids, %d asks", len(snapshot.Bids), len(snapshot.Asks))
	}
	for i, want := range wantBids {
		if snapshot.Bids[i].Price != want[0] || snapshot.Bids[i].Quantity != want[1] {
			t.Fatalf("bid %d: got (%v, %v), want (%v, %v)",
				i, snapshot.Bids[i].Price, snapshot.Bids[i].Quantity, want[0], want[1])
		}
	}
	for i, want := range wantAsks {
		if snapshot.Asks[i].Price != want[0] || snapshot.Asks[i].Quantity != want[1] {
			t.Fatalf("ask %d: got (%v, %v), want (%v, %v)",
				i, snapshot.Asks[i].Price, snapshot.Asks[i].Quantity, want[0], want[1])
		}
	}
}

func TestLadderBookNoiseKeepsInvariants(t *testing.T) {
	builder, err := NewLadderBookBuilder("EQ-ACME", LadderConfig{
		Levels:        5,
		TickSize:      0.01,
		BaseQuantity:  500,
		QuantityDecay: 0.7,
		PriceNoise:    0.05, // noise dwarfs the tick so clamping must kick in
	}, 99)
	if err != nil {
		t.Fatalf("build ladder: %v", err)
	}
	now := time.Now().UTC()
	for i := 0; i < 200; i++ {
		snapshot, err := builder.Build(100.0, now)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if err := snapshot.Validate(); err != nil {
			t.Fatalf("iteration %d produced invalid book: %v", i, err)
		}
	}
}

func TestLadderBookSameSeedSameBooks(t *testing.T) {
	cfg := LadderConfig{Levels: 4, TickSize: 0.01, BaseQuantity: 100, QuantityDecay: 0.5, PriceNoise: 0.002}
	a, err := NewLadderBookBuilder("EQ-ACME", cfg, 11)
	if err != nil {
		t.Fatalf("build ladder: %v", err)
	}
	b, err := NewLadderBookBuilder("EQ-ACME", cfg, 11)
	if err != nil {
		t.Fatalf("build ladder: %v", err)
	}
	now := time.Now().UTC()
	for i := 0; i < 20; i++ {
		sa, err := a.Build(50.0, now)
		if err != nil {
			t.Fatalf("builder a iteration %d: %v", i, err)
		}
		sb, err := b.Build(50.0, now)
		if err != nil {
			t.Fatalf("builder b iteration %d: %v", i, err)
		}
		for j := range sa.Bids {
			if sa.Bids[j] != sb.Bids[j] || sa.Asks[j] != sb.Asks[j] {
				t.Fatalf("iteration %d level %d diverged", i, j)
			}
		}
	}
}

func TestLadderBookRejectsNonPositiveMid(t *testing.T) {
	builder, err := NewLadderBookBuilder("EQ-ACME", LadderConfig{
		Levels:        2,
		TickSize:      0.01,
		BaseQuantity:  10,
		QuantityDecay: 1,
	}, 0)
	if err != nil {
		t.Fatalf("build ladder: %v", err)
	}
	if _, err := builder.Build(0, time.Now().UTC()); err == nil {
		t.Fatal("expected error for zero mid")
	}
	if _, err := builder.Build(-1, time.Now().UTC()); err == nil {
		t.Fatal("expected error for negative mid")
	}
}

func TestLadderBookRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  LadderConfig
	}{
		{"zero levels", LadderConfig{Levels: 0, TickSize: 0.01, BaseQuantity: 1, QuantityDecay: 0.5}},
		{"zero tick", LadderConfig{Levels: 1, TickSize: 0, BaseQuantity: 1, QuantityDecay: 0.5}},
		{"zero base quantity", LadderConfig{Levels: 1, TickSize: 0.01, BaseQuantity: 0, QuantityDecay: 0.5}},
		{"decay above one", LadderConfig{Levels: 1, TickSize: 0.01, BaseQuantity: 1, QuantityDecay: 1.5}},
		{"negative noise", LadderConfig{Levels: 1, TickSize: 0.01, BaseQuantity: 1, QuantityDecay: 0.5, PriceNoise: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewLadderBookBuilder("EQ-ACME", tc.cfg, 0); err == nil {
				t.Fatal("expected config rejection")
			}
		})
	}
}
