package schema

import (
	"testing"
	"time"
)

func TestTickEventValidate(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name    string
		tick    TickEvent
		wantErr bool
	}{
		{
			name: "well formed",
			tick: TickEvent{InstrumentID: "EQ-ACME", Timestamp: now, Bid: 99.995, Ask: 100.005, Mid: 100, LiquidityRegime: LiquidityHigh},
		},
		{
			name:    "bid above mid",
			tick:    TickEvent{InstrumentID: "EQ-ACME", Timestamp: now, Bid: 100.1, Ask: 100.2, Mid: 100},
			wantErr: true,
		},
		{
			name:    "mid above ask",
			tick:    TickEvent{InstrumentID: "EQ-ACME", Timestamp: now, Bid: 99.9, Ask: 99.95, Mid: 100},
			wantErr: true,
		},
		{
			name:    "missing instrument",
			tick:    TickEvent{Timestamp: now, Bid: 99, Ask: 101, Mid: 100},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tick.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOrderBookSnapshotValidate(t *testing.T) {
	now := time.Now().UTC()
	valid := OrderBookSnapshot{
		InstrumentID: "EQ-ACME",
		Timestamp:    now,
		Bids:         []BookLevel{{Price: 99.99, Quantity: 500}, {Price: 99.98, Quantity: 300}},
		Asks:         []BookLevel{{Price: 100.01, Quantity: 500}, {Price: 100.02, Quantity: 300}},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid snapshot rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(OrderBookSnapshot) OrderBookSnapshot
	}{
		{
			name: "unsorted bids",
			mutate: func(s OrderBookSnapshot) OrderBookSnapshot {
				s.Bids = []BookLevel{{Price: 99.98, Quantity: 500}, {Price: 99.99, Quantity: 300}}
				return s
			},
		},
		{
			name: "duplicate bid price",
			mutate: func(s OrderBookSnapshot) OrderBookSnapshot {
				s.Bids = []BookLevel{{Price: 99.99, Quantity: 500}, {Price: 99.99, Quantity: 300}}
				return s
			},
		},
		{
			name: "unsorted asks",
			mutate: func(s OrderBookSnapshot) OrderBookSnapshot {
				s.Asks = []BookLevel{{Price: 100.02, Quantity: 500}, {Price: 100.01, Quantity: 300}}
				return s
			},
		},
		{
			name: "crossed book",
			mutate: func(s OrderBookSnapshot) OrderBookSnapshot {
				s.Bids = []BookLevel{{Price: 100.05, Quantity: 500}}
				return s
			},
		},
		{
			name: "non-positive price",
			mutate: func(s OrderBookSnapshot) OrderBookSnapshot {
				s.Bids = []BookLevel{{Price: 0, Quantity: 500}}
				return s
			},
		},
		{
			name: "non-positive quantity",
			mutate: func(s OrderBookSnapshot) OrderBookSnapshot {
				s.Asks = []BookLevel{{Price: 100.01, Quantity: 0}}
				return s
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.mutate(valid).Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestOrderBookSnapshotBestLevels(t *testing.T) {
	empty := OrderBookSnapshot{InstrumentID: "EQ-ACME"}
	if _, ok := empty.BestBid(); ok {
		t.Error("empty book should have no best bid")
	}
	if _, ok := empty.BestAsk(); ok {
		t.Error("empty book should have no best ask")
	}

	book := OrderBookSnapshot{
		InstrumentID: "EQ-ACME",
		Bids:         []BookLevel{{Price: 99.99, Quantity: 500}},
		Asks:         []BookLevel{{Price: 100.01, Quantity: 400}},
	}
	bid, ok := book.BestBid()
	if !ok || bid.Price != 99.99 {
		t.Fatalf("unexpected best bid %v ok=%v", bid, ok)
	}
	ask, ok := book.BestAsk()
	if !ok || ask.Price != 100.01 {
		t.Fatalf("unexpected best ask %v ok=%v", ask, ok)
	}
}

func TestDealerQuoteValidate(t *testing.T) {
	now := time.Now().UTC()
	good := DealerQuoteEvent{InstrumentID: "BOND-5Y", DealerID: "DEALER-A", Timestamp: now, Bid: 0.0348, Ask: 0.0352}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid quote rejected: %v", err)
	}

	inverted := good
	inverted.Bid, inverted.Ask = inverted.Ask, inverted.Bid
	if err := inverted.Validate(); err == nil {
		t.Error("inverted quote should fail validation")
	}

	equal := good
	equal.Ask = equal.Bid
	if err := equal.Validate(); err == nil {
		t.Error("zero-spread quote should fail validation")
	}

	anonymous := good
	anonymous.DealerID = ""
	if err := anonymous.Validate(); err == nil {
		t.Error("quote without dealer should fail validation")
	}
}

func TestExecutionID(t *testing.T) {
	if got := ExecutionID("ord-123"); got != "ord-123-exec" {
		t.Errorf("ExecutionID() = %s, want ord-123-exec", got)
	}
}
