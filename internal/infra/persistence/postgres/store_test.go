package postgres

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HtFilia/trading-board/internal/schema"
)

func TestRunInTxRequiresCallback(t *testing.T) {
	err := runInTx(context.Background(), nil, "test store", nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !strings.Contains(err.Error(), "test store: transaction callback required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: uniqueViolation}
	if !isUniqueViolation(fmt.Errorf("insert user: %w", pgErr)) {
		t.Fatal("expected wrapped 23505 to be detected")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("foreign key violations are not unique violations")
	}
	if isUniqueViolation(fmt.Errorf("plain failure")) {
		t.Fatal("plain errors are not unique violations")
	}
}

func TestNullableFloat(t *testing.T) {
	if got := nullableFloat(nil); got != nil {
		t.Fatalf("expected nil for nil pointer, got %v", got)
	}
	value := 101.25
	if got := nullableFloat(&value); got != 101.25 {
		t.Fatalf("expected 101.25, got %v", got)
	}
}

func TestDecimalFromText(t *testing.T) {
	dec, err := decimalFromText(" 1000000.50 ")
	if err != nil {
		t.Fatalf("parse decimal: %v", err)
	}
	if dec.String() != "1000000.5" {
		t.Fatalf("unexpected decimal %s", dec)
	}
	if _, err := decimalFromText(""); err == nil {
		t.Fatal("expected error for empty value")
	}
	if _, err := decimalFromText("not-a-number"); err == nil {
		t.Fatal("expected error for malformed value")
	}
}

func TestFloatFromText(t *testing.T) {
	got, err := floatFromText("100.5")
	if err != nil {
		t.Fatalf("parse float: %v", err)
	}
	if got != 100.5 {
		t.Fatalf("expected 100.5, got %v", got)
	}
	if _, err := floatFromText(""); err == nil {
		t.Fatal("expected error for empty value")
	}
}

func TestEncodeLevelsKeepsLadderShape(t *testing.T) {
	snapshot := schema.OrderBookSnapshot{
		InstrumentID: "EQ-ACME",
		Timestamp:    time.Now().UTC(),
		Bids:         []schema.BookLevel{{Price: 99.9, Quantity: 500}, {Price: 99.8, Quantity: 450}},
		Asks:         []schema.BookLevel{{Price: 100.1, Quantity: 480}},
	}
	raw, err := encodeLevels(snapshot)
	if err != nil {
		t.Fatalf("encode levels: %v", err)
	}
	var decoded map[string][]schema.BookLevel
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode levels: %v", err)
	}
	if len(decoded["bids"]) != 2 || len(decoded["asks"]) != 1 {
		t.Fatalf("unexpected ladder shape: %s", raw)
	}
	if decoded["bids"][0].Price != 99.9 {
		t.Fatalf("expected top bid 99.9, got %v", decoded["bids"][0].Price)
	}
}

func TestEncodeMetadataDefaultsToEmptyObject(t *testing.T) {
	raw, err := encodeMetadata(nil)
	if err != nil {
		t.Fatalf("encode nil metadata: %v", err)
	}
	if string(raw) != "{}" {
		t.Fatalf("expected empty object, got %s", raw)
	}

	raw, err = encodeMetadata(map[string]any{"instrument_type": "EQUITY"})
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if decoded["instrument_type"] != "EQUITY" {
		t.Fatalf("unexpected metadata %s", raw)
	}
}
