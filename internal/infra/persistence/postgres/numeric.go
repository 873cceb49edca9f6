package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// decimalFromText parses a NUMERIC column read back with a ::text cast.
func decimalFromText(value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Decimal{}, fmt.Errorf("numeric value required")
	}
	out, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse numeric %q: %w", trimmed, err)
	}
	return out, nil
}

// floatFromText parses a NUMERIC column read back with a ::text cast into a
// float64.
func floatFromText(value string) (float64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("numeric value required")
	}
	out, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("parse numeric %q: %w", trimmed, err)
	}
	return out, nil
}
