package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/rideops/commission-service/internal/domain/ports"
)

// nullText creates a pgtype.Text with empty string handling
func nullText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// nullTime creates a pgtype.Timestamptz from an optional time
func nullTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

// timePtr converts a nullable column back to an optional time
func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// decimalToNumeric converts decimal.Decimal to pgtype.Numeric
func decimalToNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	n := pgtype.Numeric{}
	if err := n.Scan(d.String()); err != nil {
		return n, fmt.Errorf("convert decimal: %w", err)
	}
	return n, nil
}

// numericToDecimal converts pgtype.Numeric to decimal.Decimal
func numericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	str, err := n.MarshalJSON()
	if err != nil {
		return decimal.Zero, fmt.Errorf("marshal numeric: %w", err)
	}
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}
	return decimal.NewFromString(string(str))
}

// executor is shared by every repository: use the caller's transaction when
// one was passed, the pool otherwise
func executor(db ports.DBTX, pool ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return pool
}
