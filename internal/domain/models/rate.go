package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateSource identifies which configuration level supplied a rate
type RateSource string

const (
	RateSourceGlobal     RateSource = "global"
	RateSourceEnterprise RateSource = "enterprise"
)

// CommissionRateConfig is either the platform-wide default commission rate
// (EnterpriseID empty) or an enterprise-specific override. A config is
// effective from EffectiveFrom until superseded by a later config of the
// same scope.
type CommissionRateConfig struct {
	ID            string
	EnterpriseID  string // empty for the global default
	RatePercent   decimal.Decimal
	EffectiveFrom time.Time
	Active        bool
	CreatedAt     time.Time
}

// IsGlobal reports whether this config is the platform-wide default
func (c *CommissionRateConfig) IsGlobal() bool {
	return c.EnterpriseID == ""
}

// Source returns the rate source level of this config
func (c *CommissionRateConfig) Source() RateSource {
	if c.IsGlobal() {
		return RateSourceGlobal
	}
	return RateSourceEnterprise
}

// RateSegment is a sub-range of a period during which a single commission
// rate was authoritative for an enterprise. Segments are half-open and
// contiguous over the period they partition.
type RateSegment struct {
	Start       time.Time
	End         time.Time
	RatePercent decimal.Decimal
	Source      RateSource
}

// Days returns the whole number of days covered by the segment
func (s RateSegment) Days() int32 {
	return int32(s.End.Sub(s.Start).Hours() / 24)
}
