package models

import "time"

// AuditAction identifies the lifecycle action recorded by an audit entry
type AuditAction string

const (
	AuditClosed     AuditAction = "closed"
	AuditReopened   AuditAction = "reopened"
	AuditRecomputed AuditAction = "recomputed"
)

// PeriodAuditEntry is one append-only record of a closure, reopen, or
// recompute. Entries are never mutated or deleted; together they reconstruct
// a period's history across close/reopen cycles.
type PeriodAuditEntry struct {
	ID           string
	PeriodID     string
	Action       AuditAction
	Actor        string
	BeforeTotals Totals
	AfterTotals  Totals
	OccurredAt   time.Time
}
