package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TicketScan is the append-only audit record of one scan attempt.
// Rows are never updated or deleted by normal operation.
type TicketScan struct {
	bun.BaseModel `bun:"table:ticket_scans"`

	ID        string     `bun:"id,pk"`
	TicketID  string     `bun:"ticket_id,notnull"`
	AgentID   string     `bun:"agent_id,notnull"`
	SessionID *string    `bun:"session_id,nullzero"`
	Result    ScanResult `bun:"result,notnull"`
	ScannedAt time.Time  `bun:"scanned_at,notnull"`
}
