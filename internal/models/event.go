package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          string      `bun:"id,pk"`
	OrganiserID string      `bun:"organiser_id,notnull"`
	Title       string      `bun:"title,notnull"`
	Description *string     `bun:"description,nullzero"`
	StartDate   time.Time   `bun:"start_date,notnull"`
	Venue       *string     `bun:"venue,nullzero"`
	Capacity    int         `bun:"capacity,notnull"`
	Status      EventStatus `bun:"status,notnull"`
	CreatedAt   time.Time   `bun:"created_at,notnull"`
	UpdatedAt   time.Time   `bun:"updated_at,notnull"`
}

// EventSession is one bounded slot of a multi-day event.
// Invariant: EndsAt > StartsAt, enforced on create/update.
type EventSession struct {
	bun.BaseModel `bun:"table:event_sessions"`

	ID        string    `bun:"id,pk"`
	EventID   string    `bun:"event_id,notnull"`
	StartsAt  time.Time `bun:"starts_at,notnull"`
	EndsAt    time.Time `bun:"ends_at,notnull"`
	Label     *string   `bun:"label,nullzero"`
	DayIndex  *int      `bun:"day_index,nullzero"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// EventAgent assigns a check-in agent to an event.
type EventAgent struct {
	bun.BaseModel `bun:"table:event_agents"`

	EventID string `bun:"event_id,pk"`
	AgentID string `bun:"agent_id,pk"`
}
