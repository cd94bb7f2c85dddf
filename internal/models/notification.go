package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Notification struct {
	bun.BaseModel `bun:"table:notifications"`

	ID        string    `bun:"id,pk"`
	UserID    string    `bun:"user_id,notnull"`
	Type      string    `bun:"type,notnull"`
	Title     string    `bun:"title,notnull"`
	Body      string    `bun:"body,notnull"`
	IsRead    bool      `bun:"is_read,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}
