package database

import "time"

// Session is one uploaded chat export: the parsed messages and the computed
// KPI bundle, both stored as JSON. LastAccessAt drives expiry.
type Session struct {
	ID        string    `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	Timezone     string    `db:"timezone"`
	MessageCount int       `db:"message_count"`
	Messages     []byte    `db:"messages"`
	KPIs         []byte    `db:"kpis"`
	LastAccessAt time.Time `db:"last_access_at"`
}

// CacheEntry is one cached analysis result, keyed by analysis kind and the
// content hash of the analyzed transcript.
type CacheEntry struct {
	Kind      string    `db:"kind"`
	Key       string    `db:"key"`
	Payload   []byte    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}
