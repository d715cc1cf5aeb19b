package domain

// UsageRecord tracks generation calls for one user and UTC day. The stored
// date is authoritative: a record whose Date differs from today counts as
// zero used.
type UsageRecord struct {
	UserID string
	Date   string // YYYY-MM-DD, UTC
	Used   int
}
