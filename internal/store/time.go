// ABOUTME: Timestamp normalization shared by both backends
// ABOUTME: All stored instants are second-precision UTC so reads round-trip byte-identically

package store

import "time"

// nowUTC returns the current instant normalized to stored precision.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// fmtTime renders an instant the way both backends persist and compare it.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
