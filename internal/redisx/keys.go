package redisx

import "time"

const (
	// Leaderboard cache: report:{name}:{limit} -> JSON array
	KeyReport = "report:%s:%d"
	// Pattern untuk invalidasi semua report
	PatternReports = "report:*"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLDedup = 48 * time.Hour
)
