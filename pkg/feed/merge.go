package feed

import (
	"github.com/isafetyrobo/safety-agent/pkg/incident"
	"github.com/samber/lo"
)

// Unseen returns the records of fetched whose id is neither in cached nor
// repeated earlier in fetched, preserving the order of fetched.
func Unseen(cached, fetched []incident.Record) []incident.Record {
	seen := make(map[int64]struct{}, len(cached))

	for _, rec := range cached {
		seen[rec.ID] = struct{}{}
	}

	return lo.Filter(lo.UniqBy(fetched, recordID), func(rec incident.Record, _ int) bool {
		_, ok := seen[rec.ID]
		return !ok
	})
}

// Merge prepends the unseen records of fetched to cached and truncates the
// result to bound entries, dropping the oldest (tail) entries first. A bound
// of zero or less leaves the result unbounded. Neither input is modified.
//
// The violations API is assumed to return newest first; the order of
// fetched is kept as-is and never re-sorted.
func Merge(cached, fetched []incident.Record, bound int) []incident.Record {
	fresh := Unseen(cached, fetched)

	merged := make([]incident.Record, 0, len(fresh)+len(cached))
	merged = append(merged, fresh...)
	merged = append(merged, cached...)

	if bound > 0 && len(merged) > bound {
		merged = merged[:bound:bound]
	}

	return merged
}

func recordID(rec incident.Record) int64 {
	return rec.ID
}
