// Package reconcile holds the pure admissibility rules that decide which
// scale readings may resolve a detection episode.
package reconcile

import "github.com/smartscale/kiosk/internal/models"

// Verdict classifies a reading against the currently active episode.
type Verdict int

const (
	// Admissible: the reading carries a settled weight for a real item
	// and may resolve the episode.
	Admissible Verdict = iota

	// StaleDiscard: no episode is listening, or the reading predates the
	// episode start. Rejects replay of a previous episode's terminal
	// snapshot.
	StaleDiscard

	// SentinelDiscard: the label is empty or the bridge's "no item"
	// placeholder.
	SentinelDiscard

	// ZeroWeightPending: a real item is recognized but has not settled
	// on the platter yet. The episode stays active.
	ZeroWeightPending
)

func (v Verdict) String() string {
	switch v {
	case Admissible:
		return "admissible"
	case StaleDiscard:
		return "stale_discard"
	case SentinelDiscard:
		return "sentinel_discard"
	case ZeroWeightPending:
		return "zero_weight_pending"
	default:
		return "unknown"
	}
}

// maxSecondsTimestamp is the largest value still treated as a
// seconds-resolution Unix timestamp (10 decimal digits). Anything larger
// is assumed to be milliseconds already.
const maxSecondsTimestamp = 9_999_999_999

// NormalizeMillis converts a bridge timestamp to Unix milliseconds.
// Bridges disagree about resolution: values that fit in 10 decimal
// digits are seconds and are scaled up, larger values pass through.
func NormalizeMillis(ts int64) int64 {
	if ts <= maxSecondsTimestamp {
		return ts * 1000
	}
	return ts
}

// Evaluate classifies a reading against the episode that started at
// episodeStartMs (zero means no active episode). sentinel is the
// bridge's "no item" label.
//
// The rule order matters: the sentinel check precedes the weight check
// so that a "no item" placeholder with weight 0 is reported as a
// discard, not as a pending item.
func Evaluate(r models.Reading, episodeStartMs int64, sentinel string) Verdict {
	if episodeStartMs == 0 {
		return StaleDiscard
	}
	if NormalizeMillis(r.CapturedAtMs) <= episodeStartMs {
		return StaleDiscard
	}
	if r.Label == "" || r.Label == sentinel {
		return SentinelDiscard
	}
	if r.Weight <= 0 {
		return ZeroWeightPending
	}
	return Admissible
}
