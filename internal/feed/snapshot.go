package feed

import (
	"encoding/json"
	"strconv"

	"github.com/smartscale/kiosk/internal/models"
	"github.com/smartscale/kiosk/internal/reconcile"
)

// wireReading is the bridge's wire shape for one entry under the data
// path. Timestamps arrive as strings and may be seconds or milliseconds.
type wireReading struct {
	Weight    float64 `json:"weight"`
	Item      string  `json:"item"`
	Price     float64 `json:"price"`
	Timestamp string  `json:"timestamp"`
}

// DecodeSnapshot parses one pushed snapshot of the data path: a map of
// monotonically-labeled keys to reading entries, of which several may be
// present concurrently. It selects the entry with the numerically
// largest normalized timestamp, falling back to the key when an entry
// carries no usable timestamp. Returns ok=false when the snapshot holds
// no entry with a positive timestamp.
func DecodeSnapshot(data []byte) (models.Reading, bool) {
	var entries map[string]wireReading
	if err := json.Unmarshal(data, &entries); err != nil {
		return models.Reading{}, false
	}

	var (
		best     models.Reading
		bestNorm int64
		found    bool
	)
	for key, entry := range entries {
		ts, err := strconv.ParseInt(entry.Timestamp, 10, 64)
		if err != nil || ts <= 0 {
			ts, err = strconv.ParseInt(key, 10, 64)
			if err != nil || ts <= 0 {
				continue
			}
		}
		norm := reconcile.NormalizeMillis(ts)
		if !found || norm > bestNorm {
			best = models.Reading{
				Weight:       entry.Weight,
				Label:        entry.Item,
				UnitPrice:    entry.Price,
				CapturedAtMs: ts,
			}
			bestNorm = norm
			found = true
		}
	}
	return best, found
}
