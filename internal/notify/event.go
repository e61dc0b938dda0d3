// Package notify publishes analysis lifecycle events to JetStream so
// downstream consumers react without polling the history store.
package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldscope/locus/internal/analysis"
)

// Event is the payload published on locus.analysis.completed.
type Event struct {
	EventID      string  `json:"event_id"`
	Address      string  `json:"address"`
	OverallScore float64 `json:"overall_score"`
	DataPoints   int     `json:"data_points"`
	DurationMs   float64 `json:"duration_ms"`
	Cached       bool    `json:"cached"`
	Timestamp    string  `json:"timestamp"`
}

// NewEvent builds the completion event, generating identity and
// timestamp so consumers never see them empty.
func NewEvent(res *analysis.Result) Event {
	e := Event{
		EventID:      uuid.New().String(),
		Address:      res.NormalizedAddress,
		OverallScore: res.OverallScore,
		DataPoints:   res.DataPoints,
		Cached:       res.Cached,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	if res.Timing != nil {
		e.DurationMs = res.Timing.TotalTimeMs
	}
	return e
}
