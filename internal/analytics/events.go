package analytics

import "time"

type EventType string

const (
	EventSearch      EventType = "search"
	EventSearchError EventType = "search_error"
	EventReload      EventType = "index_reload"
)

// Event is one analytics observation. Search events carry the query
// fields; reload events carry Generation, Records and Trigger.
type Event struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query,omitempty"`
	Terms      []string  `json:"terms,omitempty"`
	Category   string    `json:"category,omitempty"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	LatencyMs  float64   `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Generation uint64    `json:"generation"`
	Records    int       `json:"records,omitempty"`
	Trigger    string    `json:"trigger,omitempty"`
	Error      string    `json:"error,omitempty"`
	Origin     string    `json:"origin,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

func (e Event) key() string {
	return string(e.Type)
}
