package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
	"go.graphsync.dev/core/ingest"
)

// Status of graph synchronization.
type Status struct {
	// Ready is true once bootstrap has completed.
	Ready bool `json:"ready"`
	// Graphs maps each graph to its number of triples.
	Graphs map[string]int `json:"graphs"`
	// Pending triples awaiting the next flush, if known.
	Pending *ingest.PendingStats `json:"pending,omitempty"`
}

// StatusSource provides the components of a Status.
type StatusSource interface {
	Ready() bool
	Graphs() map[string]int
	Pending(ctx context.Context) (ingest.PendingStats, error)
}

// StatusHandler serves the Status of |src| as JSON.
func StatusHandler(src StatusSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var status = Status{
			Ready:  src.Ready(),
			Graphs: src.Graphs(),
		}
		if pending, err := src.Pending(r.Context()); err == nil {
			status.Pending = &pending
		} else {
			log.WithField("err", err).Debug("pending stats are unavailable")
		}

		w.Header().Set("Content-Type", "application/json")
		var enc = json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(status); err != nil {
			log.WithField("err", err).Warn("failed to write status")
		}
	})
}
