// Package statusserver exposes read-only JSON status endpoints for the
// partitioned-table core: the current partition map and replication
// metrics. A gorilla/mux router is configured once and handed to an
// http.Server, the same pattern used elsewhere in this codebase for web
// routing, scaled down to the handful of read-only routes this
// component needs.
package statusserver

import (
	"encoding/json"
	"net/http"

	"github.com/getlantern/golog"
	"github.com/gorilla/mux"

	"github.com/getlantern/zenodb/metrics"
	"github.com/getlantern/zenodb/partitionmap"
)

var log = golog.LoggerFor("statusserver")

// Opts configures the status router.
type Opts struct {
	// PartitionMap is queried live on every request to /status/partitionmap, so
	// status always reflects the latest atomic Swap.
	PartitionMap *partitionmap.Map
}

// Configure registers the status routes on router.
func Configure(router *mux.Router, opts *Opts) {
	router.HandleFunc("/status/partitionmap", partitionMapHandler(opts.PartitionMap)).Methods("GET")
	router.HandleFunc("/status/metrics", metricsHandler).Methods("GET")
}

func partitionMapHandler(pm *partitionmap.Map) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, pm.Current())
	}
}

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, metrics.GetStats())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Error writing status response: %v", err)
	}
}
