package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"routeplanner/internal/geo"
	"routeplanner/internal/metrics"
	"routeplanner/internal/opt"
	"routeplanner/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Status   int      `json:"status"`
	Detail   string   `json:"detail,omitempty"`
	Instance string   `json:"instance,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeProblemBody(w, Problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Instance: instance})
}

func writeProblemBody(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

var errTooManyPoints = errors.New("too many points")

// solveProblem maps solver and store errors to a problem body.
func solveProblem(err error, instance string) Problem {
	p := Problem{Type: "about:blank", Status: http.StatusBadRequest, Detail: err.Error(), Instance: instance}
	reason := ""
	switch {
	case errors.Is(err, geo.ErrInvalidCoordinate):
		p.Title, reason = "Invalid coordinate", "invalid_coordinate"
	case errors.Is(err, opt.ErrDepotOutOfRange):
		p.Title, reason = "Depot out of range", "depot_out_of_range"
	case errors.Is(err, opt.ErrNoFeasibleTour):
		p.Title, reason = "No feasible tour", "no_feasible_tour"
	case errors.Is(err, errTooManyPoints):
		p.Title, reason = "Too many points", "too_many_points"
		p.Status = http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrNotFound):
		p.Title, p.Status = "Not Found", http.StatusNotFound
	default:
		p.Title, reason = "Solve failed", "internal"
		p.Status = http.StatusInternalServerError
	}
	if reason != "" {
		metrics.SolveErrors.WithLabelValues(reason).Inc()
	}
	return p
}

// queryInt reads an integer query parameter, returning def when absent or malformed.
func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
