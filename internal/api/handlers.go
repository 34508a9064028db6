package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"routeplanner/internal/cache"
	"routeplanner/internal/geo"
	"routeplanner/internal/integrations/csvstops"
	"routeplanner/internal/metrics"
	"routeplanner/internal/model"
	"routeplanner/internal/opt"
	"routeplanner/internal/present"
	"routeplanner/internal/store"
)

const maxBatch = 50

// tourPayload binds a JSON tour request body through render.Bind.
type tourPayload struct {
	model.TourRequest
}

func (p *tourPayload) Bind(r *http.Request) error {
	if p.Points == nil {
		return errors.New("points is required")
	}
	return nil
}

// optionsFor overlays per-request solver settings on the server defaults.
func (s *Server) optionsFor(req model.TourRequest) opt.Options {
	o := s.defaults
	if req.Mode != "" {
		if m, ok := opt.ParseMode(req.Mode); ok {
			o.Mode = m
		}
	}
	if req.ExactMaxN > 0 {
		o.ExactMaxN = req.ExactMaxN
	}
	if req.MaxTwoOptPasses > 0 {
		o.MaxTwoOptPasses = req.MaxTwoOptPasses
	}
	return o
}

// solveTour runs the solver (or serves a cached result), stores the tour and
// announces it.
func (s *Server) solveTour(ctx context.Context, tenant string, req model.TourRequest) (model.Tour, error) {
	if max := s.Cfg.Solver.MaxPoints; max > 0 && len(req.Points) > max {
		return model.Tour{}, fmt.Errorf("%w: %d > %d", errTooManyPoints, len(req.Points), max)
	}
	points := req.GeoPoints()
	o := s.optionsFor(req)
	metrics.TourPoints.Observe(float64(len(points)))

	key := cache.Fingerprint(points, req.Depot, o)
	res, hit := s.Cache.Get(ctx, key)
	if hit {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		start := time.Now()
		var err error
		res, err = opt.Optimize(points, req.Depot, o)
		if err != nil {
			return model.Tour{}, err
		}
		metrics.SolveDuration.WithLabelValues(res.Algorithm).Observe(time.Since(start).Seconds())
		s.Cache.Set(ctx, key, res)
	}
	metrics.ToursSolved.WithLabelValues(res.Algorithm, strconv.FormatBool(hit)).Inc()

	t := model.Tour{
		ID:        uuid.New().String(),
		TenantID:  tenant,
		Label:     req.Label,
		Depot:     req.Depot,
		Points:    points,
		Result:    res,
		Stops:     present.Stops(points, res),
		Polyline:  present.Polyline(points, res.Order),
		Bounds:    present.BoundsOf(points),
		Cached:    hit,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Store.SaveTour(ctx, t); err != nil {
		return model.Tour{}, fmt.Errorf("save tour: %w", err)
	}
	s.announce(ctx, t, model.EventTourSolved)
	return t, nil
}

func tourSummary(t model.Tour) map[string]any {
	return map[string]any{
		"tourId":          t.ID,
		"label":           t.Label,
		"points":          len(t.Points),
		"order":           t.Result.Order,
		"totalDistanceKm": t.Result.TotalDistance,
		"optimal":         t.Result.Optimal,
		"algorithm":       t.Result.Algorithm,
	}
}

func (s *Server) announce(ctx context.Context, t model.Tour, eventType string) {
	data := tourSummary(t)
	evt := SSEEvent{Type: eventType, Data: data}
	s.Broker.Publish(t.ID, evt)
	s.Broker.Publish(tenantKey(t.TenantID), evt)
	s.Pub.Emit(ctx, t.TenantID, eventType, data)
}

// CreateTourHandler handles POST /v1/tours
func (s *Server) CreateTourHandler(w http.ResponseWriter, r *http.Request) {
	var p tourPayload
	if err := render.Bind(r, &p); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if !s.validateTourRequest(w, r, &p.TourRequest) {
		return
	}
	ctx, tenant := s.withTenant(r)
	t, err := s.solveTour(ctx, tenant, p.TourRequest)
	if err != nil {
		writeProblemBody(w, solveProblem(err, r.URL.Path))
		return
	}
	w.Header().Set("Location", "/v1/tours/"+t.ID)
	writeJSON(w, http.StatusCreated, t)
}

type batchItem struct {
	Tour  *model.Tour `json:"tour,omitempty"`
	Error *Problem    `json:"error,omitempty"`
}

// BatchToursHandler handles POST /v1/tours/batch. Items are solved concurrently
// and reported in request order; one failing item does not fail the batch.
func (s *Server) BatchToursHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Requests []model.TourRequest `json:"requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if len(body.Requests) == 0 || len(body.Requests) > maxBatch {
		writeProblem(w, http.StatusBadRequest, "Invalid batch", fmt.Sprintf("requests must hold 1..%d items", maxBatch), r.URL.Path)
		return
	}
	ctx, tenant := s.withTenant(r)
	items := make([]batchItem, len(body.Requests))
	var g errgroup.Group
	g.SetLimit(s.batchWorkers())
	for i := range body.Requests {
		g.Go(func() error {
			req := body.Requests[i]
			if msgs := s.Validate.Struct(&req); len(msgs) > 0 {
				items[i].Error = &Problem{Type: "about:blank", Title: "Invalid tour request", Status: http.StatusBadRequest, Errors: msgs}
				return nil
			}
			t, err := s.solveTour(ctx, tenant, req)
			if err != nil {
				p := solveProblem(err, "")
				items[i].Error = &p
				return nil
			}
			items[i].Tour = &t
			return nil
		})
	}
	_ = g.Wait()
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) batchWorkers() int {
	if n := s.Cfg.Solver.BatchWorkers; n > 0 {
		return n
	}
	return 1
}

// ImportToursHandler handles POST /v1/tours/import with a CSV body of
// label,lat,lng rows. The depot is chosen with ?depot=.
func (s *Server) ImportToursHandler(w http.ResponseWriter, r *http.Request) {
	points, err := csvstops.Parse(http.MaxBytesReader(w, r.Body, 4<<20))
	if err != nil {
		if errors.Is(err, geo.ErrInvalidCoordinate) {
			writeProblemBody(w, solveProblem(err, r.URL.Path))
			return
		}
		writeProblem(w, http.StatusBadRequest, "Invalid CSV", err.Error(), r.URL.Path)
		return
	}
	req := model.TourRequest{
		Label:           r.URL.Query().Get("label"),
		Depot:           queryInt(r, "depot", 0),
		Mode:            r.URL.Query().Get("mode"),
		ExactMaxN:       queryInt(r, "exactMaxN", 0),
		MaxTwoOptPasses: queryInt(r, "maxTwoOptPasses", 0),
	}
	for _, p := range points {
		lat, lng := p.Lat, p.Lng
		req.Points = append(req.Points, model.PointIn{Label: p.Label, Lat: &lat, Lng: &lng})
	}
	if !s.validateTourRequest(w, r, &req) {
		return
	}
	ctx, tenant := s.withTenant(r)
	t, err := s.solveTour(ctx, tenant, req)
	if err != nil {
		writeProblemBody(w, solveProblem(err, r.URL.Path))
		return
	}
	w.Header().Set("Location", "/v1/tours/"+t.ID)
	writeJSON(w, http.StatusCreated, t)
}

// ListToursHandler handles GET /v1/tours
func (s *Server) ListToursHandler(w http.ResponseWriter, r *http.Request) {
	_, tenant := s.withTenant(r)
	items, next, err := s.Store.ListTours(r.Context(), tenant, r.URL.Query().Get("cursor"), queryInt(r, "limit", 100))
	if errors.Is(err, store.ErrInvalidCursor) {
		writeProblem(w, http.StatusBadRequest, "Invalid cursor", err.Error(), r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List tours failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// TourStatsHandler handles GET /v1/tours/stats
func (s *Server) TourStatsHandler(w http.ResponseWriter, r *http.Request) {
	_, tenant := s.withTenant(r)
	st, err := s.Store.TourStats(r.Context(), tenant)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Tour stats failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) loadTour(w http.ResponseWriter, r *http.Request) (model.Tour, bool) {
	_, tenant := s.withTenant(r)
	t, err := s.Store.GetTour(r.Context(), tenant, chi.URLParam(r, "tourID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Tour not found", "", r.URL.Path)
		} else {
			writeProblem(w, http.StatusInternalServerError, "Get tour failed", err.Error(), r.URL.Path)
		}
		return model.Tour{}, false
	}
	return t, true
}

// GetTourHandler handles GET /v1/tours/{tourID}
func (s *Server) GetTourHandler(w http.ResponseWriter, r *http.Request) {
	if t, ok := s.loadTour(w, r); ok {
		writeJSON(w, http.StatusOK, t)
	}
}

// TourTextHandler handles GET /v1/tours/{tourID}/text
func (s *Server) TourTextHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTour(w, r)
	if !ok {
		return
	}
	var b strings.Builder
	if err := present.Text(&b, t.Points, t.Result); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Render failed", err.Error(), r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

// DeleteTourHandler handles DELETE /v1/tours/{tourID}
func (s *Server) DeleteTourHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTour(w, r)
	if !ok {
		return
	}
	if err := s.Store.DeleteTour(r.Context(), t.TenantID, t.ID); err != nil {
		writeProblemBody(w, solveProblem(err, r.URL.Path))
		return
	}
	s.announce(r.Context(), t, model.EventTourDeleted)
	w.WriteHeader(http.StatusNoContent)
}

// OptimizerConfigHandler handles GET /v1/optimizer/config
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	o := s.defaults
	writeJSON(w, http.StatusOK, map[string]any{"defaults": map[string]any{
		"mode":            o.Mode.String(),
		"exactMaxN":       o.ExactMaxN,
		"hardExactMaxN":   opt.HardExactMaxN,
		"maxTwoOptPasses": o.MaxTwoOptPasses,
		"maxPoints":       s.Cfg.Solver.MaxPoints,
		"maxBatch":        maxBatch,
		"algorithms":      []string{opt.AlgoHeldKarp, opt.AlgoTwoOpt},
		"distanceUnit":    "km",
	}})
}
