// Package web serves a plan over HTTP: JSON endpoints for every edit and
// query, and a Server-Sent Events stream of solve results.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/logging"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/model"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/planner"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/pubsub"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/solver"
	"github.com/Invalid27/Factorio-Planner-sub000/pkg/store"
)

// maxBody bounds request bodies; edits are tiny.
const maxBody = 1 << 20

// PlanResponse is the body of GET /api/plan and of successful edits.
type PlanResponse struct {
	Plan   *store.Document `json:"plan"`
	Report solver.Report   `json:"report"`
	Unit   planner.Unit    `json:"unit"`
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	planner   *planner.Planner
	publisher pubsub.Publisher
}

// NewServer creates a server for p. publisher feeds the subscription endpoint
// and should be the one p publishes to.
func NewServer(p *planner.Planner, publisher pubsub.Publisher) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		planner:   p,
		publisher: publisher,
	}
	s.setupRoutes()
	return s
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/subscribe/plan", s.handleSubscribePlan).Methods("GET")

	s.router.HandleFunc("/api/plan", s.handlePlan).Methods("GET")
	s.router.HandleFunc("/api/solve", s.handleSolve).Methods("POST")
	s.router.HandleFunc("/api/aggregation", s.handleAggregation).Methods("PUT")

	s.router.HandleFunc("/api/nodes", s.handleAddNode).Methods("POST")
	s.router.HandleFunc("/api/nodes/{id:[0-9]+}", s.handleRemoveNode).Methods("DELETE")
	s.router.HandleFunc("/api/nodes/{id:[0-9]+}/target", s.handleSetTarget).Methods("PUT")
	s.router.HandleFunc("/api/nodes/{id:[0-9]+}/modules", s.handleSetModules).Methods("PUT")
	s.router.HandleFunc("/api/nodes/{id:[0-9]+}/tier", s.handleSetTier).Methods("PUT")
	s.router.HandleFunc("/api/nodes/{id:[0-9]+}/speed", s.handleSetSpeed).Methods("PUT")
	s.router.HandleFunc("/api/nodes/{id:[0-9]+}/flow", s.handleFlow).Methods("GET")
	s.router.HandleFunc("/api/nodes/{id:[0-9]+}/stats", s.handleStats).Methods("GET")

	s.router.HandleFunc("/api/edges", s.handleAddEdge).Methods("POST")
	s.router.HandleFunc("/api/edges/{id:[0-9]+}", s.handleRemoveEdge).Methods("DELETE")
}

func (s *Server) handleSubscribePlan(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	sub, err := s.publisher.Subscribe(r.Context(), pubsub.TopicPlan)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	// Initial comment establishes the stream (Safari)
	fmt.Fprintf(w, ": connected\n\n")
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	for event := range sub.Events() {
		if err := pubsub.WriteSSE(w, event); err != nil {
			logging.DebugContext(r.Context(), "subscriber went away", "error", err)
			return
		}
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
	}
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	s.writePlan(w, http.StatusOK)
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.ComputeFlows())
}

func (s *Server) handleAggregation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Aggregation model.Aggregation `json:"aggregation"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.planner.SetAggregation(req.Aggregation); err != nil {
		writeError(w, r, err)
		return
	}
	s.writePlan(w, http.StatusOK)
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Recipe   string         `json:"recipe"`
		Position model.Position `json:"position"`
	}
	if !decode(w, r, &req) {
		return
	}
	n, err := s.planner.AddNode(req.Recipe, req.Position)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.planner.RemoveNode(id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Target *float64 `json:"target"` // null unpins
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.planner.SetTarget(id, req.Target); err != nil {
		writeError(w, r, err)
		return
	}
	s.writePlan(w, http.StatusOK)
}

func (s *Server) handleSetModules(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Modules []string `json:"modules"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.planner.SetModules(id, req.Modules); err != nil {
		writeError(w, r, err)
		return
	}
	s.writePlan(w, http.StatusOK)
}

func (s *Server) handleSetTier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Tier string `json:"tier"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.planner.SetTier(id, req.Tier); err != nil {
		writeError(w, r, err)
		return
	}
	s.writePlan(w, http.StatusOK)
}

func (s *Server) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Multiplier float64 `json:"multiplier"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.planner.SetSpeedMultiplier(id, req.Multiplier); err != nil {
		writeError(w, r, err)
		return
	}
	s.writePlan(w, http.StatusOK)
}

func (s *Server) handleFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	item := query.Get("item")
	if item == "" {
		http.Error(w, "item is required", http.StatusBadRequest)
		return
	}
	side := model.SideOutput
	switch query.Get("side") {
	case "", string(model.SideOutput):
	case string(model.SideInput):
		side = model.SideInput
	default:
		http.Error(w, "side must be input or output", http.StatusBadRequest)
		return
	}
	quality, err := model.ParseQuality(query.Get("quality"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rate, err := s.planner.FlowRate(id, item, side, quality)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"node":    id,
		"item":    item,
		"side":    side,
		"quality": quality,
		"rate":    rate,
		"unit":    s.planner.Unit(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	stats, err := s.planner.Stats(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAddEdge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From    int64  `json:"from"`
		To      int64  `json:"to"`
		Item    string `json:"item"`
		Quality string `json:"quality"`
	}
	if !decode(w, r, &req) {
		return
	}
	quality, err := model.ParseQuality(req.Quality)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	e, err := s.planner.AddEdge(req.From, req.To, req.Item, quality)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleRemoveEdge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.planner.RemoveEdge(id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writePlan(w http.ResponseWriter, status int) {
	writeJSON(w, status, PlanResponse{
		Plan:   s.planner.Snapshot(),
		Report: s.planner.Report(),
		Unit:   s.planner.Unit(),
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to write response", "error", err)
	}
}

// statusFor maps edit errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNodeNotFound), errors.Is(err, model.ErrEdgeNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDuplicateEdge):
		return http.StatusConflict
	case errors.Is(err, model.ErrSelfEdge),
		errors.Is(err, model.ErrInvalidTarget),
		errors.Is(err, planner.ErrUnknownRecipe),
		errors.Is(err, planner.ErrUnknownModule),
		errors.Is(err, planner.ErrUnknownTier),
		errors.Is(err, planner.ErrInvalidValue),
		errors.Is(err, store.ErrDocument):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.ErrorContext(r.Context(), "edit failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Start serves on port until ctx ends, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Requests inherit ctx so open SSE streams end when it does
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return srv.Close()
		}
		return nil
	}
}
