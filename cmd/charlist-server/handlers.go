package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/charlist/pkg/controller"
	"github.com/Sternrassler/charlist/pkg/filter"
	"github.com/Sternrassler/charlist/pkg/gateway"
	"github.com/Sternrassler/charlist/pkg/metrics"
	"github.com/Sternrassler/charlist/pkg/pagination"
)

// server exposes one list controller over HTTP.
type server struct {
	state    *filter.State
	ctrl     *controller.Controller
	exporter *pagination.BatchFetcher
	redis    redis.Cmdable
	logger   zerolog.Logger
}

// moreResponse answers POST /more.
type moreResponse struct {
	Issued bool            `json:"issued"`
	View   controller.View `json:"view"`
}

// exportResponse answers GET /export.
type exportResponse struct {
	Filter        filter.Filter       `json:"filter"`
	TotalCount    int                 `json:"total_count"`
	TotalPages    int                 `json:"total_pages"`
	UpstreamPages int                 `json:"upstream_pages"`
	Complete      bool                `json:"complete"`
	Items         []gateway.Character `json:"items"`
	Error         string              `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(s.redis))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/list", s.listHandler)
	mux.HandleFunc("/filter", s.filterHandler)
	mux.HandleFunc("/more", s.moreHandler)
	mux.HandleFunc("/export", s.exportHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler pings Redis when one is configured.
func readyHandler(redisClient redis.Cmdable) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, fmt.Sprintf("redis not ready: %v", err), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

// listHandler returns the current render state.
func (s *server) listHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	s.writeJSON(w, http.StatusOK, s.ctrl.View())
}

// filterHandler replaces the filter from the search and status form values.
// An unchanged filter does not restart the list.
func (s *server) filterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid form: %v", err)})
		return
	}

	next := filter.Filter{
		Search: r.Form.Get("search"),
		Status: filter.ParseStatus(r.Form.Get("status")),
	}
	if !next.Status.Known() {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid status %q", next.Status)})
		return
	}

	s.logger.Info().
		Str("search", next.Search).
		Str("status", string(next.Status)).
		Msg("Filter update")

	s.state.Set(next)
	s.writeJSON(w, http.StatusAccepted, s.ctrl.View())
}

// moreHandler requests the next page.
func (s *server) moreHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	issued := s.ctrl.RequestMore()
	status := http.StatusOK
	if issued {
		status = http.StatusAccepted
	}
	s.writeJSON(w, status, moreResponse{Issued: issued, View: s.ctrl.View()})
}

// exportHandler fetches every page for the current filter, or for the
// search and status query values when given.
func (s *server) exportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	f := s.state.Current()
	q := r.URL.Query()
	if q.Has("search") || q.Has("status") {
		f = filter.Filter{Search: q.Get("search"), Status: filter.ParseStatus(q.Get("status"))}
		if !f.Status.Known() {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid status %q", f.Status)})
			return
		}
	}

	export, err := s.exporter.FetchAllPages(r.Context(), f)
	if export == nil {
		s.logger.Warn().Err(err).Str("filter", f.Key()).Msg("Export failed")
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	resp := exportResponse{
		Filter:        export.Filter,
		TotalCount:    export.TotalCount,
		TotalPages:    export.TotalPages,
		UpstreamPages: export.UpstreamPages,
		Complete:      export.Complete(),
		Items:         export.Characters(),
	}
	if resp.Items == nil {
		resp.Items = []gateway.Character{}
	}

	status := http.StatusOK
	if err != nil {
		s.logger.Warn().Err(err).Str("filter", f.Key()).Msg("Export incomplete")
		resp.Error = err.Error()
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, resp)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}
