// Package api serves stored price records over HTTP. It never calls upstream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aluiziolira/go-scrape-hal/models"
	"github.com/aluiziolira/go-scrape-hal/parser"
	"github.com/aluiziolira/go-scrape-hal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MaxRangeDays bounds the span between start and end of a range query.
const MaxRangeDays = 7

// DefaultCategory is used when a request carries no type parameter.
const DefaultCategory = "2"

// Querier reads stored price records.
type Querier interface {
	QueryPrices(ctx context.Context, pq store.PriceQuery) ([]*models.PriceRecord, error)
}

// Server exposes the query routes.
type Server struct {
	querier  Querier
	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

// NewServer registers its request counter on registry, which also backs
// the /metrics route. A nil registry disables /metrics.
func NewServer(q Querier, registry *prometheus.Registry) *Server {
	s := &Server{querier: q, registry: registry}
	if registry != nil {
		s.requests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hal_api_requests_total",
				Help: "Query API requests by route and status code.",
			},
			[]string{"route", "code"},
		)
		registry.MustRegister(s.requests)
	}
	return s
}

// Handler returns the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/prices", s.handleDay)
	r.Get("/prices/range", s.handleRange)
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return r
}

type dayResponse struct {
	Date     string                `json:"date"`
	Type     string                `json:"type"`
	Category string                `json:"category"`
	Results  []*models.PriceRecord `json:"results"`
}

type rangeResponse struct {
	Start    string                `json:"start"`
	End      string                `json:"end"`
	Type     string                `json:"type"`
	Category string                `json:"category"`
	Count    int                   `json:"count"`
	Results  []*models.PriceRecord `json:"results"`
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	const route = "/prices"
	q := r.URL.Query()

	date, err := parseUpstreamDate(q.Get("date"))
	if err != nil {
		s.fail(w, route, http.StatusBadRequest, err)
		return
	}
	cat, err := categoryParam(q.Get("type"))
	if err != nil {
		s.fail(w, route, http.StatusBadRequest, err)
		return
	}

	iso := date.Format(models.DateLayout)
	records, err := s.querier.QueryPrices(r.Context(), store.PriceQuery{From: iso, To: iso, CategorySlug: cat.Slug})
	if err != nil {
		slog.Error("query prices", slog.String("date", iso), slog.Any("error", err))
		s.fail(w, route, http.StatusInternalServerError, errors.New("query failed"))
		return
	}

	s.ok(w, route, dayResponse{
		Date:     date.Format(models.UpstreamDateLayout),
		Type:     cat.Code,
		Category: cat.Slug,
		Results:  nonNil(records),
	})
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	const route = "/prices/range"
	q := r.URL.Query()

	start, err := parseUpstreamDate(q.Get("start"))
	if err != nil {
		s.fail(w, route, http.StatusBadRequest, fmt.Errorf("start: %w", err))
		return
	}
	end, err := parseUpstreamDate(q.Get("end"))
	if err != nil {
		s.fail(w, route, http.StatusBadRequest, fmt.Errorf("end: %w", err))
		return
	}
	if end.Before(start) {
		s.fail(w, route, http.StatusBadRequest, errors.New("end date is before start date"))
		return
	}
	if end.Sub(start) > MaxRangeDays*24*time.Hour {
		s.fail(w, route, http.StatusBadRequest, fmt.Errorf("date range may span at most %d days", MaxRangeDays))
		return
	}
	cat, err := categoryParam(q.Get("type"))
	if err != nil {
		s.fail(w, route, http.StatusBadRequest, err)
		return
	}

	records, err := s.querier.QueryPrices(r.Context(), store.PriceQuery{
		From:         start.Format(models.DateLayout),
		To:           end.Format(models.DateLayout),
		CategorySlug: cat.Slug,
	})
	if err != nil {
		slog.Error("query price range", slog.Any("error", err))
		s.fail(w, route, http.StatusInternalServerError, errors.New("query failed"))
		return
	}

	records = nonNil(records)
	s.ok(w, route, rangeResponse{
		Start:    start.Format(models.UpstreamDateLayout),
		End:      end.Format(models.UpstreamDateLayout),
		Type:     cat.Code,
		Category: cat.Slug,
		Count:    len(records),
		Results:  records,
	})
}

func (s *Server) ok(w http.ResponseWriter, route string, v any) {
	s.count(route, http.StatusOK)
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) fail(w http.ResponseWriter, route string, code int, err error) {
	s.count(route, code)
	writeError(w, code, err)
}

func (s *Server) count(route string, code int) {
	if s.requests == nil {
		return
	}
	s.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func parseUpstreamDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("date is required, use DD.MM.YYYY")
	}
	t, err := time.Parse(models.UpstreamDateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use DD.MM.YYYY", v)
	}
	return t, nil
}

func categoryParam(v string) (models.Category, error) {
	if v == "" {
		v = DefaultCategory
	}
	return parser.NormalizeCategory(v)
}

func nonNil(records []*models.PriceRecord) []*models.PriceRecord {
	if records == nil {
		return []*models.PriceRecord{}
	}
	return records
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
