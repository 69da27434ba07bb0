package api

import (
	"encoding/json"
	"fmt"
	"time"

	models "RugTracker/internal/domain/models"
	domrepo "RugTracker/internal/domain/repository"
	"RugTracker/internal/repository"
	icache "RugTracker/internal/service/cache"
	"RugTracker/internal/service/metrics"
	"RugTracker/internal/service/ratelimit"
	"RugTracker/internal/usecase"
	xhttp "RugTracker/pkg/http"
	xlogger "RugTracker/pkg/logger"

	"github.com/labstack/echo/v4"
)

// TrackerEchoHandler exposes the live tracker state and the archive over
// Echo.
type TrackerEchoHandler struct {
	logger    *xlogger.Logger
	tracker   *usecase.Tracker
	collector *usecase.TickCollector
	storage   domrepo.Storage
	analytics *repository.CHEpisodeAnalytics
	cache     icache.BytesCache
	rl        *ratelimit.Limiter
}

func NewTrackerEchoHandler(
	logger *xlogger.Logger,
	tracker *usecase.Tracker,
	collector *usecase.TickCollector,
	storage domrepo.Storage,
	analytics *repository.CHEpisodeAnalytics,
) *TrackerEchoHandler {
	metrics.Register()
	return &TrackerEchoHandler{
		logger:    logger,
		tracker:   tracker,
		collector: collector,
		storage:   storage,
		analytics: analytics,
		rl:        ratelimit.New(),
	}
}

// SetCache enables response caching for the archive endpoints.
func (h *TrackerEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *TrackerEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.Health)
	g.GET("/status", h.Status)
	g.GET("/prediction", h.Prediction)
	g.GET("/sidebet", h.SideBet)
	g.GET("/recent", h.Recent)
	g.GET("/history", h.History)
	g.GET("/analytics/durations", h.Durations)
	g.GET("/analytics/coverage", h.Coverage)
}

func (h *TrackerEchoHandler) observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (h *TrackerEchoHandler) Health(c echo.Context) error {
	type health struct {
		Status        string `json:"status"`
		FeedConnected bool   `json:"feed_connected"`
		Storage       string `json:"storage"`
	}
	out := health{Status: "ok", Storage: "ok"}
	if h.collector != nil {
		out.FeedConnected = h.collector.IsConnected()
	}
	if h.storage != nil {
		if err := h.storage.Health(c.Request().Context()); err != nil {
			out.Storage = "unavailable"
		}
	}
	if !out.FeedConnected || out.Storage != "ok" {
		out.Status = "degraded"
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *TrackerEchoHandler) Status(c echo.Context) error {
	defer h.observe("status", time.Now())
	return xhttp.SuccessResponse(c, h.tracker.Status())
}

func (h *TrackerEchoHandler) Prediction(c echo.Context) error {
	defer h.observe("prediction", time.Now())
	st := h.tracker.Status()
	if st.LastPrediction == nil {
		return xhttp.NotFoundResponse(c, "no prediction yet")
	}
	return xhttp.SuccessResponse(c, st.LastPrediction)
}

func (h *TrackerEchoHandler) SideBet(c echo.Context) error {
	defer h.observe("sidebet", time.Now())
	st := h.tracker.Status()
	if st.LastSideBet == nil {
		return xhttp.NotFoundResponse(c, "no side bet signal yet")
	}
	return xhttp.SuccessResponse(c, st.LastSideBet)
}

func (h *TrackerEchoHandler) Recent(c echo.Context) error {
	defer h.observe("recent", time.Now())
	req := &models.RecentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows := h.tracker.RecentEpisodes(req.N)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *TrackerEchoHandler) History(c echo.Context) error {
	start := time.Now()
	defer h.observe("history", start)

	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":history", 5, 2) {
		h.logger.Warn("history rate_limited", xlogger.String("remote", c.RealIP()))
		return echo.NewHTTPError(429, "rate limited")
	}

	// Explicit bounds win over the rolling window.
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), time.Now().UTC())
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), to.Add(-time.Duration(req.Hours)*time.Hour))
	rows, err := h.storage.QueryEpisodes(c.Request().Context(), from, to, req.Limit)
	if err != nil {
		metrics.APIErrors.WithLabelValues("history").Inc()
		h.logger.Error("history query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *TrackerEchoHandler) Durations(c echo.Context) error {
	return h.aggregate(c, "durations", func(from, to time.Time) (any, error) {
		return h.analytics.GetDurationStats(c.Request().Context(), from, to)
	})
}

func (h *TrackerEchoHandler) Coverage(c echo.Context) error {
	return h.aggregate(c, "coverage", func(from, to time.Time) (any, error) {
		return h.analytics.GetCoverageStats(c.Request().Context(), from, to)
	})
}

func (h *TrackerEchoHandler) aggregate(c echo.Context, endpoint string, fetch func(from, to time.Time) (any, error)) error {
	start := time.Now()
	defer h.observe(endpoint, start)

	req := &models.AnalyticsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.analytics == nil {
		return xhttp.NotFoundResponse(c, "analytics unavailable")
	}
	if !h.rl.Allow(c.RealIP()+":"+endpoint, 5, 2) {
		h.logger.Warn("analytics rate_limited",
			xlogger.String("endpoint", endpoint),
			xlogger.String("remote", c.RealIP()))
		return echo.NewHTTPError(429, "rate limited")
	}

	cacheKey := fmt.Sprintf("analytics:%s:%dh", endpoint, req.Hours)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
			h.logger.Warn("analytics cache_get_error", xlogger.Error(err))
		} else if ok {
			var cached json.RawMessage = b
			return xhttp.SuccessResponse(c, cached)
		}
	}

	to := time.Now().UTC()
	from := to.Add(-time.Duration(req.Hours) * time.Hour)
	res, err := fetch(from, to)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("analytics query error",
			xlogger.String("endpoint", endpoint),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	if h.cache != nil {
		if b, err := json.Marshal(res); err == nil {
			if err := h.cache.SetBytes(cacheKey, b, 30*time.Second); err != nil {
				h.logger.Warn("analytics cache_set_error", xlogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, res)
}
