package api

import (
	"time"

	models "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	domrepo "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/repository"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/service/metrics"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/usecase"
	xhttp "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/http"
	xlogger "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/logger"

	"github.com/labstack/echo/v4"
)

// InspectHandler exposes read-only inspection endpoints over the running
// pipeline: the latest cycle per symbol, the signal audit trail, and the
// candle history feeding the indicators.
type InspectHandler struct {
	logger   *xlogger.Logger
	pipeline *usecase.Pipeline
	store    domrepo.SignalStore
	candles  domrepo.CandleStore
}

func NewInspectHandler(logger *xlogger.Logger, pipeline *usecase.Pipeline, store domrepo.SignalStore, candles domrepo.CandleStore) *InspectHandler {
	metrics.Register()
	return &InspectHandler{logger: logger, pipeline: pipeline, store: store, candles: candles}
}

func (h *InspectHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signal", h.Signal)
	g.GET("/signals", h.Signals)
	g.GET("/smirk", h.Smirk)
	g.GET("/candles", h.Candles)
	g.GET("/health", h.Health)
}

// Signal returns the signal of the last completed cycle for a symbol.
func (h *InspectHandler) Signal(c echo.Context) error {
	defer observe("signal", time.Now())
	req := &models.SmirkRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, ok := h.pipeline.Latest(req.Symbol)
	if !ok {
		metrics.APIErrors.WithLabelValues("signal").Inc()
		return xhttp.NotFoundResponse(c, "no completed cycle for symbol")
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"signal":           res.Signal,
		"decision":         res.Decision,
		"skipped_expiries": res.SkippedExpiries,
	})
}

// Signals returns the persisted signal history for a symbol.
func (h *InspectHandler) Signals(c echo.Context) error {
	defer observe("signals", time.Now())
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if h.store == nil {
		return xhttp.NotFoundResponse(c, "signal persistence not configured")
	}
	rows, err := h.store.LatestSignals(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		metrics.APIErrors.WithLabelValues("signals").Inc()
		h.logger.Error("signal history query failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Smirk returns the per-expiry smirk metrics of the last completed cycle.
func (h *InspectHandler) Smirk(c echo.Context) error {
	defer observe("smirk", time.Now())
	req := &models.SmirkRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, ok := h.pipeline.Latest(req.Symbol)
	if !ok {
		metrics.APIErrors.WithLabelValues("smirk").Inc()
		return xhttp.NotFoundResponse(c, "no completed cycle for symbol")
	}
	out := make(map[string]interface{}, len(res.Smirk))
	for expiry, r := range res.Smirk {
		if r.Err != nil {
			out[expiry] = map[string]string{"skipped": r.Err.Error()}
			continue
		}
		out[expiry] = r.Metrics
	}
	return xhttp.SuccessResponse(c, out)
}

// Candles returns recent candle history.
func (h *InspectHandler) Candles(c echo.Context) error {
	defer observe("candles", time.Now())
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if h.candles == nil {
		return xhttp.NotFoundResponse(c, "candle store not configured")
	}

	// Optional explicit range; otherwise the latest N buckets.
	var rows []models.Candle
	var err error
	if from, ok := xhttp.ParseTime(c.QueryParam("from")); ok {
		to := xhttp.ParseTimeDefault(c.QueryParam("to"), time.Now().UTC())
		rows, err = h.candles.GetCandles(c.Request().Context(), req.Symbol, from, to, domrepo.Timeframe(req.TF))
	} else {
		rows, err = h.candles.GetLatestNCandles(c.Request().Context(), req.Symbol, req.N, domrepo.Timeframe(req.TF))
	}
	if err != nil {
		metrics.APIErrors.WithLabelValues("candles").Inc()
		h.logger.Error("candle query failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Health reports persistence health.
func (h *InspectHandler) Health(c echo.Context) error {
	defer observe("health", time.Now())
	if h.store == nil {
		return xhttp.SuccessResponse(c, map[string]string{"status": "ok", "persistence": "disabled"})
	}
	if err := h.store.Health(c.Request().Context()); err != nil {
		metrics.APIErrors.WithLabelValues("health").Inc()
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("signal store: %v", err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
