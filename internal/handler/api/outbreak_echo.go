package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"EpiPulse/internal/domain/models"
	domrepo "EpiPulse/internal/domain/repository"
	"EpiPulse/internal/service/ratelimit"
	"EpiPulse/internal/usecase"
	xhttp "EpiPulse/pkg/http"
	applogger "EpiPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

const apiVersion = "1.0.0"

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

type OutbreakHandlerOption func(*OutbreakEchoHandler)

// WithRateLimiter guards POST /api/analyze with a per-client limiter.
func WithRateLimiter(l *ratelimit.Limiter) OutbreakHandlerOption {
	return func(h *OutbreakEchoHandler) { h.limiter = l }
}

// WithHealthCheck adds a dependency reported by /health.
func WithHealthCheck(name string, check HealthCheck) OutbreakHandlerOption {
	return func(h *OutbreakEchoHandler) {
		if check != nil {
			h.checks[name] = check
		}
	}
}

// OutbreakEchoHandler serves the outbreak analysis API.
type OutbreakEchoHandler struct {
	logger   applogger.Interface
	analyzer *usecase.OutbreakAnalyzer
	limiter  *ratelimit.Limiter
	checks   map[string]HealthCheck
}

var _ xhttp.Handler = (*OutbreakEchoHandler)(nil)

func NewOutbreakEchoHandler(logger applogger.Interface, analyzer *usecase.OutbreakAnalyzer, opts ...OutbreakHandlerOption) *OutbreakEchoHandler {
	h := &OutbreakEchoHandler{logger: logger, analyzer: analyzer, checks: make(map[string]HealthCheck)}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = applogger.NewNop()
	}
	return h
}

func (h *OutbreakEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/diseases", h.Diseases)
	g.GET("/countries", h.Countries)
	if h.limiter != nil {
		g.POST("/analyze", h.Analyze, ratelimit.Middleware(h.limiter, h.logger))
	} else {
		g.POST("/analyze", h.Analyze)
	}
}

type rootResponse struct {
	Message   string   `json:"message"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

func (h *OutbreakEchoHandler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, rootResponse{
		Message: "EpiPulse outbreak detector API",
		Version: apiVersion,
		Endpoints: []string{
			"GET /health",
			"GET /api/diseases",
			"GET /api/countries",
			"POST /api/analyze",
			"GET /metrics",
		},
	})
}

// Health reports "healthy" unless a registered dependency fails its ping.
func (h *OutbreakEchoHandler) Health(c echo.Context) error {
	res := xhttp.HealthResponse{Status: "healthy"}
	if len(h.checks) == 0 {
		return c.JSON(http.StatusOK, res)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	res.Checks = make(map[string]string, len(names))
	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("health check failed", applogger.String("dependency", name), applogger.Error(err))
			res.Checks[name] = err.Error()
			res.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		res.Checks[name] = "ok"
	}
	return c.JSON(status, res)
}

func (h *OutbreakEchoHandler) Diseases(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string][]string{"diseases": h.analyzer.Diseases()})
}

func (h *OutbreakEchoHandler) Countries(c echo.Context) error {
	req := &models.CountriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	countries, err := h.analyzer.Countries(c.Request().Context(), domrepo.NormalizeDataSource(req.DataSource), req.CSVFilename)
	if err != nil {
		h.logger.Error("countries usecase error", applogger.String("source", req.DataSource), applogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, map[string][]string{"countries": countries})
}

func (h *OutbreakEchoHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	params, err := usecase.ParamsFromRequest(*req)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}

	res, err := h.analyzer.Analyze(c.Request().Context(), params)
	if err != nil {
		appErr := toAppError(err)
		if appErr.Status >= http.StatusInternalServerError {
			h.logger.Error("analyze usecase error",
				applogger.String("country", req.Country),
				applogger.String("disease", req.Disease),
				applogger.Error(err),
			)
		} else {
			h.logger.Info("analyze request rejected",
				applogger.String("country", req.Country),
				applogger.String("disease", req.Disease),
				applogger.String("reason", err.Error()),
			)
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
	return xhttp.SuccessResponse(c, res)
}

// toAppError maps pipeline errors onto HTTP statuses. Unknown errors stay
// opaque to the client.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, models.ErrInsufficientData):
		var ide *models.InsufficientDataError
		e := xhttp.NewAppError("ERR_INSUFFICIENT_DATA", "", err.Error(), http.StatusBadRequest)
		if errors.As(err, &ide) {
			e.WithParam("rows", ide.Got).WithParam("min", ide.Min)
		}
		return e.WithError(err)
	case errors.Is(err, models.ErrUnknownDataSource):
		return xhttp.BadRequestError(err.Error()).WithField("data_source").WithError(err)
	case errors.Is(err, models.ErrUnknownForecastMethod):
		return xhttp.BadRequestError(err.Error()).WithField("method").WithError(err)
	case errors.Is(err, models.ErrInvalidRequest):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrNoData), errors.Is(err, models.ErrDatasetNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrSourceUnavailable):
		return xhttp.BadGatewayError("data source unavailable, try again later").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.NewAppError("ERR_TIMEOUT", "", "analysis timed out", http.StatusGatewayTimeout).WithError(err)
	default:
		return xhttp.InternalError("analysis failed").WithError(err)
	}
}
