package api

import (
	"errors"
	"net/http"
	"time"

	models "SMCFlow/internal/domain/models"
	"SMCFlow/internal/service/ratelimit"
	"SMCFlow/internal/strategy"
	"SMCFlow/internal/usecase"
	xhttp "SMCFlow/pkg/http"
	xlogger "SMCFlow/pkg/logger"
	"SMCFlow/pkg/util"

	"github.com/labstack/echo/v4"
)

// ReportingHandler serves the reporting query contract over Echo.
type ReportingHandler struct {
	logger    *xlogger.Logger
	reporting *usecase.ReportingUseCase
	candles   *usecase.CandlesUseCase
	limiter   *ratelimit.Limiter
}

func NewReportingHandler(logger *xlogger.Logger, reporting *usecase.ReportingUseCase, candles *usecase.CandlesUseCase) *ReportingHandler {
	return &ReportingHandler{
		logger:    logger,
		reporting: reporting,
		candles:   candles,
		limiter:   ratelimit.New(),
	}
}

// rateLimit throttles per caller: the user_id when present, the client IP
// otherwise. Roughly 10 req/s sustained with a burst of 20.
func (h *ReportingHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.QueryParam("user_id")
		if key == "" {
			key = c.RealIP()
		}
		if !h.limiter.Allow(key, 20, 10) {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		}
		return next(c)
	}
}

func (h *ReportingHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api", h.rateLimit)
	g.GET("/summary", h.Summary)
	g.GET("/report", h.Report)
	g.GET("/equity", h.EquityCurve)
	g.GET("/signals/open", h.OpenSignals)
	g.GET("/models", h.Models)
	g.POST("/signals/:id/close", h.CloseSignal)
	g.GET("/candles", h.Candles)
}

func (h *ReportingHandler) Summary(c echo.Context) error {
	req := &models.SummaryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res := h.reporting.Summary(c.Request().Context(), req.UserID)
	return xhttp.SuccessResponse(c, res)
}

func (h *ReportingHandler) Report(c echo.Context) error {
	req := &models.ReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	period := models.NormalizePeriod(req.Period)

	res := h.reporting.Report(c.Request().Context(), req.UserID, period)
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *ReportingHandler) EquityCurve(c echo.Context) error {
	req := &models.EquityCurveRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	period := models.NormalizePeriod(req.Period)

	curve := h.reporting.EquityCurve(c.Request().Context(), req.UserID, period)
	return xhttp.ListResponse(c, curve, int64(len(curve)))
}

func (h *ReportingHandler) OpenSignals(c echo.Context) error {
	open := h.reporting.OpenSignals()
	return xhttp.ListResponse(c, open, int64(len(open)))
}

// Models lists the strategy catalogue so clients can render entitlement
// choices without hardcoding it.
func (h *ReportingHandler) Models(c echo.Context) error {
	specs := strategy.Specs()
	return xhttp.ListResponse(c, specs, int64(len(specs)))
}

func (h *ReportingHandler) CloseSignal(c echo.Context) error {
	req := &models.CloseSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.reporting.CloseSignal(c.Request().Context(), req.ID); err != nil {
		if errors.Is(err, usecase.ErrUnknownSignal) {
			return xhttp.NotFoundResponse(c, "signal not open")
		}
		h.logger.Error("close signal error", xlogger.String("id", req.ID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]string{"id": req.ID, "status": string(models.StatusBreakeven)})
}

func (h *ReportingHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	now := time.Now().UTC()
	from := util.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := util.ParseTimeDefault(req.To, now)
	tf := models.NormalizeTimeframe(req.TF)
	from, to = util.AlignFromTo(from, to, tf.Duration())

	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Asset:     req.Asset,
		From:      from,
		To:        to,
		Timeframe: tf,
		Limit:     req.Limit,
	})
	if err != nil {
		h.logger.Error("candles usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}
