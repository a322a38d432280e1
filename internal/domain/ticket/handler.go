package ticket

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/siah/siah/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	reception := api.Group("/tickets", auth.RequireRole(auth.RoleReceptionist))
	reception.POST("", h.Issue)
	reception.GET("/queue", h.Waiting)
	reception.POST("/next", h.CallNext)
	reception.POST("/:id/cancel", h.CancelCall)

	api.GET("/tickets/recent", h.RecentCalls)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrTicketNotFound), errors.Is(err, ErrNoTicketsWaiting):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotCalled):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidType):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("ticket request failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

type issueRequest struct {
	Type Type `json:"type"`
}

func (h *Handler) Issue(c echo.Context) error {
	var req issueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tk, err := h.svc.Issue(c.Request().Context(), req.Type)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, tk)
}

func (h *Handler) Waiting(c echo.Context) error {
	q, err := h.svc.Waiting(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) CallNext(c echo.Context) error {
	tk, err := h.svc.CallNext(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tk)
}

func (h *Handler) CancelCall(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	tk, err := h.svc.CancelCall(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tk)
}

func (h *Handler) RecentCalls(c echo.Context) error {
	n := BoardRecentCalls
	if v := c.QueryParam("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 50 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 50")
		}
		n = parsed
	}
	items, err := h.svc.RecentCalls(c.Request().Context(), n)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}
