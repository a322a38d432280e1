package board

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the board on a group without authentication; the
// snapshot only carries public names.
func (h *Handler) RegisterRoutes(public *echo.Group) {
	public.GET("/board", h.Get)
}

func (h *Handler) Get(c echo.Context) error {
	snap, err := h.svc.Snapshot(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("build board snapshot")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, snap)
}
