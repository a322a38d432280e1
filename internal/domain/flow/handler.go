package flow

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/siah/siah/internal/platform/auth"
	"github.com/siah/siah/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleNurse, auth.RoleDoctor))
	staff.GET("/patients/:id", h.GetPatient)
	staff.GET("/stations/:station/current", h.Current)
	staff.GET("/fichas", h.ListFichas)
	staff.GET("/fichas/:patient_id", h.GetFicha)

	// Reception
	reception := api.Group("", auth.RequireRole(auth.RoleReceptionist))
	reception.POST("/patients", h.RegisterPatient)
	reception.POST("/patients/:id/ficha", h.IssueFicha)

	// Triage
	nurse := api.Group("", auth.RequireRole(auth.RoleNurse))
	nurse.GET("/queues/triage", h.WaitingTriage)
	nurse.POST("/triage/next", h.CallNextTriage)
	nurse.POST("/triage/:id/finish", h.FinishTriage)

	// Medical evaluation
	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.GET("/patients", h.SearchPatients)
	doctor.PATCH("/patients/:id/status", h.UpdateStatus)
	doctor.GET("/queues/medical", h.WaitingMedical)
	doctor.POST("/medical/next", h.CallNextMedical)
	doctor.POST("/medical/:id/finish", h.FinishConsultation)

	clinical := api.Group("", auth.RequireRole(auth.RoleNurse, auth.RoleDoctor))
	clinical.PATCH("/patients/:id/priority", h.Reclassify)

	api.GET("/calls", h.ActiveCalls)
	api.GET("/stats", h.Statistics)
}

// httpError maps flow errors to HTTP statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrPatientNotFound), errors.Is(err, ErrFichaNotFound), errors.Is(err, ErrQueueEmpty):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStationBusy):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidColor):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("flow request failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func patientID(c echo.Context, param string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+param)
	}
	return id, nil
}

// -- Registration --

type registerResponse struct {
	Patient *Patient `json:"patient"`
	Ficha   *Ficha   `json:"ficha"`
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, f, err := h.svc.RegisterPatient(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, registerResponse{Patient: p, Ficha: f})
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := patientID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SearchPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := SearchFilter{
		Term:   strings.TrimSpace(c.QueryParam("q")),
		Status: Status(c.QueryParam("status")),
	}
	items, total, err := h.svc.SearchPatients(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Calling --

type callRequest struct {
	Station     string `json:"station"`
	Consultorio string `json:"consultorio"`
}

type callResponse struct {
	Patient *Patient `json:"patient"`
	Call    *Call    `json:"call"`
}

// station picks the body value ("station", or "consultorio" from doctor
// screens), then the consultório bound to the token.
func station(c echo.Context) (string, error) {
	var req callRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	for _, s := range []string{req.Station, req.Consultorio} {
		if s = strings.TrimSpace(s); s != "" {
			return s, nil
		}
	}
	return auth.StationFromContext(c.Request().Context()), nil
}

func (h *Handler) CallNextTriage(c echo.Context) error {
	st, err := station(c)
	if err != nil {
		return err
	}
	p, call, err := h.svc.CallNextTriage(c.Request().Context(), st)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, callResponse{Patient: p, Call: call})
}

func (h *Handler) CallNextMedical(c echo.Context) error {
	st, err := station(c)
	if err != nil {
		return err
	}
	p, call, err := h.svc.CallNextMedical(c.Request().Context(), st)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, callResponse{Patient: p, Call: call})
}

func (h *Handler) Current(c echo.Context) error {
	p, err := h.svc.Current(c.Request().Context(), c.Param("station"))
	if err != nil {
		return httpError(err)
	}
	if p == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, p)
}

// -- Triage and consultation --

func (h *Handler) FinishTriage(c echo.Context) error {
	id, err := patientID(c, "id")
	if err != nil {
		return err
	}
	var data TriageData
	if err := c.Bind(&data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.FinishTriage(c.Request().Context(), id, data)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) FinishConsultation(c echo.Context) error {
	id, err := patientID(c, "id")
	if err != nil {
		return err
	}
	var data ConsultData
	if err := c.Bind(&data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	data.Doctor = auth.NameFromContext(c.Request().Context())
	if data.Doctor == "" {
		data.Doctor = auth.UserIDFromContext(c.Request().Context())
	}
	p, err := h.svc.FinishConsultation(c.Request().Context(), id, data)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type priorityRequest struct {
	Color Color `json:"color"`
}

func (h *Handler) Reclassify(c echo.Context) error {
	id, err := patientID(c, "id")
	if err != nil {
		return err
	}
	var req priorityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Reclassify(c.Request().Context(), id, req.Color)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := patientID(c, "id")
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// -- Queues --

func (h *Handler) WaitingTriage(c echo.Context) error {
	items, err := h.svc.WaitingTriage(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) WaitingMedical(c echo.Context) error {
	items, err := h.svc.WaitingMedical(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

// -- Fichas --

func (h *Handler) ListFichas(c echo.Context) error {
	items, err := h.svc.Fichas(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetFicha(c echo.Context) error {
	id, err := patientID(c, "patient_id")
	if err != nil {
		return err
	}
	f, err := h.svc.FichaForPatient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) IssueFicha(c echo.Context) error {
	id, err := patientID(c, "id")
	if err != nil {
		return err
	}
	f, err := h.svc.IssueFicha(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, f)
}

// -- Board data --

func (h *Handler) ActiveCalls(c echo.Context) error {
	items, err := h.svc.ActiveCalls(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Statistics(c echo.Context) error {
	st, err := h.svc.Statistics(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}
