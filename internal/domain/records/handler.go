package records

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebook/availability/internal/platform/auth"
	"github.com/carebook/availability/pkg/filter"
	"github.com/carebook/availability/pkg/pagination"
)

type Handler struct {
	svc *Service
	loc *time.Location
}

// NewHandler builds the records handler. Date filters are read in loc.
func NewHandler(svc *Service, loc *time.Location) *Handler {
	return &Handler{svc: svc, loc: loc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Patients see their own records; staff see any patient's
	g := api.Group("/patients/:patient_id",
		auth.RequireRole("doctor", "scheduler", "patient"),
		auth.RequirePatientAccess("patient_id"))
	g.GET("/visits", h.ListVisits)
	g.GET("/reminders", h.ListReminders)
	g.POST("/reminders/:reminder_id/read", h.MarkReminderRead)
	g.GET("/codes", h.ListCodes)
}

func (h *Handler) patientID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	return id, nil
}

func (h *Handler) criteria(c echo.Context) (filter.Criteria, error) {
	cr, err := filter.FromContext(c, h.loc)
	if err != nil {
		return cr, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return cr, nil
}

func boolParam(c echo.Context, name string) (bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return b, nil
}

// page slices items and wraps them with navigation links that keep the
// request's filters.
func page[T any](c echo.Context, items []T) *pagination.Response {
	pg := pagination.FromContext(c)
	q := c.QueryParams()
	q.Del("limit")
	q.Del("offset")

	resp := pagination.NewResponse(pagination.Page(items, pg), len(items), pg.Limit, pg.Offset)
	resp.Links = pg.Links(c.Request().URL.Path, q.Encode(), len(items))
	return resp
}

func (h *Handler) ListVisits(c echo.Context) error {
	patientID, err := h.patientID(c)
	if err != nil {
		return err
	}
	cr, err := h.criteria(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListVisits(c.Request().Context(), patientID, cr)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, page(c, items))
}

func (h *Handler) ListReminders(c echo.Context) error {
	patientID, err := h.patientID(c)
	if err != nil {
		return err
	}
	cr, err := h.criteria(c)
	if err != nil {
		return err
	}
	unread, err := boolParam(c, "unread")
	if err != nil {
		return err
	}
	items, err := h.svc.ListReminders(c.Request().Context(), patientID, cr, unread)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, page(c, items))
}

func (h *Handler) MarkReminderRead(c echo.Context) error {
	patientID, err := h.patientID(c)
	if err != nil {
		return err
	}
	reminderID, err := uuid.Parse(c.Param("reminder_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid reminder_id")
	}
	if err := h.svc.MarkReminderRead(c.Request().Context(), patientID, reminderID); err != nil {
		if errors.Is(err, ErrReminderNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListCodes(c echo.Context) error {
	patientID, err := h.patientID(c)
	if err != nil {
		return err
	}
	cr, err := h.criteria(c)
	if err != nil {
		return err
	}
	kind, err := ParseCodeKind(c.QueryParam("kind"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	active, err := boolParam(c, "active")
	if err != nil {
		return err
	}
	items, err := h.svc.ListCodes(c.Request().Context(), patientID, cr, kind, active)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, page(c, items))
}
