package scheduling

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebook/availability/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – staff and patients browsing availability
	readGroup := api.Group("", auth.RequireRole("doctor", "scheduler", "patient"))
	readGroup.GET("/doctors/:doctor_id/calendar", h.GetCalendar)
	readGroup.GET("/doctors/:doctor_id/schedule", h.GetSchedule)
	readGroup.GET("/doctors/:doctor_id/institutions/:institution_id/days/:date", h.GetDay)
	readGroup.POST("/slots/preview", h.PreviewSlots)

	// Write endpoints – staff only
	day := "/doctors/:doctor_id/institutions/:institution_id/days/:date"
	writeGroup := api.Group("", auth.RequireRole("doctor", "scheduler"))
	writeGroup.PUT(day, h.BulkEdit)
	writeGroup.POST(day+"/preview", h.PreviewBulkEdit)
	writeGroup.PUT(day+"/slots/:slot_id", h.EditSlot)
	writeGroup.DELETE(day+"/slots/:slot_id", h.DeleteSlot)
	writeGroup.POST(day+"/slots/:slot_id/cancel", h.CancelSlot)
	writeGroup.POST(day+"/slots/:slot_id/complete", h.CompleteSlot)
	writeGroup.POST(day+"/slots/:slot_id/reschedule", h.RescheduleSlot)

	// Booking is open to patients as well
	bookGroup := api.Group("", auth.RequireRole("doctor", "scheduler", "patient"))
	bookGroup.POST(day+"/slots/:slot_id/book", h.BookSlot)
}

// httpError maps service errors onto status codes.
func httpError(err error) error {
	switch {
	case IsInvalid(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case IsConflict(err):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrOperationFailed):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// -- Request bodies --

type slotsPreviewRequest struct {
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string `json:"start_time" validate:"required,hhmm"`
	EndTime         string `json:"end_time" validate:"required,hhmm"`
	IntervalMinutes int    `json:"interval_minutes" validate:"lte=1440"`
}

type bulkEditRequest struct {
	StartTime       string `json:"start_time" validate:"required,hhmm"`
	EndTime         string `json:"end_time" validate:"required,hhmm"`
	IntervalMinutes int    `json:"interval_minutes" validate:"gt=0,lte=1440"`
}

type editSlotRequest struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

type bookSlotRequest struct {
	VisitID string `json:"visit_id" validate:"required,uuid"`
}

type rescheduleRequest struct {
	ToSlotID string `json:"to_slot_id" validate:"required"`
}

func bindAndValidate(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.Validate(v)
}

// -- Path helpers --

func parseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func optionalInstitution(c echo.Context) (*uuid.UUID, error) {
	raw := c.QueryParam("institution_id")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid institution_id")
	}
	return &id, nil
}

type dayParams struct {
	doctorID      uuid.UUID
	institutionID uuid.UUID
	date          Date
}

func parseDayParams(c echo.Context) (dayParams, error) {
	var p dayParams
	var err error
	if p.doctorID, err = parseUUIDParam(c, "doctor_id"); err != nil {
		return p, err
	}
	if p.institutionID, err = parseUUIDParam(c, "institution_id"); err != nil {
		return p, err
	}
	if p.date, err = ParseDate(c.Param("date")); err != nil {
		return p, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return p, nil
}

// loadDay reads the day a mutation applies to.
func (h *Handler) loadDay(c echo.Context) (*DayView, error) {
	p, err := parseDayParams(c)
	if err != nil {
		return nil, err
	}
	view, err := h.svc.LoadDay(c.Request().Context(), p.doctorID, p.institutionID, p.date)
	if err != nil {
		return nil, httpError(err)
	}
	return view, nil
}

// -- Read handlers --

func (h *Handler) GetCalendar(c echo.Context) error {
	doctorID, err := parseUUIDParam(c, "doctor_id")
	if err != nil {
		return err
	}
	institutionID, err := optionalInstitution(c)
	if err != nil {
		return err
	}

	now := h.svc.opts.Now().In(h.svc.Location())
	year, month := now.Year(), now.Month()
	if y := c.QueryParam("year"); y != "" {
		if year, err = strconv.Atoi(y); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid year")
		}
	}
	if m := c.QueryParam("month"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil || n < 1 || n > 12 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid month")
		}
		month = time.Month(n)
	}
	var selected *Date
	if s := c.QueryParam("selected"); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		selected = &d
	}

	view, err := h.svc.LoadMonth(c.Request().Context(), doctorID, institutionID, year, month, selected)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) GetSchedule(c echo.Context) error {
	doctorID, err := parseUUIDParam(c, "doctor_id")
	if err != nil {
		return err
	}
	institutionID, err := optionalInstitution(c)
	if err != nil {
		return err
	}
	g, err := h.svc.Schedule(c.Request().Context(), doctorID, institutionID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) GetDay(c echo.Context) error {
	view, err := h.loadDay(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// PreviewSlots runs the slicer alone. An interval that yields nothing
// returns an empty list rather than an error.
func (h *Handler) PreviewSlots(c echo.Context) error {
	var req slotsPreviewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	start, err := ParseTimeOfDay(req.StartTime)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	end, err := ParseTimeOfDay(req.EndTime)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	slots := GenerateSlots(date, start, end, req.IntervalMinutes, h.svc.Location())
	return c.JSON(http.StatusOK, map[string]interface{}{"slots": slots, "total": len(slots)})
}

// -- Bulk edit --

func (h *Handler) bulkSpec(c echo.Context, view *DayView) (BulkEditSpec, error) {
	var req bulkEditRequest
	if err := bindAndValidate(c, &req); err != nil {
		return BulkEditSpec{}, err
	}
	start, err := ParseTimeOfDay(req.StartTime)
	if err != nil {
		return BulkEditSpec{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	end, err := ParseTimeOfDay(req.EndTime)
	if err != nil {
		return BulkEditSpec{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return BulkEditSpec{
		DoctorID:        view.DoctorID,
		InstitutionID:   view.InstitutionID,
		Date:            view.Date,
		StartTime:       start,
		EndTime:         end,
		IntervalMinutes: req.IntervalMinutes,
	}, nil
}

func (h *Handler) PreviewBulkEdit(c echo.Context) error {
	view, err := h.loadDay(c)
	if err != nil {
		return err
	}
	spec, err := h.bulkSpec(c, view)
	if err != nil {
		return err
	}
	plan, err := h.svc.PreviewBulkEdit(view, spec)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, plan)
}

func (h *Handler) BulkEdit(c echo.Context) error {
	view, err := h.loadDay(c)
	if err != nil {
		return err
	}
	spec, err := h.bulkSpec(c, view)
	if err != nil {
		return err
	}
	plan, err := h.svc.BulkEdit(c.Request().Context(), view, spec)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"plan": plan, "day": view})
}

// -- Single slot handlers --

// parseBoundary accepts HH:MM on the view's date or a full timestamp.
func (h *Handler) parseBoundary(view *DayView, s string) (time.Time, error) {
	if len(s) == 5 {
		tod, err := ParseTimeOfDay(s)
		if err != nil {
			return time.Time{}, err
		}
		return tod.On(view.Date, h.svc.Location()), nil
	}
	return ParseTimestamp(s, h.svc.Location())
}

func (h *Handler) EditSlot(c echo.Context) error {
	view, err := h.loadDay(c)
	if err != nil {
		return err
	}
	var req editSlotRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	start, err := h.parseBoundary(view, req.Start)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	end, err := h.parseBoundary(view, req.End)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.EditSlot(c.Request().Context(), view, c.Param("slot_id"), start, end); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) DeleteSlot(c echo.Context) error {
	view, err := h.loadDay(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSlot(c.Request().Context(), view, c.Param("slot_id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) BookSlot(c echo.Context) error {
	view, err := h.loadDay(c)
	if err != nil {
		return err
	}
	var req bookSlotRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	visitID, err := uuid.Parse(req.VisitID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit_id")
	}
	if err := h.svc.BookSlot(c.Request().Context(), view, c.Param("slot_id"), visitID); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) CancelSlot(c echo.Context) error {
	view, err := h.loadDay(c)
	if err != nil {
		return err
	}
	if err := h.svc.CancelSlot(c.Request().Context(), view, c.Param("slot_id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) CompleteSlot(c echo.Context) error {
	view, err := h.loadDay(c)
	if err != nil {
		return err
	}
	if err := h.svc.CompleteSlot(c.Request().Context(), view, c.Param("slot_id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) RescheduleSlot(c echo.Context) error {
	view, err := h.loadDay(c)
	if err != nil {
		return err
	}
	var req rescheduleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.svc.Reschedule(c.Request().Context(), view, c.Param("slot_id"), req.ToSlotID); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}
