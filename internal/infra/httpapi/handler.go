package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mahesa005/dinacom-steikon-sub000/internal/app"
	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/schedule"
	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/subject"
	idb "github.com/mahesa005/dinacom-steikon-sub000/internal/infra/database"
)

// ScheduleService generates and queries follow-up schedules.
type ScheduleService interface {
	Today() time.Time
	Location() *time.Location
	GenerateSchedule(ctx context.Context, subjectID uuid.UUID, birthDate time.Time, tier schedule.RiskTier, startDate time.Time) (*app.GenerateResult, error)
	RegenerateAfterVisit(ctx context.Context, subjectID, completedEntryID uuid.UUID, newTier schedule.RiskTier) (*app.GenerateResult, error)
	EntriesForSubject(ctx context.Context, subjectID uuid.UUID, includeCompleted bool) ([]*schedule.Entry, error)
	EntriesOnDate(ctx context.Context, day time.Time) ([]*schedule.DueEntry, error)
	SweepMissed(ctx context.Context, now time.Time) (int64, error)
	DispatchReminders(ctx context.Context, day time.Time) (*app.ReminderSummary, error)
}

// SubjectService manages subject records.
type SubjectService interface {
	RegisterSubject(ctx context.Context, in app.RegisterSubjectInput) (*app.Registration, error)
	GetSubject(ctx context.Context, id uuid.UUID) (*subject.Subject, error)
	ListSubjects(ctx context.Context) ([]*subject.Subject, error)
}

// RegisterSubjectRequest is the body of POST /subjects.
type RegisterSubjectRequest struct {
	Name               string `json:"name"`
	BirthDate          string `json:"birth_date"`
	RiskTier           string `json:"risk_tier"`
	GuardianName       string `json:"guardian_name,omitempty"`
	GuardianTelegramID int64  `json:"guardian_telegram_id,omitempty"`
}

// GenerateScheduleRequest is the body of POST /subjects/:id/schedule. An
// empty risk tier uses the subject's stored tier; an empty start date means today.
type GenerateScheduleRequest struct {
	RiskTier  string `json:"risk_tier,omitempty"`
	StartDate string `json:"start_date,omitempty"`
}

// CompleteVisitRequest is the body of POST /subjects/:id/schedule/:entryID/complete.
type CompleteVisitRequest struct {
	RiskTier string `json:"risk_tier"`
}

// SweepResponse reports how many entries a sweep marked as MISSED.
type SweepResponse struct {
	Missed int64 `json:"missed"`
}

// Handler exposes the examination schedule over HTTP.
type Handler struct {
	schedules ScheduleService
	subjects  SubjectService
	now       func() time.Time
}

func NewHandler(schedules ScheduleService, subjects SubjectService) *Handler {
	return &Handler{schedules: schedules, subjects: subjects, now: time.Now}
}

// RegisterRoutes registers the schedule API routes on the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/subjects", h.RegisterSubject)
	g.GET("/subjects", h.ListSubjects)
	g.GET("/subjects/:id", h.GetSubject)
	g.POST("/subjects/:id/schedule", h.GenerateSchedule)
	g.GET("/subjects/:id/schedule", h.ListSubjectSchedule)
	g.POST("/subjects/:id/schedule/:entryID/complete", h.CompleteVisit)
	g.GET("/schedule", h.ListScheduleOnDate)
	g.POST("/maintenance/sweep", h.SweepMissed)
	g.POST("/maintenance/reminders", h.DispatchReminders)
}

// RegisterSubject handles POST /subjects.
func (h *Handler) RegisterSubject(c echo.Context) error {
	var req RegisterSubjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	tier, err := schedule.ParseRiskTier(req.RiskTier)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	birth, err := h.parseDate("birth_date", req.BirthDate)
	if err != nil {
		return err
	}

	reg, err := h.subjects.RegisterSubject(c.Request().Context(), app.RegisterSubjectInput{
		Name:               req.Name,
		BirthDate:          birth,
		RiskTier:           tier,
		GuardianName:       req.GuardianName,
		GuardianTelegramID: req.GuardianTelegramID,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, reg)
}

// ListSubjects handles GET /subjects.
func (h *Handler) ListSubjects(c echo.Context) error {
	subjects, err := h.subjects.ListSubjects(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, subjects)
}

// GetSubject handles GET /subjects/:id.
func (h *Handler) GetSubject(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	s, err := h.subjects.GetSubject(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s)
}

// GenerateSchedule handles POST /subjects/:id/schedule.
func (h *Handler) GenerateSchedule(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req GenerateScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	subj, err := h.subjects.GetSubject(ctx, id)
	if err != nil {
		return mapError(err)
	}

	tier := subj.RiskTier
	if req.RiskTier != "" {
		if tier, err = schedule.ParseRiskTier(req.RiskTier); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	var start time.Time
	if req.StartDate != "" {
		if start, err = h.parseDate("start_date", req.StartDate); err != nil {
			return err
		}
	}

	result, err := h.schedules.GenerateSchedule(ctx, subj.ID, subj.BirthDate, tier, start)
	if err != nil {
		return mapError(err)
	}
	status := http.StatusCreated
	if !result.Generated {
		status = http.StatusOK
	}
	return c.JSON(status, result)
}

// ListSubjectSchedule handles GET /subjects/:id/schedule.
func (h *Handler) ListSubjectSchedule(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	includeCompleted := false
	if raw := c.QueryParam("include_completed"); raw != "" {
		if includeCompleted, err = strconv.ParseBool(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "include_completed must be a boolean")
		}
	}

	entries, err := h.schedules.EntriesForSubject(c.Request().Context(), id, includeCompleted)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

// CompleteVisit handles POST /subjects/:id/schedule/:entryID/complete.
func (h *Handler) CompleteVisit(c echo.Context) error {
	subjectID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	entryID, err := parseID(c, "entryID")
	if err != nil {
		return err
	}
	var req CompleteVisitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	tier, err := schedule.ParseRiskTier(req.RiskTier)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.schedules.RegenerateAfterVisit(c.Request().Context(), subjectID, entryID, tier)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// ListScheduleOnDate handles GET /schedule.
func (h *Handler) ListScheduleOnDate(c echo.Context) error {
	day := h.schedules.Today()
	if raw := c.QueryParam("date"); raw != "" {
		var err error
		if day, err = h.parseDate("date", raw); err != nil {
			return err
		}
	}
	due, err := h.schedules.EntriesOnDate(c.Request().Context(), day)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, due)
}

// SweepMissed handles POST /maintenance/sweep.
func (h *Handler) SweepMissed(c echo.Context) error {
	n, err := h.schedules.SweepMissed(c.Request().Context(), h.now())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, SweepResponse{Missed: n})
}

// DispatchReminders handles POST /maintenance/reminders.
func (h *Handler) DispatchReminders(c echo.Context) error {
	summary, err := h.schedules.DispatchReminders(c.Request().Context(), h.schedules.Today())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) parseDate(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s is required", field))
	}
	d, err := schedule.ParseDate(raw, h.schedules.Location())
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s format, expected YYYY-MM-DD", field))
	}
	return d, nil
}

func parseID(c echo.Context, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s", param))
	}
	return id, nil
}

// mapError translates service and repository errors to HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, app.ErrInvalidSubjectID),
		errors.Is(err, app.ErrInvalidEntryID),
		errors.Is(err, app.ErrInvalidRiskTier),
		errors.Is(err, app.ErrInvalidSubjectName),
		errors.Is(err, app.ErrBirthDateInFuture),
		errors.Is(err, schedule.ErrUnknownRiskTier):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, idb.ErrSubjectNotFound),
		errors.Is(err, idb.ErrEntryNotFound),
		errors.Is(err, app.ErrEntrySubjectMismatch):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrEntryNotScheduled),
		errors.Is(err, idb.ErrStatusConflict),
		errors.Is(err, idb.ErrDuplicateEntry):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrRemindersDisabled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
