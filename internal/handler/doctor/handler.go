package doctor

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-scheduler/internal/handler"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/service/availability"
	"github.com/jwalitptl/clinic-scheduler/internal/service/user"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/httputil"
)

type Handler struct {
	availability *availability.Service
	users        *user.Service
}

func NewHandler(availability *availability.Service, users *user.Service) *Handler {
	return &Handler{availability: availability, users: users}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors")
	{
		doctors.GET("", h.ListDoctors)
		doctors.GET("/:id/availability", h.GetAvailability)
		doctors.PUT("/me/availability", h.SetAvailability)
	}
	r.POST("/appointments/available-slots", h.SetAvailability)
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.users.Directory(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctors)
}

// GetAvailability returns one date's times when ?date= is given, otherwise
// the doctor's whole upcoming schedule.
func (h *Handler) GetAvailability(c *gin.Context) {
	doctorID, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	if raw := c.Query("date"); raw != "" {
		date, err := model.ParseDate(raw)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Validation(err.Error()))
			return
		}
		times, err := h.availability.GetAvailability(c.Request.Context(), doctorID, date)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		httputil.RespondWithSuccess(c, model.DateSlot{Date: date, Times: times})
		return
	}

	schedule, err := h.availability.GetSchedule(c.Request.Context(), doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, schedule)
}

func (h *Handler) SetAvailability(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}
	var req model.SetAvailabilityRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	schedule, err := h.availability.SetAvailability(c.Request.Context(), caller, caller.UserID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, schedule)
}
