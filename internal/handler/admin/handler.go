package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-scheduler/internal/handler"
	"github.com/jwalitptl/clinic-scheduler/internal/middleware"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/service/appointment"
	"github.com/jwalitptl/clinic-scheduler/internal/service/user"
	"github.com/jwalitptl/clinic-scheduler/pkg/httputil"
)

type Handler struct {
	appointments *appointment.Service
	users        *user.Service
}

func NewHandler(appointments *appointment.Service, users *user.Service) *Handler {
	return &Handler{appointments: appointments, users: users}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	{
		admin.GET("/appointments", h.ListAppointments)
		admin.PUT("/appointments/:id", h.UpdateAppointment)
		admin.DELETE("/appointments/:id", h.DeleteAppointment)

		admin.GET("/users", h.ListUsers)
		admin.POST("/users", h.CreateUser)
		admin.DELETE("/users/:id", h.DeleteUser)
	}

	r.GET("/appointments/admin/detailed", middleware.RequireRole(model.RoleAdmin), h.ListAppointments)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}
	var query model.AppointmentQuery
	if !handler.BindQuery(c, &query) {
		return
	}

	page, err := h.appointments.List(c.Request.Context(), caller, query)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, page.Items, page.Page, page.Limit, page.Total)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req model.UpdateStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.appointments.UpdateStatus(c.Request.Context(), caller, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.appointments.Delete(c.Request.Context(), caller, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListUsers(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}
	var query model.UserQuery
	if !handler.BindQuery(c, &query) {
		return
	}

	page, err := h.users.ListUsers(c.Request.Context(), caller, query)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, page.Items, page.Page, page.Limit, page.Total)
}

func (h *Handler) CreateUser(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}
	var req model.CreateUserRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	u, err := h.users.CreateUser(c.Request.Context(), caller, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, u)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.users.DeleteUser(c.Request.Context(), caller, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
