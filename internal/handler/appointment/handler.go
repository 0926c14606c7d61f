package appointment

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medbook/clinic-api/internal/middleware"
	"github.com/medbook/clinic-api/internal/model"
	"github.com/medbook/clinic-api/internal/service/scheduling"
	"github.com/medbook/clinic-api/pkg/httputil"
)

type Handler struct {
	service *scheduling.Service
	auth    *middleware.AuthMiddleware
}

func NewHandler(service *scheduling.Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/available-doctors", h.AvailableDoctors)
		appointments.GET("/history/:patientID", h.auth.RequireRole(model.RoleDoctor), h.History)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PATCH("/:id", h.UpdateAppointment)
		appointments.DELETE("/:id", h.CancelAppointment)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}

	apt, err := h.service.Create(c.Request.Context(), &req, middleware.ActorID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, apt)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	filters := &model.AppointmentFilters{}

	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.RespondWithBadRequest(c, "invalid start_date")
			return
		}
		filters.StartDate = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.RespondWithBadRequest(c, "invalid end_date")
			return
		}
		filters.EndDate = &t
	}
	filters.Specialty = model.Specialty(c.Query("specialty"))
	filters.Reason = c.Query("reason")

	ownOnly := c.Query("own") == "true"

	appointments, err := h.service.FindAll(c.Request.Context(), filters, middleware.ActorID(c), ownOnly)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httputil.RespondWithBadRequest(c, "invalid appointment ID")
		return
	}

	apt, err := h.service.FindByID(c.Request.Context(), id, middleware.ActorID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httputil.RespondWithBadRequest(c, "invalid appointment ID")
		return
	}

	var patch model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&patch); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}

	apt, err := h.service.Update(c.Request.Context(), id, &patch, middleware.ActorID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httputil.RespondWithBadRequest(c, "invalid appointment ID")
		return
	}

	if err := h.service.Remove(c.Request.Context(), id, middleware.ActorID(c)); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, nil)
}

func (h *Handler) History(c *gin.Context) {
	patientID, err := strconv.ParseInt(c.Param("patientID"), 10, 64)
	if err != nil {
		httputil.RespondWithBadRequest(c, "invalid patient ID")
		return
	}

	appointments, err := h.service.FindHistory(c.Request.Context(), patientID, middleware.ActorID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) AvailableDoctors(c *gin.Context) {
	doctors, err := h.service.AvailableDoctors(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, doctors)
}
