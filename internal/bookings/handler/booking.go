package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"courtbook/internal/bookings/service"
	"courtbook/internal/metrics"
	apperrors "courtbook/pkg/errors"
	httputil "courtbook/pkg/http"
	"courtbook/pkg/logger"
	"courtbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// DashboardProvider computes the operator metrics view.
type DashboardProvider interface {
	Dashboard(ctx context.Context) (*metrics.Dashboard, error)
}

type BookingHandler struct {
	service   service.BookingService
	dashboard DashboardProvider
	log       *logger.Logger
}

func NewBookingHandler(service service.BookingService, dashboard DashboardProvider, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service:   service,
		dashboard: dashboard,
		log:       log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	booking, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, toView(booking)); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}
	h.writeBooking(w, "GetByID", booking)
}

func (h *BookingHandler) GetByReference(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByReference(r.Context(), ps.ByName("ref"))
	if err != nil {
		h.writeError(w, "GetByReference", err)
		return
	}
	h.writeBooking(w, "GetByReference", booking)
}

func (h *BookingHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	bookings, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, toViews(bookings), total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.Cancel(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}
	h.writeBooking(w, "Cancel", booking)
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.Complete(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Complete", err)
		return
	}
	h.writeBooking(w, "Complete", booking)
}

func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	date := r.URL.Query().Get("date")
	if date == "" {
		h.writeError(w, "Availability", apperrors.InvalidInput("date query parameter is required"))
		return
	}

	view, err := h.service.Availability(r.Context(), date)
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "Availability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Dashboard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	dashboard, err := h.dashboard.Dashboard(r.Context())
	if err != nil {
		if timeoutErr := apperrors.FromContext(r.Context(), err); timeoutErr != nil {
			h.log.Warn("Dashboard request timed out", "error", err)
			h.writeError(w, "Dashboard", timeoutErr)
			return
		}
		h.log.Error("Failed to compute dashboard", "error", err)
		h.writeError(w, "Dashboard", apperrors.Storage("Booking storage is unavailable", err))
		return
	}

	if err := httputil.WriteSuccess(w, dashboard); err != nil {
		h.log.Error("failed to write success response", "handler", "Dashboard", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Catalog(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteSuccess(w, h.service.Catalog()); err != nil {
		h.log.Error("failed to write success response", "handler", "Catalog", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) SetSportPrice(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update SportPriceUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, "SetSportPrice", apperrors.InvalidInput("Invalid request body"))
		return
	}

	sport, err := h.service.SetSportPrice(r.Context(), ps.ByName("id"), update.PricePerHour)
	if err != nil {
		h.writeError(w, "SetSportPrice", err)
		return
	}

	if err := httputil.WriteSuccess(w, sport); err != nil {
		h.log.Error("failed to write success response", "handler", "SetSportPrice", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) writeBooking(w http.ResponseWriter, handler string, booking *model.Booking) {
	if err := httputil.WriteSuccess(w, toView(booking)); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/availability", h.Availability)
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.GetAll)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.GET("/api/v1/bookings/ref/:ref", h.GetByReference)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.POST("/api/v1/bookings/id/:id/complete", h.Complete)
	router.GET("/api/v1/dashboard", h.Dashboard)
	router.GET("/api/v1/catalog", h.Catalog)
	router.PUT("/api/v1/catalog/sports/:id", h.SetSportPrice)
}
