package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-eam/atlas-eam/internal/observability"
	"github.com/atlas-eam/atlas-eam/internal/platform/httpx"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	metrics   *observability.Metrics
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		metrics:   metrics,
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/otp/request", h.handleOtpRequest)
	r.Post("/otp/resend", h.handleOtpResend)
	r.Post("/otp/verify", h.handleOtpVerify)
	r.Post("/password-reset/request", h.handleResetRequest)
	r.Post("/password-reset/confirm", h.handleResetConfirm)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type otpRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

type otpVerifyRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "invalid json body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.metrics.IncLoginFailure()
		h.logger.Warn("login rejected", slog.String("username", req.Username))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (h *Handler) handleOtpRequest(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.RequestOtp(r.Context(), req.Phone); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.metrics.IncOtpIssued()
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleOtpResend(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.ResendOtp(r.Context(), req.Phone); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleOtpVerify(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	token, err := h.service.VerifyOtp(r.Context(), req.Phone, req.Code)
	if err != nil {
		h.metrics.IncLoginFailure()
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (h *Handler) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.InitiatePasswordReset(r.Context(), req.Email); err != nil {
		h.logger.Error("initiate password reset", slog.Any("error", err))
	}
	// Always accepted so callers cannot probe for accounts.
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
