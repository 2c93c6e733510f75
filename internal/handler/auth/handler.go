package auth

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/radiology-api/internal/middleware"
	"github.com/jwalitptl/radiology-api/internal/model"
	apperrors "github.com/jwalitptl/radiology-api/pkg/errors"
	"github.com/jwalitptl/radiology-api/pkg/httputil"
)

type LoginService interface {
	Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error)
}

type Handler struct {
	svc LoginService
}

func NewHandler(svc LoginService) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes expects authenticate to guard the routes that need a
// doctor.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authenticate gin.HandlerFunc) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", middleware.BodyLimit(64<<10), h.Login)
		auth.GET("/me", authenticate, h.Me)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("employeeNumber and password are required", err))
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resp)
}

func (h *Handler) Me(c *gin.Context) {
	doctor, ok := middleware.CurrentDoctor(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}
	httputil.RespondWithSuccess(c, doctor)
}
