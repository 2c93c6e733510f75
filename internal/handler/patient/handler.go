package patient

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/radiology-api/internal/middleware"
	"github.com/jwalitptl/radiology-api/internal/model"
	"github.com/jwalitptl/radiology-api/pkg/httputil"
)

type WipeService interface {
	Wipe(ctx context.Context, actor string) error
}

type Handler struct {
	svc WipeService
}

func NewHandler(svc WipeService) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes adds the admin routes to the patients group. authenticate
// must run first so the access level can be checked.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authenticate gin.HandlerFunc) {
	r.DELETE("", authenticate, middleware.RequireAccessLevel(model.AccessLevelAdmin), h.WipePatients)
}

func (h *Handler) WipePatients(c *gin.Context) {
	var actor string
	if doctor, ok := middleware.CurrentDoctor(c); ok {
		actor = doctor.EmployeeNumber
	}

	if err := h.svc.Wipe(c.Request.Context(), actor); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, httputil.Response{
		Status:  "success",
		Message: "all patients and their records were removed",
	})
}
