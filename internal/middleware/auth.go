package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/radiology-api/internal/model"
	apperrors "github.com/jwalitptl/radiology-api/pkg/errors"
	"github.com/jwalitptl/radiology-api/pkg/httputil"
)

const ContextDoctor = "doctor"

var (
	errMissingHeader = errors.New("missing authorization header")
	errBadScheme     = errors.New("invalid authorization format")
)

// Authenticator resolves a bearer token to a doctor.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Doctor, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Authenticate rejects requests without a valid bearer token and stores the
// doctor in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(err))
			return
		}
		if !m.resolve(c, token) {
			return
		}
		c.Next()
	}
}

// Optional authenticates when a token is present and lets anonymous
// requests through. A token that is present but invalid is still rejected.
func (m *AuthMiddleware) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		token, err := bearerToken(header)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(err))
			return
		}
		if !m.resolve(c, token) {
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) resolve(c *gin.Context, token string) bool {
	doctor, err := m.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		httputil.RespondWithError(c, err)
		return false
	}
	c.Set(ContextDoctor, doctor)
	return true
}

// RequireAccessLevel must run after Authenticate.
func RequireAccessLevel(level model.AccessLevel) gin.HandlerFunc {
	return func(c *gin.Context) {
		doctor, ok := CurrentDoctor(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized(errMissingHeader))
			return
		}
		if doctor.AccessLevel < level {
			httputil.RespondWithError(c, apperrors.Forbidden("insufficient access level"))
			return
		}
		c.Next()
	}
}

// CurrentDoctor returns the authenticated doctor, if any.
func CurrentDoctor(c *gin.Context) (*model.Doctor, bool) {
	v, ok := c.Get(ContextDoctor)
	if !ok {
		return nil, false
	}
	doctor, ok := v.(*model.Doctor)
	return doctor, ok && doctor != nil
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errBadScheme
	}
	return strings.TrimSpace(token), nil
}
