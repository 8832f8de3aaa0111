package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/resumecook/billing/internal/config"
	ierr "github.com/resumecook/billing/internal/errors"
	"github.com/resumecook/billing/internal/logger"
	"github.com/resumecook/billing/internal/types"
)

// AuthClaims are the JWT claims issued by the identity service. The subject
// is the internal user ID.
type AuthClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware authenticates the caller from a bearer token and puts the
// resolved internal user ID (and email) on the request context.
func AuthMiddleware(cfg *config.Configuration, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(types.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			abortUnauthorized(c)
			return
		}

		claims := &AuthClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ierr.NewErrorf("unexpected signing method %v", t.Header["alg"]).
					Mark(ierr.ErrPermissionDenied)
			}
			return []byte(cfg.Auth.JWTSecret), nil
		})
		if err != nil || !parsed.Valid || claims.Subject == "" {
			log.Debugw("rejected bearer token", "error", err)
			abortUnauthorized(c)
			return
		}

		ctx := context.WithValue(c.Request.Context(), types.CtxUserID, claims.Subject)
		if claims.Email != "" {
			ctx = context.WithValue(ctx, types.CtxUserEmail, claims.Email)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	err := ierr.NewError("missing or invalid credentials").
		WithHint("Authentication required").
		Mark(ierr.ErrPermissionDenied)
	c.AbortWithStatusJSON(http.StatusUnauthorized, ierr.NewErrorResponse(err))
}
