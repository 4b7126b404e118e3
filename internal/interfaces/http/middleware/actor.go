package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hospital/billing/internal/infrastructure/auth"
	"github.com/hospital/billing/internal/infrastructure/logger"
	"github.com/hospital/billing/internal/interfaces/http/dto"
)

// Actor context keys and headers
const (
	ActorKey      = "actor"
	ActorHeader   = "X-Actor"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// MaxActorHeaderLength bounds the development X-Actor header
const MaxActorHeaderLength = 128

// ActorConfig holds configuration for the actor middleware
type ActorConfig struct {
	// JWTService verifies bearer tokens; when disabled the header fallback applies
	JWTService *auth.JWTService
	// AllowHeader accepts X-Actor when no token secret is configured
	AllowHeader bool
	Logger      *zap.Logger
}

// Actor resolves who is performing the request. Every correction and payment
// carries this actor in its audit record, so requests without one are refused.
func Actor(cfg ActorConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		actor, err := resolveActor(c, cfg)
		if err != nil {
			logger.Enrich(c.Request.Context(), log).Debug("Actor rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			abortUnauthorized(c, err)
			return
		}

		c.Set(ActorKey, actor)
		c.Request = c.Request.WithContext(logger.WithActor(c.Request.Context(), actor.String()))
		c.Next()
	}
}

func resolveActor(c *gin.Context, cfg ActorConfig) (*auth.Actor, error) {
	if cfg.JWTService != nil && cfg.JWTService.Enabled() {
		header := c.GetHeader(AuthHeaderKey)
		if header == "" {
			return nil, errMissingCredentials
		}
		if !strings.HasPrefix(header, BearerPrefix) {
			return nil, auth.ErrInvalidToken
		}
		return cfg.JWTService.ParseActor(strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix)))
	}

	if !cfg.AllowHeader {
		return nil, auth.ErrNotConfigured
	}
	name := strings.TrimSpace(c.GetHeader(ActorHeader))
	if name == "" {
		return nil, errMissingCredentials
	}
	if len(name) > MaxActorHeaderLength {
		return nil, auth.ErrInvalidClaims
	}
	return &auth.Actor{ID: name, Name: name}, nil
}

var errMissingCredentials = errors.New("missing credentials")

func abortUnauthorized(c *gin.Context, err error) {
	code := dto.ErrCodeTokenInvalid
	message := "Invalid actor token"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code = dto.ErrCodeTokenExpired
		message = "Actor token has expired"
	case errors.Is(err, errMissingCredentials):
		code = dto.ErrCodeUnauthorized
		message = "Missing actor credentials"
	case errors.Is(err, auth.ErrNotConfigured):
		code = dto.ErrCodeUnauthorized
		message = "Actor authentication is not configured"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}

// GetActor returns the actor resolved by the Actor middleware, or nil
func GetActor(c *gin.Context) *auth.Actor {
	if v, ok := c.Get(ActorKey); ok {
		if a, ok := v.(*auth.Actor); ok {
			return a
		}
	}
	return nil
}
