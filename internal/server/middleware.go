package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kapu/campaign-ops-go/internal/session"
	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
	"go.uber.org/zap"
)

const sessionKey = "session"

// authRequired resolves the bearer token to a session. Browsers cannot set
// headers on websocket upgrades, so the token query parameter is accepted
// as well.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			respondError(c, apperrors.NewAuthError("falta el token de sesión"))
			return
		}
		sess, err := s.sessions.Get(token)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()
		s.metrics.ObserveHTTP(c.FullPath(), c.Request.Method, status, elapsed)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
		}
		switch {
		case status >= http.StatusInternalServerError:
			s.logger.Warn("HTTP request failed", fields...)
		default:
			s.logger.Debug("HTTP request", fields...)
		}
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Panic in handler", zap.Any("panic", r), zap.String("path", c.Request.URL.Path))
				respondError(c, apperrors.NewServiceError("error interno", "server", c.FullPath(), nil))
			}
		}()
		c.Next()
	}
}

func respondError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperrors.StatusOf(err), gin.H{
		"error": apperrors.MessageOf(err),
		"code":  apperrors.CodeOf(err),
	})
}
