package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwtauth/jwt-auth-service/internal/core/domain"
)

const (
	forwardedForHeader = "X-Forwarded-For"
	realIPHeader       = "X-Real-IP"
)

// ClientIP resolves the originating client address. The first entry of
// X-Forwarded-For wins, then X-Real-IP, then the socket peer address.
func ClientIP(c *gin.Context) string {
	if forwarded := c.GetHeader(forwardedForHeader); forwarded != "" {
		first := forwarded
		if idx := strings.Index(forwarded, ","); idx >= 0 {
			first = forwarded[:idx]
		}
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(c.GetHeader(realIPHeader)); realIP != "" {
		return realIP
	}

	remote := c.Request.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		return host
	}
	return remote
}

// ClientMeta captures the request metadata bound to issued refresh tokens
// and audit records.
func ClientMeta(c *gin.Context) domain.ClientMeta {
	return domain.ClientMeta{
		IP:        ClientIP(c),
		UserAgent: c.Request.UserAgent(),
	}
}
