package middleware

import (
	"net/http"
	"net/netip"
	"slices"
	"strings"

	"github.com/erp/salesdocs/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

type SwaggerConfig struct {
	Enabled bool
	// AllowedIPs holds addresses or CIDR ranges. Empty admits every client,
	// unparsable entries are ignored.
	AllowedIPs []string
}

// allowList parses the configured entries, a bare address becoming a
// single-address prefix
func (cfg SwaggerConfig) allowList() []netip.Prefix {
	var prefixes []netip.Prefix
	for _, entry := range cfg.AllowedIPs {
		entry = strings.TrimSpace(entry)
		if p, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return prefixes
}

// SwaggerProtection hides the API documentation: 404 while disabled, 403 for
// clients outside the allow list.
func SwaggerProtection(cfg SwaggerConfig) gin.HandlerFunc {
	allowed := cfg.allowList()
	restricted := len(cfg.AllowedIPs) > 0

	return func(c *gin.Context) {
		switch {
		case !cfg.Enabled:
			c.AbortWithStatusJSON(http.StatusNotFound,
				dto.NewErrorResponse(dto.ErrCodeNotFound, "API documentation is not available"))
		case restricted && !clientAllowed(c.ClientIP(), allowed):
			c.AbortWithStatusJSON(http.StatusForbidden,
				dto.NewErrorResponse(dto.ErrCodeForbidden, "Access to API documentation is restricted"))
		default:
			c.Next()
		}
	}
}

func clientAllowed(clientIP string, allowed []netip.Prefix) bool {
	addr, err := netip.ParseAddr(clientIP)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return slices.ContainsFunc(allowed, func(p netip.Prefix) bool { return p.Contains(addr) })
}
