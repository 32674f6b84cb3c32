// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"

	"github.com/labstack/echo/v4"
)

// Blacklist is a set of blocked client addresses and networks.
type Blacklist struct {
	prefixes []netip.Prefix
}

// NewBlacklist parses single addresses ("10.0.0.1") and CIDR ranges
// ("10.0.0.0/8"). Empty entries are skipped.
func NewBlacklist(entries []string) (*Blacklist, error) {
	bl := &Blacklist{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid blacklist entry %q: %w", entry, err)
			}
			bl.prefixes = append(bl.prefixes, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid blacklist entry %q: %w", entry, err)
		}
		addr = addr.Unmap()
		bl.prefixes = append(bl.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return bl, nil
}

// Len returns the number of entries.
func (b *Blacklist) Len() int {
	return len(b.prefixes)
}

// Contains reports whether ip is blocked. Unparseable addresses are not blocked.
func (b *Blacklist) Contains(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range b.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// BlockIPs rejects requests from blacklisted client IPs with 403 Forbidden.
// The client IP is resolved with echo's IPExtractor.
func BlockIPs(bl *Blacklist) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if bl == nil || bl.Len() == 0 {
				return next(c)
			}
			ip := c.RealIP()
			if bl.Contains(ip) {
				slog.Warn("request_blocked", "ip", ip, "path", c.Request().URL.Path)
				return echo.NewHTTPError(http.StatusForbidden)
			}
			return next(c)
		}
	}
}
