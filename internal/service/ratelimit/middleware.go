package ratelimit

import (
	xhttp "EpiPulse/pkg/http"
	applogger "EpiPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Middleware rejects requests over the per-IP rate with 429.
func Middleware(l *Limiter, log applogger.Interface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !l.Allow(ip) {
				log.Warn("rate limit exceeded",
					applogger.String("ip", ip),
					applogger.String("path", c.Path()),
				)
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests, slow down"))
			}
			return next(c)
		}
	}
}
