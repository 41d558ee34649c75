package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Check is one dependency checked by Health.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Health returns a health-check endpoint for load balancers.  It pings
// every dependency in order and answers 200 "ok", or 503 naming the first
// one that failed.
func Health(checks ...Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		for _, chk := range checks {
			if err := chk.Ping(ctx); err != nil {
				return c.String(http.StatusServiceUnavailable, chk.Name+" unavailable")
			}
		}
		return c.String(http.StatusOK, "ok")
	}
}
