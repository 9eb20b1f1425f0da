package db

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const connKey contextKey = "db_conn"

// ConnMiddleware pins one pooled connection to each request with a
// statement_timeout, so a stuck query fails on the server side as well.
// Stores pick the connection up through ConnFromContext.
func ConnMiddleware(pool *pgxpool.Pool, statementTimeout time.Duration) echo.MiddlewareFunc {
	setTimeout := statementTimeoutSQL(statementTimeout)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer func() {
				// A connection that cannot be reset is not returned to the pool.
				if _, err := conn.Exec(context.WithoutCancel(ctx), "RESET statement_timeout"); err != nil {
					conn.Conn().Close(context.WithoutCancel(ctx))
				}
				conn.Release()
			}()

			if _, err := conn.Exec(ctx, setTimeout); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			c.SetRequest(c.Request().WithContext(WithConn(ctx, conn)))
			return next(c)
		}
	}
}

func statementTimeoutSQL(d time.Duration) string {
	if d <= 0 {
		return "SET statement_timeout = 0"
	}
	return fmt.Sprintf("SET statement_timeout = %d", d.Milliseconds())
}

func WithConn(ctx context.Context, conn *pgxpool.Conn) context.Context {
	return context.WithValue(ctx, connKey, conn)
}

// ConnFromContext returns the request's pinned connection, or nil.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(connKey).(*pgxpool.Conn)
	return conn
}
