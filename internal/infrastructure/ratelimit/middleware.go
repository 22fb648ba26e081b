package ratelimit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/honeynil/GymLedgerService/internal/infrastructure/observability"
	"github.com/honeynil/GymLedgerService/internal/infrastructure/redis"
)

const maxBodyBytes = 1 << 20

type Config struct {
	Window         time.Duration
	SlowDownWindow time.Duration
	SlowDownDelay  time.Duration
}

// Limiter admits one request per key per Window and delays rapid repeats.
// It is admission control only and never replaces store-level checks.
type Limiter struct {
	client redis.RedisClient
	cfg    Config
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(client redis.RedisClient, cfg Config) *Limiter {
	return &Limiter{client: client, cfg: cfg, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *Limiter) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := observability.Logger(ctx, "route", route)

			key, err := requestKey(r)
			if err != nil {
				logger.Warn("failed to read request body", "error", err)
				writeJSONError(w, http.StatusBadRequest, "INVALID_INPUT")
				return
			}

			hits, err := l.client.IncrWithTTL(ctx, fmt.Sprintf("ratelimit:%s:%s", route, key), l.cfg.Window)
			if err != nil {
				logger.Error("rate limiter unavailable, letting request through", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if hits > 1 {
				observability.RateLimitRejections.WithLabelValues(route).Inc()
				logger.Warn("rate limit exceeded", "key", key, "hits", hits)
				writeJSONError(w, http.StatusTooManyRequests, "TOO_MANY_REQUESTS")
				return
			}

			slow, err := l.client.IncrWithTTL(ctx, fmt.Sprintf("slowdown:%s:%s", route, key), l.cfg.SlowDownWindow)
			if err != nil {
				logger.Error("slow down counter unavailable", "key", key, "error", err)
			} else if slow > 1 {
				delay := l.cfg.SlowDownDelay * time.Duration(slow-1)
				slog.Debug("delaying request", "route", route, "key", key, "delay", delay)
				if err := l.sleep(ctx, delay); err != nil {
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestKey reads telegram_id or user_id from the JSON body and puts the
// body back for the next handler. Routes that carry {user_id} in the path
// are keyed by it.
func requestKey(r *http.Request) (string, error) {
	if v := mux.Vars(r)["user_id"]; v != "" {
		return v, nil
	}
	if r.Body != nil {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return "", err
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		var ids struct {
			UserID     json.RawMessage `json:"user_id"`
			TelegramID json.RawMessage `json:"telegram_id"`
		}
		if json.Unmarshal(body, &ids) == nil {
			for _, raw := range []json.RawMessage{ids.UserID, ids.TelegramID} {
				if v := strings.Trim(string(raw), `"`); v != "" && v != "null" {
					return v, nil
				}
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr, nil
	}
	return host, nil
}

func writeJSONError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
