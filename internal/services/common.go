package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/GymLedgerService/internal/infrastructure/redis"
	"github.com/honeynil/GymLedgerService/internal/models"
	"github.com/honeynil/GymLedgerService/internal/repository"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "gym-ledger-service"

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}

// fail records err on the span and folds unknown errors into ErrInternal.
func fail(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	if pkgerrors.IsDomain(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", pkgerrors.ErrInternal, msg, err)
}

// validAmount accepts positive sums in whole kopecks.
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Truncate(2))
}

func resolveUser(ctx context.Context, users repository.UserRepository, telegramID int64) (*models.User, error) {
	if telegramID == 0 {
		return nil, fmt.Errorf("%w: telegram_id is required", pkgerrors.ErrInvalidInput)
	}
	return users.GetByTelegramID(ctx, telegramID)
}

// requestGuard turns a caller supplied request id into a one-shot redis key.
type requestGuard struct {
	redis redis.RedisClient
	ttl   time.Duration
}

// acquire returns a release func that frees the key again; callers invoke it
// when the guarded workflow fails so the request can be retried.
func (g requestGuard) acquire(ctx context.Context, scope, requestID string) (func(), error) {
	if requestID == "" || g.redis == nil {
		return func() {}, nil
	}
	key := fmt.Sprintf("request:%s:%s", scope, requestID)
	ok, err := g.redis.SetNX(ctx, key, "pending", g.ttl)
	if err != nil {
		slog.Error("failed to set request key", "request_id", requestID, "error", err)
		return nil, fmt.Errorf("%w: failed to set request key", pkgerrors.ErrInternal)
	}
	if !ok {
		slog.Warn("request already processed", "request_id", requestID, "scope", scope)
		return nil, pkgerrors.ErrRequestAlreadyProcessed
	}
	return func() {
		if err := g.redis.Del(context.WithoutCancel(ctx), key); err != nil {
			slog.Error("failed to release request key", "request_id", requestID, "error", err)
		}
	}, nil
}
