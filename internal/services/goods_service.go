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
	"go.opentelemetry.io/otel/attribute"
)

type BuyRequest struct {
	TelegramID int64
	GoodsID    int64
	Quantity   int
	RequestID  string
}

type GoodsService interface {
	Buy(ctx context.Context, req BuyRequest) (*models.Purchase, error)
	List(ctx context.Context) ([]models.Good, error)
	Create(ctx context.Context, good *models.Good) error
	Update(ctx context.Context, id int64, upd models.GoodUpdate) (*models.Good, error)
	Delete(ctx context.Context, id int64) error
	ListPurchases(ctx context.Context, telegramID int64) ([]models.Purchase, error)
}

type goodsService struct {
	userRepo  repository.UserRepository
	goodsRepo repository.GoodsRepository
	guard     requestGuard
}

func NewGoodsService(
	userRepo repository.UserRepository,
	goodsRepo repository.GoodsRepository,
	redisClient redis.RedisClient,
	requestTTL time.Duration,
) *goodsService {
	return &goodsService{
		userRepo:  userRepo,
		goodsRepo: goodsRepo,
		guard:     requestGuard{redis: redisClient, ttl: requestTTL},
	}
}

func (s *goodsService) Buy(ctx context.Context, req BuyRequest) (purchase *models.Purchase, err error) {
	ctx, span := startSpan(ctx, "BuyGoods")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("telegram_id", req.TelegramID),
		attribute.Int64("goods_id", req.GoodsID),
		attribute.Int("quantity", req.Quantity),
	)

	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || req.GoodsID <= 0 {
		return nil, fail(span, fmt.Errorf("%w: goods_id and positive quantity are required", pkgerrors.ErrInvalidInput), "invalid input")
	}

	release, err := s.guard.acquire(ctx, "goods", req.RequestID)
	if err != nil {
		return nil, fail(span, err, "request guard")
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	user, err := resolveUser(ctx, s.userRepo, req.TelegramID)
	if err != nil {
		return nil, fail(span, err, "user not found")
	}
	if _, err = s.goodsRepo.GetByID(ctx, req.GoodsID); err != nil {
		return nil, fail(span, err, "product not found")
	}

	purchase, err = s.goodsRepo.Purchase(ctx, models.PurchaseParams{
		UserID:   user.ID,
		GoodsID:  req.GoodsID,
		Quantity: req.Quantity,
	})
	if err != nil {
		slog.Warn("purchase rejected",
			"user_id", user.ID,
			"goods_id", req.GoodsID,
			"quantity", req.Quantity,
			"error", err)
		return nil, fail(span, err, "purchase failed")
	}

	slog.Info("goods bought",
		"user_id", user.ID,
		"telegram_id", req.TelegramID,
		"goods_id", req.GoodsID,
		"amount", purchase.Amount)
	return purchase, nil
}

func (s *goodsService) List(ctx context.Context) ([]models.Good, error) {
	return s.goodsRepo.List(ctx)
}

func (s *goodsService) Create(ctx context.Context, good *models.Good) error {
	return s.goodsRepo.Create(ctx, good)
}

func (s *goodsService) Update(ctx context.Context, id int64, upd models.GoodUpdate) (*models.Good, error) {
	return s.goodsRepo.Update(ctx, id, upd)
}

func (s *goodsService) Delete(ctx context.Context, id int64) error {
	return s.goodsRepo.Delete(ctx, id)
}

func (s *goodsService) ListPurchases(ctx context.Context, telegramID int64) ([]models.Purchase, error) {
	user, err := resolveUser(ctx, s.userRepo, telegramID)
	if err != nil {
		return nil, err
	}
	return s.goodsRepo.ListPurchases(ctx, user.ID)
}
