package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/honeynil/GymLedgerService/internal/infrastructure/observability"
	"github.com/honeynil/GymLedgerService/internal/models"
	"github.com/honeynil/GymLedgerService/internal/repository"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// PaymentGateway opens a payment session at the provider.
type PaymentGateway interface {
	Init(ctx context.Context, p models.PaymentInit) (*models.PaymentSession, error)
}

// Notifier hands an outbound user notification to the delivery pipeline.
type Notifier interface {
	Publish(ctx context.Context, n models.Notification) error
}

type PaymentService interface {
	CreateOrder(ctx context.Context, telegramID int64, amount decimal.Decimal) (*models.Order, error)
	ListOrders(ctx context.Context, telegramID int64) ([]models.Order, error)
	InitPayment(ctx context.Context, orderNumber int64) (*models.PaymentSession, error)
	HandleNotification(ctx context.Context, n models.PaymentNotification) error
}

type paymentService struct {
	userRepo  repository.UserRepository
	orderRepo repository.OrderRepository
	gateway   PaymentGateway
	notifier  Notifier
}

func NewPaymentService(
	userRepo repository.UserRepository,
	orderRepo repository.OrderRepository,
	gateway PaymentGateway,
	notifier Notifier,
) *paymentService {
	return &paymentService{
		userRepo:  userRepo,
		orderRepo: orderRepo,
		gateway:   gateway,
		notifier:  notifier,
	}
}

func (s *paymentService) CreateOrder(ctx context.Context, telegramID int64, amount decimal.Decimal) (*models.Order, error) {
	if !validAmount(amount) {
		return nil, pkgerrors.ErrInvalidAmount
	}
	user, err := resolveUser(ctx, s.userRepo, telegramID)
	if err != nil {
		return nil, err
	}
	order := &models.Order{UserID: user.ID, Amount: amount}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *paymentService) ListOrders(ctx context.Context, telegramID int64) ([]models.Order, error) {
	user, err := resolveUser(ctx, s.userRepo, telegramID)
	if err != nil {
		return nil, err
	}
	return s.orderRepo.ListByUser(ctx, user.ID)
}

// InitPayment opens a provider session for the order and moves it to PENDING.
func (s *paymentService) InitPayment(ctx context.Context, orderNumber int64) (*models.PaymentSession, error) {
	ctx, span := startSpan(ctx, "InitPayment")
	defer span.End()
	span.SetAttributes(attribute.Int64("order_number", orderNumber))

	order, err := s.orderRepo.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, fail(span, err, "order lookup failed")
	}
	if order.Status == models.OrderComplete {
		return nil, fail(span, pkgerrors.ErrInvalidOrderStatus, "order already complete")
	}
	user, err := s.userRepo.GetByID(ctx, order.UserID)
	if err != nil {
		return nil, fail(span, err, "order owner lookup failed")
	}

	session, err := s.gateway.Init(ctx, models.PaymentInit{
		OrderNumber: order.Number,
		Amount:      order.Amount,
		CustomerKey: strconv.FormatInt(user.TelegramID, 10),
		TelegramID:  user.TelegramID,
	})
	if err != nil {
		return nil, fail(span, err, "payment gateway init failed")
	}

	if _, err := s.orderRepo.MarkPending(ctx, order.Number); err != nil {
		return nil, fail(span, err, "mark order pending failed")
	}

	slog.Info("payment session opened",
		"order_number", order.Number,
		"user_id", order.UserID,
		"payment_id", session.PaymentID)
	return session, nil
}

// HandleNotification reconciles a provider notification. Only CONFIRMED is
// acted upon; the COMPLETE transition and the credit are a single store step,
// so repeated deliveries of the same confirmation credit the user once.
func (s *paymentService) HandleNotification(ctx context.Context, n models.PaymentNotification) error {
	ctx, span := startSpan(ctx, "HandlePaymentNotification")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order_number", n.OrderNumber),
		attribute.String("status", n.Status),
	)

	if n.Status != models.PaymentConfirmed {
		observability.PaymentNotifications.WithLabelValues("ignored").Inc()
		slog.Info("payment notification ignored", "order_number", n.OrderNumber, "status", n.Status)
		return nil
	}

	completion, err := s.orderRepo.Complete(ctx, n.OrderNumber)
	if stderrors.Is(err, pkgerrors.ErrOrderAlreadyCompleted) {
		observability.PaymentNotifications.WithLabelValues("duplicate").Inc()
		slog.Info("payment notification already processed", "order_number", n.OrderNumber)
		return nil
	}
	if err != nil {
		observability.PaymentNotifications.WithLabelValues("error").Inc()
		slog.Error("failed to complete order", "order_number", n.OrderNumber, "error", err)
		return fail(span, err, "complete order failed")
	}
	observability.PaymentNotifications.WithLabelValues("credited").Inc()

	slog.Info("order paid",
		"order_number", n.OrderNumber,
		"user_id", completion.Order.UserID,
		"amount", completion.Order.Amount,
		"balance", completion.Balance)

	s.notifyCredited(context.WithoutCancel(ctx), completion)
	return nil
}

// notifyCredited is best effort: the credit is already committed.
func (s *paymentService) notifyCredited(ctx context.Context, c *models.OrderCompletion) {
	if s.notifier == nil {
		return
	}
	user, err := s.userRepo.GetByID(ctx, c.Order.UserID)
	if err != nil {
		slog.Error("failed to resolve order owner for notification", "order_number", c.Order.Number, "error", err)
		return
	}

	n := models.Notification{
		Kind:       models.NotificationBalanceCredited,
		TelegramID: user.TelegramID,
		Amount:     c.Order.Amount,
		Balance:    c.Balance,
		Message: fmt.Sprintf("Платеж успешно завершен. Ваш баланс пополнен на %s ₽. Всего на балансе %s ₽.",
			c.Order.Amount.StringFixed(2), c.Balance.StringFixed(2)),
	}
	if err := s.notifier.Publish(ctx, n); err != nil {
		slog.Error("failed to publish notification",
			"order_number", c.Order.Number,
			"telegram_id", user.TelegramID,
			"error", err)
	}
}
