package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/honeynil/GymLedgerService/internal/infrastructure/observability"
	service "github.com/honeynil/GymLedgerService/internal/services"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
)

type Handler struct {
	users         service.UserService
	balance       service.BalanceService
	subscriptions service.SubscriptionService
	goods         service.GoodsService
	payments      service.PaymentService
	calendar      service.CalendarService
	trainers      service.TrainerService
}

func NewHandler(
	users service.UserService,
	balance service.BalanceService,
	subscriptions service.SubscriptionService,
	goods service.GoodsService,
	payments service.PaymentService,
	calendar service.CalendarService,
	trainers service.TrainerService,
) *Handler {
	return &Handler{
		users:         users,
		balance:       balance,
		subscriptions: subscriptions,
		goods:         goods,
		payments:      payments,
		calendar:      calendar,
		trainers:      trainers,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// Порядок важен: первое совпадение по errors.Is.
var errorMappings = []errorMapping{
	{pkgerrors.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
	{pkgerrors.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
	{pkgerrors.ErrInvalidStatus, http.StatusBadRequest, "INVALID_STATUS"},
	{pkgerrors.ErrNilUser, http.StatusBadRequest, "INVALID_INPUT"},
	{pkgerrors.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{pkgerrors.ErrSubscriptionNotFound, http.StatusNotFound, "SUBSCRIPTION_NOT_FOUND"},
	{pkgerrors.ErrUserSubscriptionNotFound, http.StatusNotFound, "SUBSCRIPTION_NOT_FOUND"},
	{pkgerrors.ErrProductNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
	{pkgerrors.ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
	{pkgerrors.ErrEventNotFound, http.StatusNotFound, "EVENT_NOT_FOUND"},
	{pkgerrors.ErrActionNotFound, http.StatusNotFound, "ACTION_NOT_FOUND"},
	{pkgerrors.ErrRecordNotFound, http.StatusNotFound, "RECORD_NOT_FOUND"},
	{pkgerrors.ErrTrainerNotFound, http.StatusNotFound, "TRAINER_NOT_FOUND"},
	{pkgerrors.ErrInsufficientFunds, http.StatusBadRequest, "INSUFFICIENT_BALANCE"},
	{pkgerrors.ErrAlreadyActiveSubscription, http.StatusBadRequest, "ALREADY_HAVE_ACTIVE_SUBSCRIPTION"},
	{pkgerrors.ErrOutOfStock, http.StatusBadRequest, "OUT_OF_STOCK"},
	{pkgerrors.ErrActionFull, http.StatusBadRequest, "NO_FREE_PLACES"},
	{pkgerrors.ErrAlreadyBooked, http.StatusConflict, "ALREADY_BOOKED"},
	{pkgerrors.ErrUserAlreadyExists, http.StatusConflict, "CONFLICT"},
	{pkgerrors.ErrConflict, http.StatusConflict, "CONFLICT"},
	{pkgerrors.ErrRequestAlreadyProcessed, http.StatusConflict, "REQUEST_ALREADY_PROCESSED"},
	{pkgerrors.ErrInvalidOrderStatus, http.StatusConflict, "INVALID_ORDER_STATUS"},
	{pkgerrors.ErrOrderAlreadyCompleted, http.StatusConflict, "INVALID_ORDER_STATUS"},
	{pkgerrors.ErrPaymentGateway, http.StatusBadGateway, "PAYMENT_GATEWAY_ERROR"},
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			status, code = m.status, m.code
			break
		}
	}

	logger := observability.Logger(r.Context(), "method", r.Method, "path", r.URL.Path)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	} else {
		logger.Warn("request rejected", "code", code, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", pkgerrors.ErrInvalidInput, err)
	}
	return nil
}

func pathInt(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", pkgerrors.ErrInvalidInput, name)
	}
	return v, nil
}

// queryInt returns nil when the parameter is absent.
func queryInt(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", pkgerrors.ErrInvalidInput, name)
	}
	return &v, nil
}

// Limiter wraps the balance-spending endpoints with admission control.
type Limiter func(route string) func(http.Handler) http.Handler

func (h *Handler) RegisterRoutes(r *mux.Router, limit Limiter) {
	if limit == nil {
		limit = func(string) func(http.Handler) http.Handler {
			return func(next http.Handler) http.Handler { return next }
		}
	}

	r.HandleFunc("/users", h.CreateUser).Methods(http.MethodPost)
	r.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)

	r.HandleFunc("/users/balance", h.ListBalances).Methods(http.MethodGet)
	r.HandleFunc("/users/balance/{telegram_id}", h.GetBalance).Methods(http.MethodGet)
	r.HandleFunc("/users/balance/{telegram_id}/topup", h.TopUp).Methods(http.MethodPost)
	r.HandleFunc("/users/balance/{telegram_id}/chargeoff", h.ChargeOff).Methods(http.MethodPost)
	r.HandleFunc("/users/transactions/{telegram_id}", h.ListTransactions).Methods(http.MethodGet)
	r.HandleFunc("/users/purchases/{telegram_id}", h.ListPurchases).Methods(http.MethodGet)

	r.HandleFunc("/users/subscriptions", h.ListUserSubscriptions).Methods(http.MethodGet)
	r.HandleFunc("/users/subscriptions/check/{telegram_id}", h.CheckSubscription).Methods(http.MethodGet)
	r.HandleFunc("/users/subscriptions/{telegram_id}", h.UpdateSubscriptionStatus).Methods(http.MethodPatch)

	r.HandleFunc("/users/{telegram_id}", h.UpdateUser).Methods(http.MethodPatch)
	r.HandleFunc("/users/{id}", h.DeleteUser).Methods(http.MethodDelete)

	r.Handle("/subscriptions/buy/userbalance",
		limit("subscriptions")(http.HandlerFunc(h.BuySubscription))).Methods(http.MethodPost)
	r.HandleFunc("/subscriptions", h.ListPlans).Methods(http.MethodGet)
	r.HandleFunc("/subscriptions", h.CreatePlan).Methods(http.MethodPost)
	r.HandleFunc("/subscriptions/{id}", h.UpdatePlan).Methods(http.MethodPatch)
	r.HandleFunc("/subscriptions/{id}", h.DeletePlan).Methods(http.MethodDelete)

	r.Handle("/goods/buy/userbalance",
		limit("goods")(http.HandlerFunc(h.BuyGoods))).Methods(http.MethodPost)
	r.HandleFunc("/goods", h.ListGoods).Methods(http.MethodGet)
	r.HandleFunc("/goods", h.CreateGood).Methods(http.MethodPost)
	r.HandleFunc("/goods/{id}", h.UpdateGood).Methods(http.MethodPatch)
	r.HandleFunc("/goods/{id}", h.DeleteGood).Methods(http.MethodDelete)

	r.HandleFunc("/orders/{telegram_id}", h.CreateOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders/{telegram_id}", h.ListOrders).Methods(http.MethodGet)
	r.HandleFunc("/payment/init", h.InitPayment).Methods(http.MethodPost)
	r.HandleFunc("/webhooks/payment/notifications", h.PaymentNotification).Methods(http.MethodPost)

	r.HandleFunc("/calendar/events", h.ListEvents).Methods(http.MethodGet)
	r.HandleFunc("/calendar/events", h.CreateEvent).Methods(http.MethodPost)
	r.HandleFunc("/calendar/events/{event_id}", h.UpdateEvent).Methods(http.MethodPatch)
	r.HandleFunc("/calendar/events/{event_id}", h.DeleteEvent).Methods(http.MethodDelete)
	r.HandleFunc("/calendar/periodic", h.RollPeriodic).Methods(http.MethodPatch)

	r.HandleFunc("/calendar/actions", h.ListActions).Methods(http.MethodGet)
	r.HandleFunc("/calendar/actions", h.CreateAction).Methods(http.MethodPost)
	r.HandleFunc("/calendar/actions/periodic/{action_id}/{value}", h.SetPeriodic).Methods(http.MethodPost)
	r.HandleFunc("/calendar/actions/{day}", h.ListActions).Methods(http.MethodGet)
	r.HandleFunc("/calendar/actions/{action_id}", h.DeleteAction).Methods(http.MethodDelete)

	// "action" раньше {action_id}, иначе mux отдаст путь не тому обработчику.
	r.HandleFunc("/calendar/records/action/{user_id}", h.ListUserRecords).Methods(http.MethodGet)
	r.HandleFunc("/calendar/records/{action_id}", h.ListActionRecords).Methods(http.MethodGet)
	r.Handle("/calendar/records/{action_id}/{user_id}",
		limit("calendar")(http.HandlerFunc(h.BookRecord))).Methods(http.MethodPost)
	r.HandleFunc("/calendar/records/{action_id}/{user_id}", h.CancelRecord).Methods(http.MethodDelete)

	r.HandleFunc("/trainers", h.ListTrainers).Methods(http.MethodGet)
	r.HandleFunc("/trainers", h.CreateTrainer).Methods(http.MethodPost)
	r.HandleFunc("/trainers/{user_id}", h.UpdateTrainer).Methods(http.MethodPatch)
	r.HandleFunc("/trainer/{user_id}", h.UpdateTrainer).Methods(http.MethodPatch)
	r.HandleFunc("/trainers/{user_id}", h.DeleteTrainer).Methods(http.MethodDelete)
	r.HandleFunc("/users/trainers/assign/{telegram_id}", h.AssignTrainer).Methods(http.MethodPost)
	r.HandleFunc("/users/trainers/{telegram_id}", h.ListUserTrainers).Methods(http.MethodGet)
}
