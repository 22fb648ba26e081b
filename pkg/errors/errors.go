package errors

import (
	"errors"
)

var (
	ErrInvalidInput              = errors.New("invalid input")
	ErrInvalidAmount             = errors.New("amount must be a positive number")
	ErrInvalidStatus             = errors.New("invalid status value")
	ErrUserNotFound              = errors.New("user not found")
	ErrUserAlreadyExists         = errors.New("user already exists")
	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrUserSubscriptionNotFound  = errors.New("user subscription not found")
	ErrProductNotFound           = errors.New("product not found")
	ErrOrderNotFound             = errors.New("order not found")
	ErrAlreadyActiveSubscription = errors.New("subscription is already active")
	ErrInsufficientFunds         = errors.New("insufficient balance")
	ErrOutOfStock                = errors.New("not enough goods in stock")
	ErrConflict                  = errors.New("conflict with existing data")
	ErrRequestAlreadyProcessed   = errors.New("request already processed")
	ErrInvalidOrderStatus        = errors.New("order status does not allow this operation")
	ErrOrderAlreadyCompleted     = errors.New("order already completed")
	ErrNilUser                   = errors.New("user is nil")
	ErrNilTransaction            = errors.New("transaction is nil")
	ErrInvalidTransactionType    = errors.New("invalid transaction type")
	ErrPaymentGateway            = errors.New("payment gateway error")
	ErrEventNotFound             = errors.New("calendar event not found")
	ErrActionNotFound            = errors.New("calendar action not found")
	ErrRecordNotFound            = errors.New("calendar record not found")
	ErrAlreadyBooked             = errors.New("user is already booked for this action")
	ErrActionFull                = errors.New("no free places left for this action")
	ErrTrainerNotFound           = errors.New("trainer not found")
	ErrInternal                  = errors.New("internal error")
)

var domain = []error{
	ErrInvalidInput, ErrInvalidAmount, ErrInvalidStatus,
	ErrUserNotFound, ErrUserAlreadyExists, ErrSubscriptionNotFound,
	ErrUserSubscriptionNotFound, ErrProductNotFound, ErrOrderNotFound,
	ErrAlreadyActiveSubscription, ErrInsufficientFunds, ErrOutOfStock,
	ErrConflict, ErrRequestAlreadyProcessed, ErrInvalidOrderStatus,
	ErrOrderAlreadyCompleted, ErrNilUser, ErrNilTransaction,
	ErrInvalidTransactionType, ErrPaymentGateway, ErrInternal,
	ErrEventNotFound, ErrActionNotFound, ErrRecordNotFound,
	ErrAlreadyBooked, ErrActionFull, ErrTrainerNotFound,
}

// IsDomain reports whether err wraps one of the sentinels above.
func IsDomain(err error) bool {
	for _, target := range domain {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
