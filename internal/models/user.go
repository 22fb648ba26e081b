package models

import "time"

const RoleCustomer = "CUSTOMER"

// User is identified externally by its Telegram id and internally by ID.
type User struct {
	ID               int64      `json:"id"`
	TelegramID       int64      `json:"telegram_id"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name,omitempty"`
	TelegramNickname string     `json:"telegram_nickname,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	Email            string     `json:"email,omitempty"`
	Role             string     `json:"role"`
	Status           string     `json:"status,omitempty"`
	Gender           string     `json:"gender,omitempty"`
	Birth            *time.Time `json:"birth,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type UserFilter struct {
	ID         *int64
	TelegramID *int64
}

// UserUpdate carries a partial profile change; nil fields are left untouched.
type UserUpdate struct {
	FirstName        *string    `json:"first_name"`
	LastName         *string    `json:"last_name"`
	TelegramNickname *string    `json:"telegram_nickname"`
	Phone            *string    `json:"phone"`
	Email            *string    `json:"email"`
	Role             *string    `json:"role"`
	Status           *string    `json:"status"`
	Gender           *string    `json:"gender"`
	Birth            *time.Time `json:"birth"`
}

func (u UserUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.TelegramNickname == nil &&
		u.Phone == nil && u.Email == nil && u.Role == nil && u.Status == nil &&
		u.Gender == nil && u.Birth == nil
}
