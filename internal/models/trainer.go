package models

import "time"

type Trainer struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
}

type TrainerUpdate struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
}

// UserTrainer links a client to a personal trainer.
type UserTrainer struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"users_id"`
	TrainerID int64     `json:"trainers_id"`
	CreatedAt time.Time `json:"created_at"`
	Trainer   *Trainer  `json:"trainers,omitempty"`
}
