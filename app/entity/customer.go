package entity

import "time"

type Customer struct {
	ID uint64

	UserID     string
	CustomerID string
	Email      string

	CreatedAt time.Time
	UpdatedAt time.Time
}
