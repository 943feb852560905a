package models

import "time"

// Address — адрес доставки пользователя. У пользователя ровно один адрес по умолчанию
type Address struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Recipient  string    `json:"recipient"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	City       string    `json:"city"`
	PostalCode string    `json:"postal_code"`
	Phone      string    `json:"phone"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
}
