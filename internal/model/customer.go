package model

import "time"

type Customer struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Wilaya     string    `json:"wilaya"`
	Commune    string    `json:"commune"`
	OrderCount int       `json:"order_count"`
	CreatedAt  time.Time `json:"created_at"`
}
