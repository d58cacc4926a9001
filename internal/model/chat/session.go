package chat

import "time"

// Session is the state of one widget instance on a visitor's page.
type Session struct {
	ID            string    `json:"id"`
	Visible       bool      `json:"visible"`
	GreetingShown bool      `json:"greetingShown"`
	CreatedAt     time.Time `json:"createdAt"`
}
