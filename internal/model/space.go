package model

import "time"

// Space is a household: the sharing and ownership scope of everything else.
type Space struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
