// Package model defines the data structures shared across layers.
package model

import "time"

// Tab is one editor document: a title, its source code and the output of its
// most recent run.
type Tab struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Code      string    `json:"code"`
	Output    string    `json:"output"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
