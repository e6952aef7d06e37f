package client

import (
	"fmt"
	"time"
)

// Slot is one tracked allocation as the API reports it.
type Slot struct {
	ID          string     `json:"id"`
	GroupID     string     `json:"group_id"`
	Name        string     `json:"name"`
	CreatedAt   time.Time  `json:"created_at"`
	LastEmptyAt *time.Time `json:"last_empty_at,omitempty"`
	Warning     string     `json:"warning,omitempty"`
}

// Group is one configured preset pool.
type Group struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Container string   `json:"container"`
	Trigger   string   `json:"trigger"`
	Presets   []string `json:"presets"`
}

// PendingRequest is an outstanding manual-mode pick.
type PendingRequest struct {
	MemberID  string    `json:"member_id"`
	GroupID   string    `json:"group_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AllocateRequest asks for a slot in a group.
type AllocateRequest struct {
	GroupID  string `json:"group_id"`
	MemberID string `json:"member_id"`
	Name     string `json:"name,omitempty"`
}

// PickRequest completes a pending manual-mode allocation.
type PickRequest struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
}

// EvictRequest removes an empty slot by id.
type EvictRequest struct {
	SlotID string `json:"slot_id"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// OKResponse represents a plain success response.
type OKResponse struct {
	OK bool `json:"ok"`
}

// APIError carries the HTTP status alongside the server's error message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}
