// Package dto defines request and response shapes for the HTTP API.
package dto

import "time"

// LoginRequest is the credential payload for POST /auth/login.
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	UserID    int64     `json:"user_id"`
	Login     string    `json:"login"`
	Admin     bool      `json:"admin"`
}

// SearchRequest filters an object search.
type SearchRequest struct {
	Filters []FilterDTO `json:"filters"`
}

// FilterDTO is one search criterion.
type FilterDTO struct {
	Field string `json:"field" binding:"required"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// WriteRequest carries field values for an upsert.
type WriteRequest struct {
	Values map[string]any `json:"values" binding:"required"`
}

// RecordsResponse wraps a search result.
type RecordsResponse struct {
	Records []map[string]any `json:"records"`
	Count   int              `json:"count"`
}

// StatusResponse is a minimal acknowledgment body.
type StatusResponse struct {
	Status string `json:"status"`
}
