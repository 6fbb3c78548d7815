// Package httpapi provides an in-memory HTTP REST backend serving the same
// API the finsview clients consume, for development and tests.
package httpapi

import (
	"finsview/internal/domain"
)

// SymbolsResponse is the body of GET /api/symbols/{active|favorites}.
type SymbolsResponse struct {
	Symbols []domain.Symbol `json:"symbols"`
	Total   int             `json:"total"`
}

// PricesResponse is the body of GET /api/prices/{interval}/{ticker}.
type PricesResponse struct {
	Ticker   string            `json:"ticker"`
	Interval domain.Interval   `json:"interval"`
	Prices   []domain.PriceBar `json:"prices"`
}

// FavoriteResponse is the body of POST /api/favorites/{ticker}.
type FavoriteResponse struct {
	IsFavorite bool `json:"isFavorite"`
}

// RatingRequest is the body of POST /api/ratings/{ticker}.
type RatingRequest struct {
	Rating int     `json:"rating"`
	Notes  *string `json:"notes"`
}

// RenameRequest is the body of PUT /api/analysis/{id}.
type RenameRequest struct {
	Name string `json:"name"`
}

// ClearErrorsResponse is the body of DELETE /api/errors.
type ClearErrorsResponse struct {
	Deleted int `json:"deleted"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Symbols int    `json:"symbols"`
}
