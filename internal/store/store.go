// Package store defines storage interfaces for persisting and retrieving
// orders, fills, and signals, with a SQLite implementation.
package store

import (
	"context"

	"marubot/internal/domain"
)

// OrderStore persists and retrieves order records.
type OrderStore interface {
	// SaveOrder inserts a new order into storage.
	SaveOrder(ctx context.Context, order *domain.Order) error

	// GetOrder retrieves a single order by its ID.
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// ListOrders returns all orders matching the given status, newest first.
	ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)

	// UpdateOrder persists changes to an existing order.
	UpdateOrder(ctx context.Context, order *domain.Order) error
}

// FillStore persists and retrieves execution reports.
type FillStore interface {
	// SaveFill appends a fill to storage.
	SaveFill(ctx context.Context, fill *domain.Fill) error

	// ListFills returns all fills for an instrument code, oldest first.
	ListFills(ctx context.Context, code string) ([]domain.Fill, error)
}

// SignalStore persists and retrieves trading signals.
type SignalStore interface {
	// SaveSignal appends a signal to storage.
	SaveSignal(ctx context.Context, signal *domain.Signal) error

	// ListSignals returns the most recent signals for a strategy, up to
	// limit, newest first.
	ListSignals(ctx context.Context, strategy string, limit int) ([]domain.Signal, error)
}
