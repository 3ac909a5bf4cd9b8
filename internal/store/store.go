// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"spread-scanner/internal/models"
)

// SignalStore persists emitted signals per scan cycle.
type SignalStore interface {
	SaveSignals(ctx context.Context, cycleID string, signals []models.Signal) error
	GetSignals(ctx context.Context, filter SignalFilter) ([]models.Signal, error)
}

// PositionStore persists open positions and the closed-position archive.
// Archived positions are never deleted.
type PositionStore interface {
	SavePosition(ctx context.Context, pos *models.Position) error
	ArchivePosition(ctx context.Context, pos *models.Position) error
	GetPositions(ctx context.Context, filter PositionFilter) ([]models.Position, error)
}

// DataStore is the full persistence surface.
type DataStore interface {
	SignalStore
	PositionStore
	Close() error
}

// SignalFilter narrows signal queries.
type SignalFilter struct {
	Symbol    string
	CycleID   string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}

// PositionFilter narrows position queries. State matches the lifecycle
// state; empty matches all.
type PositionFilter struct {
	Symbol string
	State  string
	Limit  int
}
