package service

import (
	_ "embed"
	"errors"
	"fmt"

	"nest_dashboard/internal/feed"
	"nest_dashboard/internal/models"
)

//go:embed fallback.json
var fallbackJSON []byte

// FallbackSnapshot decodes the bundled demo snapshot. Every call returns a new copy.
func FallbackSnapshot() (*models.NestSnapshot, error) {
	snap, err := feed.DecodeSnapshot(fallbackJSON)
	if err != nil {
		return nil, fmt.Errorf("decode bundled fallback: %w", err)
	}
	if snap == nil {
		return nil, errors.New("bundled fallback is empty")
	}
	return snap, nil
}

// MustFallbackSnapshot is FallbackSnapshot for wiring code; the payload is compiled in.
func MustFallbackSnapshot() *models.NestSnapshot {
	snap, err := FallbackSnapshot()
	if err != nil {
		panic(err)
	}
	return snap
}
