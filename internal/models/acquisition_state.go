package models

import "time"

// AcquisitionMode is LOADING until the first resolution, then LIVE or DEMO.
type AcquisitionMode string

const (
	ModeLoading AcquisitionMode = "LOADING"
	ModeLive    AcquisitionMode = "LIVE"
	ModeDemo    AcquisitionMode = "DEMO"
)

// AcquisitionState is the reconciled view of connectivity, data freshness and snapshot.
type AcquisitionState struct {
	Connected bool            `json:"connected"`
	Mode      AcquisitionMode `json:"mode"`
	Snapshot  *NestSnapshot   `json:"snapshot,omitempty"` // nil until first resolution
	Revision  uint64          `json:"revision"`           // bumped on every snapshot replacement
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsDemo reports whether the snapshot is the bundled fallback.
func (s AcquisitionState) IsDemo() bool {
	return s.Mode == ModeDemo
}
