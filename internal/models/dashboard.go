package models

import "time"

// ActivityEntry is one line of the activity feed, newest first.
type ActivityEntry struct {
	EventID   string    `json:"event_id"`
	Kind      EventKind `json:"kind"`
	Subject   string    `json:"subject"`
	TimeOfDay string    `json:"time_of_day"`
	Timestamp int64     `json:"ts,omitempty"`
	IsEgg     bool      `json:"is_egg"`
}

// NestStatus is the renderer-facing summary of a snapshot.
type NestStatus struct {
	Occupancy    Occupancy `json:"occupancy"`
	Occupied     bool      `json:"occupied"`
	GuestLabel   string    `json:"guest_label,omitempty"`
	TotalEggs    int       `json:"total_eggs"`
	TemperatureC float64   `json:"temperature_c"`
	HumidityPct  float64   `json:"humidity_pct"`
	PressureHPa  float64   `json:"pressure_hpa"`
}

// Dashboard is everything the renderer needs for one frame.
type Dashboard struct {
	Mode       AcquisitionMode  `json:"mode"`
	Demo       bool             `json:"demo"`
	Connected  bool             `json:"connected"`
	Revision   uint64           `json:"revision"`
	Status     *NestStatus      `json:"status,omitempty"` // nil while loading
	Production ProductionSeries `json:"production"`
	UpdatedAt  time.Time        `json:"updated_at"`
}
