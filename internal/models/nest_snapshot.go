package models

// Occupancy is the nest status as published by the device.
type Occupancy string

const (
	OccupancyFree     Occupancy = "LIBERO"
	OccupancyOccupied Occupancy = "OCCUPATO"
)

// NestSnapshot is one complete view of the device, replaced wholesale on every feed update.
// JSON keys follow the device payload.
type NestSnapshot struct {
	Occupancy   Occupancy               `json:"stato"`  // LIBERO | OCCUPATO
	GuestLabel  string                  `json:"ospite"` // only meaningful when occupied
	Statistics  Statistics              `json:"statistiche"`
	Environment Environment             `json:"ambiente"`
	EventLog    map[string]HistoryEvent `json:"storico,omitempty"` // nil when no events yet
}

// Statistics holds the device counters.
type Statistics struct {
	TotalEggs int `json:"uova_totali"`
}

// Environment holds the latest sensor readings.
type Environment struct {
	TemperatureC float64 `json:"temperatura"` // °C
	HumidityPct  float64 `json:"umidita"`     // %
	PressureHPa  float64 `json:"pressione"`   // hPa
}

// IsOccupied reports whether a guest is in the nest.
func (s *NestSnapshot) IsOccupied() bool {
	return s != nil && s.Occupancy == OccupancyOccupied
}
