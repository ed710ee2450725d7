package models

// EventKind is an open set: unknown kinds are kept as-is.
type EventKind string

const (
	EventEgg   EventKind = "UOVO"
	EventEntry EventKind = "Entrata"
	EventExit  EventKind = "Uscita"
)

// HistoryEvent is a single entry of the device event log.
type HistoryEvent struct {
	Kind      EventKind `json:"evento"`
	Subject   string    `json:"dettagli"`     // e.g. "A1. Bianca"
	TimeOfDay string    `json:"ora"`          // HH:MM, 24h, no date
	Timestamp int64     `json:"ts,omitempty"` // unix ms; optional ordering key
}

// IsEgg reports whether the event is a production event.
func (e HistoryEvent) IsEgg() bool {
	return e.Kind == EventEgg
}
