package service

// LogFilter narrows the activity feed. Zero values mean no filtering.
type LogFilter struct {
	Kind    string // "", "UOVO", "Entrata", "Uscita" or any other device kind; case-insensitive
	Subject string // exact subject label, e.g. "A1. Bianca"
	Limit   int    // 0 = MaxLogLimit; larger values are capped to it
}
