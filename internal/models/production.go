package models

// HourBucket is one hour-wide slot of the production series.
type HourBucket struct {
	Hour   int            `json:"-"`
	Label  string         `json:"hour"`   // "08:00"
	Counts map[string]int `json:"counts"` // subject -> eggs laid in this hour
}

// ProductionSeries is the stacked hourly egg production, in chronological bucket order.
type ProductionSeries struct {
	Buckets  []HourBucket `json:"buckets"`
	Subjects []string     `json:"subjects"`
}

// Total returns the number of eggs counted across all buckets.
func (p ProductionSeries) Total() int {
	n := 0
	for _, b := range p.Buckets {
		for _, c := range b.Counts {
			n += c
		}
	}
	return n
}
