package types

// Priority is a real-time priority, higher runs first.
// The same scale is used when creating bare threads and registered tasks.
type Priority int

const (
	PriorityMax Priority = 100
	PrioritySys Priority = 90
	PriorityRun Priority = 80
	PriorityFun Priority = 70
	PriorityThr Priority = 60
	PriorityMin Priority = 50
)

// Clamp limits p to [lo, hi]
func (p Priority) Clamp(lo, hi int) int {
	v := int(p)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
