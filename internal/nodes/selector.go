package nodes

import (
	"cmp"
	"math"
	"slices"
)

func unreportedLast(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}

// Compare orders a before b when a is the better node. Keys, in order:
// active sessions, total sessions, relay CPU, system CPU, response time
// (all ascending, unreported last), uptime descending, identifier.
func Compare(a, b NodeDescriptor) int {
	if c := cmp.Compare(unreportedLast(float64(a.Load.ActiveSessions)), unreportedLast(float64(b.Load.ActiveSessions))); c != 0 {
		return c
	}
	if c := cmp.Compare(unreportedLast(float64(a.Load.TotalSessions)), unreportedLast(float64(b.Load.TotalSessions))); c != 0 {
		return c
	}
	if c := cmp.Compare(unreportedLast(a.Load.CPULoad), unreportedLast(b.Load.CPULoad)); c != 0 {
		return c
	}
	if c := cmp.Compare(unreportedLast(a.Load.SystemCPULoad), unreportedLast(b.Load.SystemCPULoad)); c != 0 {
		return c
	}
	if c := cmp.Compare(unreportedLast(a.LastResponseTimeMs), unreportedLast(b.LastResponseTimeMs)); c != 0 {
		return c
	}
	if c := cmp.Compare(b.UptimeSeconds, a.UptimeSeconds); c != 0 {
		return c
	}
	return cmp.Compare(a.Identifier, b.Identifier)
}

// Rank returns a sorted copy of candidates, best first.
func Rank(candidates []NodeDescriptor) []NodeDescriptor {
	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, Compare)
	return ranked
}

// Select returns the best count candidates.
func Select(candidates []NodeDescriptor, count int) []NodeDescriptor {
	if count <= 0 {
		return nil
	}
	ranked := Rank(candidates)
	if len(ranked) > count {
		ranked = ranked[:count]
	}
	return ranked
}
