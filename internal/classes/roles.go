package classes

import (
	dclasses "glyphstat/domain/classes"
	"glyphstat/domain/corpus"
)

// Role thresholds, applied in the order frequent, control, flow, energy.
const (
	FrequentShare     = 0.10
	ControlPosition   = 0.25
	FlowSelfRate      = 0.20
	EnergyPosition    = 0.75
	minRoleTransition = 1
)

type classAggregate struct {
	count          int
	meanPosition   float64
	selfTransition float64
	outgoing       int
}

func aggregate(s *corpus.Stream, c *corpus.Corpus) []classAggregate {
	agg := make([]classAggregate, s.NumLabels)
	sums := make([]float64, s.NumLabels)
	for i, l := range s.Labels {
		agg[l].count++
		sums[l] += c.Token(i).Position
	}
	self := make([]int, s.NumLabels)
	s.EachTransition(func(a, b int) {
		agg[a].outgoing++
		if a == b {
			self[a]++
		}
	})
	for id := range agg {
		if agg[id].count > 0 {
			agg[id].meanPosition = sums[id] / float64(agg[id].count)
		}
		if agg[id].outgoing > 0 {
			agg[id].selfTransition = float64(self[id]) / float64(agg[id].outgoing)
		}
	}
	return agg
}

func assignRole(a classAggregate, total int) dclasses.Role {
	switch {
	case total > 0 && float64(a.count)/float64(total) >= FrequentShare:
		return dclasses.RoleFrequent
	case a.meanPosition <= ControlPosition:
		return dclasses.RoleControl
	case a.outgoing >= minRoleTransition && a.selfTransition >= FlowSelfRate:
		return dclasses.RoleFlow
	case a.meanPosition >= EnergyPosition:
		return dclasses.RoleEnergy
	default:
		return dclasses.RoleAuxiliary
	}
}
