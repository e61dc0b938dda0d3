// Package profile assembles the collector set and weights for a business
// vertical. The engine treats profiles as opaque descriptor lists, so
// adding a vertical means adding a table here.
package profile

import (
	"fmt"

	"github.com/fieldscope/locus/internal/aggregator"
	"github.com/fieldscope/locus/internal/collectors"
)

// Keys carries the API credentials collectors need. Empty values leave
// the corresponding collectors in degraded mode.
type Keys struct {
	Census     string
	GoogleMaps string
}

// Descriptors returns the collector set for the named profile. An empty
// name selects childcare.
func Descriptors(name string, keys Keys) ([]aggregator.Descriptor, error) {
	switch name {
	case "", "childcare":
		return childcare(keys), nil
	case "banking":
		return banking(keys), nil
	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}
}

// childcare is the default vertical: six scored categories plus three
// weight-0 enrichment collectors that add metrics without moving the
// overall score.
func childcare(keys Keys) []aggregator.Descriptor {
	return []aggregator.Descriptor{
		{Name: "demographics", Weight: 0.25, Collector: collectors.NewDemographics(keys.Census)},
		{Name: "competition", Weight: 0.20, Collector: collectors.NewCompetition(keys.GoogleMaps, "daycare child care center")},
		{Name: "accessibility", Weight: 0.15, Collector: collectors.NewAccessibility(keys.GoogleMaps)},
		{Name: "safety", Weight: 0.20, Collector: collectors.NewSafety()},
		{Name: "economic", Weight: 0.10, Collector: collectors.NewEconomic(keys.Census)},
		{Name: "regulatory", Weight: 0.10, Collector: collectors.NewRegulatory()},
		{Name: "epa", Weight: 0, Collector: collectors.NewEPA()},
		{Name: "femaflood", Weight: 0, Collector: collectors.NewFEMAFlood()},
		{Name: "amenities", Weight: 0, Collector: collectors.NewAmenities()},
	}
}

// banking drops the childcare licensing table and re-weights toward
// demographics and competition.
func banking(keys Keys) []aggregator.Descriptor {
	return []aggregator.Descriptor{
		{Name: "demographics", Weight: 0.30, Collector: collectors.NewDemographics(keys.Census)},
		{Name: "competition", Weight: 0.25, Collector: collectors.NewCompetition(keys.GoogleMaps, "bank branch")},
		{Name: "accessibility", Weight: 0.20, Collector: collectors.NewAccessibility(keys.GoogleMaps)},
		{Name: "safety", Weight: 0.15, Collector: collectors.NewSafety()},
		{Name: "economic", Weight: 0.10, Collector: collectors.NewEconomic(keys.Census)},
		{Name: "epa", Weight: 0, Collector: collectors.NewEPA()},
		{Name: "femaflood", Weight: 0, Collector: collectors.NewFEMAFlood()},
	}
}
