package pbfextract

import (
	"github.com/paulmach/osm"
)

// EdgeFilter decides whether a way is traversable for a transport mode.
// IsInvalid returning true means the way is skipped entirely: no edges are
// emitted and its nodes are not retained unless another accepted way
// references them. Filters are pure functions of the tag set.
type EdgeFilter interface {
	IsInvalid(tags osm.Tags) bool
}

var (
	carExcludedHighways = map[string]struct{}{
		"footway":      {},
		"cycleway":     {},
		"path":         {},
		"pedestrian":   {},
		"steps":        {},
		"track":        {},
		"corridor":     {},
		"elevator":     {},
		"escalator":    {},
		"proposed":     {},
		"construction": {},
		"bridleway":    {},
		"abandoned":    {},
		"platform":     {},
		"raceway":      {},
		"rest_area":    {},
		"service":      {},
	}

	bicycleExcludedHighways = map[string]struct{}{
		"motorway":      {},
		"motorway_link": {},
		"trunk":         {},
		"trunk_link":    {},
		"steps":         {},
		"corridor":      {},
		"elevator":      {},
		"escalator":     {},
		"motor":         {},
		"proposed":      {},
		"abandoned":     {},
		"platform":      {},
		"raceway":       {},
		"rest_area":     {},
		"construction":  {},
		"service":       {},
	}

	pedestrianExcludedHighways = map[string]struct{}{
		"motorway":      {},
		"motorway_link": {},
		"trunk":         {},
		"trunk_link":    {},
		"proposed":      {},
		"construction":  {},
		"abandoned":     {},
		"platform":      {},
		"raceway":       {},
	}
)

// CarEdgeFilter rejects ways a car can't drive on.
type CarEdgeFilter struct{}

func (CarEdgeFilter) IsInvalid(tags osm.Tags) bool {
	highway := tags.Find("highway")
	if highway == "" {
		return true
	}
	_, excluded := carExcludedHighways[highway]
	return excluded
}

// BicycleEdgeFilter rejects ways a bicycle can't ride on. Explicit cycle
// infrastructure or a non-"no" bicycle access tag overrides the highway
// class; a usable sidewalk does too.
type BicycleEdgeFilter struct{}

func (BicycleEdgeFilter) IsInvalid(tags osm.Tags) bool {
	bicycle := tags.Find("bicycle")
	if bicycle == "no" {
		return true
	}
	if tags.Find("cycleway") != "" || bicycle != "" {
		return false
	}
	if sidewalk := tags.Find("sidewalk"); sidewalk != "" && sidewalk != "no" {
		return false
	}
	highway := tags.Find("highway")
	if highway == "" {
		return true
	}
	_, excluded := bicycleExcludedHighways[highway]
	return excluded
}

// PedestrianEdgeFilter rejects ways pedestrians can't walk on. Note that the
// access key consulted here is `walking`, not the conventional `foot` key;
// this matches the tagging the downstream consumers were built against.
type PedestrianEdgeFilter struct{}

func (PedestrianEdgeFilter) IsInvalid(tags osm.Tags) bool {
	if tags.Find("walking") == "no" {
		return true
	}
	if sidewalk := tags.Find("sidewalk"); sidewalk != "" && sidewalk != "no" {
		return false
	}
	highway := tags.Find("highway")
	if highway == "" {
		return true
	}
	_, excluded := pedestrianExcludedHighways[highway]
	return excluded
}
