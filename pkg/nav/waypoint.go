package nav

import "github.com/strideworks/go-stride/pkg/geo"

// Waypoint is a geographic point along a route with a turn instruction.
// Direction and Protected are filled in during route preparation; the list
// is immutable for the session after Initialize.
type Waypoint struct {
	Latitude          float64
	Longitude         float64
	Instruction       string
	Direction         Direction
	DistanceFromStart float64 // meters from route start
	Protected         bool    // exempt from missed-turn detection near the finish
}

// prepareWaypoints collapses near-duplicate waypoints, classifies each
// retained waypoint's direction, and flags waypoints past the protected
// ratio of the total route distance.
//
// Waypoints closer than cfg.MinWaypointSpacing to the previously retained
// waypoint are dropped so two nearly-simultaneous maneuvers are never both
// announced.
func prepareWaypoints(in []Waypoint, totalDistance float64, cfg Config) []Waypoint {
	out := make([]Waypoint, 0, len(in))

	for _, wp := range in {
		if len(out) > 0 {
			prev := out[len(out)-1]
			d := geo.Distance(prev.Latitude, prev.Longitude, wp.Latitude, wp.Longitude)
			if d < cfg.MinWaypointSpacing {
				continue
			}
		}

		wp.Direction = ClassifyInstruction(wp.Instruction)
		if totalDistance > 0 && wp.DistanceFromStart/totalDistance >= cfg.ProtectedRatio {
			wp.Protected = true
		}
		out = append(out, wp)
	}

	return out
}
