// Package nav converts a stream of validated positions and a precomputed
// route into timed, human-readable turn-by-turn guidance, and detects and
// recovers from route deviation.
package nav

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/strideworks/go-stride/pkg/geo"
)

// EventKind classifies a guidance event.
type EventKind int

const (
	// EventApproach is the advance warning ("In 90 meters, turn left").
	EventApproach EventKind = iota

	// EventTurn is the bare maneuver phrase at the turn radius.
	EventTurn

	// EventPassedTurn fires once when the runner overshoots a turn.
	EventPassedTurn

	// EventOffRoute fires on the rising edge of route deviation.
	EventOffRoute

	// EventArrived fires when the final waypoint is reached.
	EventArrived
)

// Event is a guidance announcement emitted by the navigator.
type Event struct {
	Kind EventKind
	Text string
}

// State is the navigator's per-position output. Read-only externally.
type State struct {
	CurrentIndex       int
	DistanceToNextTurn float64
	NextInstruction    string
	OffRoute           bool
	Announced90        bool
	Announced35        bool
	AnnouncedPassed    bool
}

// Config holds the distance thresholds driving guidance timing.
type Config struct {
	ApproachRadius     float64 // advance warning distance
	TurnRadius         float64 // bare turn phrase distance
	ReachedRadius      float64 // waypoint advancement distance
	PassedTurnRadius   float64 // overshoot distance after the turn phrase
	OffRouteRadius     float64 // min distance to any waypoint before off-route
	MinWaypointSpacing float64 // waypoints closer than this are collapsed
	ProtectedRatio     float64 // route-distance ratio after which waypoints are protected

	Logger *slog.Logger
}

// DefaultConfig returns the production guidance thresholds.
func DefaultConfig() Config {
	return Config{
		ApproachRadius:     90,
		TurnRadius:         35,
		ReachedRadius:      25,
		PassedTurnRadius:   55,
		OffRouteRadius:     50,
		MinWaypointSpacing: 150,
		ProtectedRatio:     0.6,
		Logger:             slog.Default(),
	}
}

// Navigator is the turn-by-turn guidance state machine. Position updates
// must be applied in arrival order; the navigator performs no internal
// reordering.
type Navigator struct {
	cfg    Config
	logger *slog.Logger

	mu            sync.Mutex
	waypoints     []Waypoint
	totalDistance float64
	onEvent       func(Event)
	state         State
	arrived       bool
}

// New creates a navigator with the given thresholds.
func New(cfg Config) *Navigator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{
		cfg:    cfg,
		logger: logger.With("component", "nav"),
	}
}

// Initialize preprocesses the raw waypoint list and resets all guidance
// state. onEvent receives guidance announcements; nil is allowed.
func (n *Navigator) Initialize(waypoints []Waypoint, totalDistance float64, onEvent func(Event)) {
	prepared := prepareWaypoints(waypoints, totalDistance, n.cfg)

	n.mu.Lock()
	defer n.mu.Unlock()

	n.waypoints = prepared
	n.totalDistance = totalDistance
	n.onEvent = onEvent
	n.arrived = false
	n.state = State{}
	if len(prepared) > 0 {
		n.state.NextInstruction = prepared[0].Instruction
	}

	n.logger.Info("route initialized",
		"waypoints_in", len(waypoints),
		"waypoints_retained", len(prepared),
		"total_distance_m", totalDistance,
	)
}

// UpdatePosition applies one validated position and returns the resulting
// state snapshot. Emits guidance events through the Initialize callback.
// distanceCovered is the caller's accumulated route progress; deep into the
// route it suppresses the passed-turn warning the same way a waypoint marked
// protected at initialization does.
func (n *Navigator) UpdatePosition(lat, lng, distanceCovered float64) State {
	n.mu.Lock()

	if len(n.waypoints) == 0 || n.arrived {
		snapshot := n.state
		n.mu.Unlock()
		return snapshot
	}

	var events []Event

	wp := n.waypoints[n.state.CurrentIndex]
	dist := geo.Distance(lat, lng, wp.Latitude, wp.Longitude)
	n.state.DistanceToNextTurn = dist

	if dist <= n.cfg.ReachedRadius {
		events = append(events, n.advanceLocked()...)
	} else {
		if dist <= n.cfg.ApproachRadius && !n.state.Announced90 {
			rounded := int(math.Round(dist/10) * 10)
			events = append(events, Event{
				Kind: EventApproach,
				Text: fmt.Sprintf("In %d meters, %s", rounded, wp.Direction.TurnPhrase()),
			})
			n.state.Announced90 = true
		}
		if dist <= n.cfg.TurnRadius && !n.state.Announced35 {
			events = append(events, Event{Kind: EventTurn, Text: wp.Direction.TurnPhrase()})
			n.state.Announced35 = true
		}
		if n.state.Announced35 && dist > n.cfg.PassedTurnRadius &&
			!n.state.AnnouncedPassed && !wp.Protected &&
			!n.protectedByProgressLocked(distanceCovered) {
			events = append(events, Event{
				Kind: EventPassedTurn,
				Text: "You may have passed your turn",
			})
			n.state.AnnouncedPassed = true
		}
	}

	// Off-route detection is independent of the turn logic above.
	if !n.arrived {
		events = append(events, n.checkOffRouteLocked(lat, lng)...)
	}

	snapshot := n.state
	onEvent := n.onEvent
	n.mu.Unlock()

	if onEvent != nil {
		for _, ev := range events {
			onEvent(ev)
		}
	}
	return snapshot
}

// protectedByProgressLocked reports whether accumulated route progress has
// passed the protected ratio. Covers routes whose waypoints carry no
// DistanceFromStart and so were never marked protected up front.
func (n *Navigator) protectedByProgressLocked(distanceCovered float64) bool {
	if n.totalDistance <= 0 {
		return false
	}
	return distanceCovered/n.totalDistance >= n.cfg.ProtectedRatio
}

// advanceLocked moves to the next waypoint, or arrives.
func (n *Navigator) advanceLocked() []Event {
	n.state.CurrentIndex++
	n.state.Announced90 = false
	n.state.Announced35 = false
	n.state.AnnouncedPassed = false

	if n.state.CurrentIndex >= len(n.waypoints) {
		n.state.CurrentIndex = len(n.waypoints) - 1
		n.state.NextInstruction = "Destination reached"
		n.arrived = true
		n.logger.Info("destination reached")
		return []Event{{Kind: EventArrived, Text: "You have reached your destination"}}
	}

	n.state.NextInstruction = n.waypoints[n.state.CurrentIndex].Instruction
	n.logger.Debug("waypoint advanced", "index", n.state.CurrentIndex)
	return nil
}

// checkOffRouteLocked transitions the off-route flag on its edges. On the
// rising edge it announces a recalculation and recalibrates the current
// waypoint pointer to the nearest remaining waypoint.
func (n *Navigator) checkOffRouteLocked(lat, lng float64) []Event {
	minDist := math.Inf(1)
	for _, wp := range n.waypoints {
		if d := geo.Distance(lat, lng, wp.Latitude, wp.Longitude); d < minDist {
			minDist = d
		}
	}

	if minDist > n.cfg.OffRouteRadius {
		if n.state.OffRoute {
			return nil
		}
		n.state.OffRoute = true
		n.recalibrateLocked(lat, lng)
		n.logger.Warn("off route", "min_distance_m", minDist)
		return []Event{{Kind: EventOffRoute, Text: "You are off route, recalculating"}}
	}

	n.state.OffRoute = false
	return nil
}

// recalibrateLocked jumps the current-waypoint pointer to the nearest
// remaining waypoint and resets the per-waypoint announcement flags.
func (n *Navigator) recalibrateLocked(lat, lng float64) {
	nearest := n.state.CurrentIndex
	nearestDist := math.Inf(1)
	for i := n.state.CurrentIndex; i < len(n.waypoints); i++ {
		wp := n.waypoints[i]
		if d := geo.Distance(lat, lng, wp.Latitude, wp.Longitude); d < nearestDist {
			nearestDist = d
			nearest = i
		}
	}

	// Re-arming the announcement flags for the waypoint we are already
	// heading toward would repeat announcements that already fired.
	if nearest == n.state.CurrentIndex {
		n.state.DistanceToNextTurn = nearestDist
		return
	}

	n.state.CurrentIndex = nearest
	n.state.Announced90 = false
	n.state.Announced35 = false
	n.state.AnnouncedPassed = false
	n.state.NextInstruction = n.waypoints[nearest].Instruction
	n.state.DistanceToNextTurn = nearestDist
}

// GetState returns a read-only snapshot of the navigation state.
func (n *Navigator) GetState() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// CurrentInstruction returns the next maneuver's instruction text.
func (n *Navigator) CurrentInstruction() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.NextInstruction
}

// DistanceToNextTurn returns the last computed distance to the target
// waypoint in meters.
func (n *Navigator) DistanceToNextTurn() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.DistanceToNextTurn
}

// IsOffRoute reports whether the runner is currently off route.
func (n *Navigator) IsOffRoute() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.OffRoute
}

// RemainingWaypoints returns a copy of the waypoints not yet reached.
func (n *Navigator) RemainingWaypoints() []Waypoint {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.waypoints) == 0 || n.arrived {
		return nil
	}
	remaining := make([]Waypoint, len(n.waypoints)-n.state.CurrentIndex)
	copy(remaining, n.waypoints[n.state.CurrentIndex:])
	return remaining
}

// Reset clears all state back to the pre-Initialize condition.
func (n *Navigator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.waypoints = nil
	n.totalDistance = 0
	n.onEvent = nil
	n.state = State{}
	n.arrived = false
}
