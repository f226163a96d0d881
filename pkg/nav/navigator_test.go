package nav_test

import (
	"testing"

	"github.com/strideworks/go-stride/pkg/nav"
)

// metersPerLatDegree on the spherical earth used by pkg/geo.
const metersPerLatDegree = 111194.9

const baseLat, baseLng = 52.0, 13.0

// latAt returns a latitude north of baseLat by the given meters.
func latAt(meters float64) float64 {
	return baseLat + meters/metersPerLatDegree
}

// straightRoute builds waypoints along a meridian at the given offsets
// from the route start.
func straightRoute(offsets []float64, instructions []string, total float64) []nav.Waypoint {
	wps := make([]nav.Waypoint, len(offsets))
	for i, off := range offsets {
		wps[i] = nav.Waypoint{
			Latitude:          latAt(off),
			Longitude:         baseLng,
			Instruction:       instructions[i],
			DistanceFromStart: off,
		}
	}
	return wps
}

// collect registers an event recorder and returns the slice pointer.
func collect(events *[]nav.Event) func(nav.Event) {
	return func(ev nav.Event) { *events = append(*events, ev) }
}

func countKind(events []nav.Event, kind nav.EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestClassifyInstruction(t *testing.T) {
	tests := []struct {
		instruction string
		want        nav.Direction
	}{
		{"Turn left onto Elm Street", nav.DirectionLeft},
		{"Turn right at the fountain", nav.DirectionRight},
		{"Make a U-turn", nav.DirectionUTurn},
		{"Continue onto the bridge", nav.DirectionStraight},
		{"Your destination is on the left", nav.DirectionDestination},
		{"Arrive at the finish", nav.DirectionDestination},
		{"", nav.DirectionStraight},
	}

	for _, tt := range tests {
		t.Run(tt.instruction, func(t *testing.T) {
			if got := nav.ClassifyInstruction(tt.instruction); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestInitialize_CollapsesCloseWaypoints(t *testing.T) {
	n := nav.New(nav.DefaultConfig())

	// Second waypoint is only 100 m past the first and must be dropped.
	wps := straightRoute(
		[]float64{0, 100, 300, 600},
		[]string{"Turn left", "Turn right", "Turn right", "Arrive"},
		600,
	)
	n.Initialize(wps, 600, nil)

	remaining := n.RemainingWaypoints()
	if len(remaining) != 3 {
		t.Fatalf("expected 3 retained waypoints, got %d", len(remaining))
	}

	t.Run("Retained spacing is at least the minimum", func(t *testing.T) {
		for i := 1; i < len(remaining); i++ {
			prev, cur := remaining[i-1], remaining[i]
			d := (cur.Latitude - prev.Latitude) * metersPerLatDegree
			if d < 150 {
				t.Errorf("waypoints %d and %d only %.0f m apart", i-1, i, d)
			}
		}
	})

	t.Run("Directions classified", func(t *testing.T) {
		if remaining[0].Direction != nav.DirectionLeft {
			t.Errorf("expected left, got %v", remaining[0].Direction)
		}
		if remaining[2].Direction != nav.DirectionDestination {
			t.Errorf("expected destination, got %v", remaining[2].Direction)
		}
	})

	t.Run("Protected past 60 percent", func(t *testing.T) {
		if remaining[0].Protected {
			t.Error("first waypoint must not be protected")
		}
		if !remaining[2].Protected {
			t.Error("final waypoint must be protected")
		}
	})

	t.Run("Initial instruction seeded", func(t *testing.T) {
		if n.CurrentInstruction() != "Turn left" {
			t.Errorf("unexpected instruction %q", n.CurrentInstruction())
		}
	})
}

func TestUpdatePosition_AnnouncementsFireOnce(t *testing.T) {
	var events []nav.Event
	n := nav.New(nav.DefaultConfig())
	n.Initialize(straightRoute(
		[]float64{0, 200},
		[]string{"Turn left", "Arrive"},
		200,
	), 200, collect(&events))

	// Hold at 80 m before the first waypoint.
	for i := 0; i < 3; i++ {
		n.UpdatePosition(latAt(-80), baseLng, 0)
	}
	if got := countKind(events, nav.EventApproach); got != 1 {
		t.Errorf("expected one approach announcement, got %d", got)
	}

	// Hold at 30 m.
	for i := 0; i < 3; i++ {
		n.UpdatePosition(latAt(-30), baseLng, 0)
	}
	if got := countKind(events, nav.EventTurn); got != 1 {
		t.Errorf("expected one turn announcement, got %d", got)
	}

	t.Run("Approach text includes rounded distance", func(t *testing.T) {
		for _, ev := range events {
			if ev.Kind == nav.EventApproach {
				if ev.Text != "In 80 meters, turn left" {
					t.Errorf("unexpected approach text %q", ev.Text)
				}
			}
		}
	})
}

func TestUpdatePosition_AdvancesOnlyInsideReachedRadius(t *testing.T) {
	n := nav.New(nav.DefaultConfig())
	n.Initialize(straightRoute(
		[]float64{0, 200},
		[]string{"Turn left", "Arrive"},
		200,
	), 200, nil)

	st := n.UpdatePosition(latAt(-30), baseLng, 0)
	if st.CurrentIndex != 0 {
		t.Fatalf("expected index 0 outside reached radius, got %d", st.CurrentIndex)
	}

	st = n.UpdatePosition(latAt(-20), baseLng, 0)
	if st.CurrentIndex != 1 {
		t.Fatalf("expected advancement at 20 m, got index %d", st.CurrentIndex)
	}
	if st.Announced90 || st.Announced35 || st.AnnouncedPassed {
		t.Error("announcement flags must reset on advancement")
	}
	if st.NextInstruction != "Arrive" {
		t.Errorf("unexpected next instruction %q", st.NextInstruction)
	}
}

func TestUpdatePosition_PassedTurnFiresOnce(t *testing.T) {
	var events []nav.Event
	cfg := nav.DefaultConfig()
	cfg.OffRouteRadius = 1e6 // keep off-route logic out of this test
	n := nav.New(cfg)
	n.Initialize(straightRoute(
		[]float64{0, 200},
		[]string{"Turn left", "Arrive"},
		200,
	), 200, collect(&events))

	n.UpdatePosition(latAt(-30), baseLng, 0) // turn phrase fires
	for i := 0; i < 3; i++ {
		n.UpdatePosition(latAt(60), baseLng, 0) // overshoot past 55 m
	}

	if got := countKind(events, nav.EventPassedTurn); got != 1 {
		t.Errorf("expected one passed-turn announcement, got %d", got)
	}
}

func TestUpdatePosition_ProtectedWaypointSkipsPassedTurn(t *testing.T) {
	var events []nav.Event
	cfg := nav.DefaultConfig()
	cfg.OffRouteRadius = 1e6
	n := nav.New(cfg)

	// Single waypoint at 100% of the route distance: protected.
	n.Initialize(straightRoute(
		[]float64{200},
		[]string{"Arrive"},
		200,
	), 200, collect(&events))

	n.UpdatePosition(latAt(170), baseLng, 0) // 30 m short, turn phrase fires
	n.UpdatePosition(latAt(260), baseLng, 0) // 60 m past

	if got := countKind(events, nav.EventPassedTurn); got != 0 {
		t.Errorf("expected no passed-turn for protected waypoint, got %d", got)
	}
}

func TestUpdatePosition_ProgressProtectsPassedTurn(t *testing.T) {
	// The waypoint sits at 20% of the route so it is not marked protected
	// up front; protection must come from the reported progress instead.
	build := func(events *[]nav.Event) *nav.Navigator {
		cfg := nav.DefaultConfig()
		cfg.OffRouteRadius = 1e6
		n := nav.New(cfg)
		n.Initialize(straightRoute(
			[]float64{200},
			[]string{"Turn left"},
			1000,
		), 1000, collect(events))
		return n
	}

	t.Run("early progress warns", func(t *testing.T) {
		var events []nav.Event
		n := build(&events)
		n.UpdatePosition(latAt(170), baseLng, 100)
		n.UpdatePosition(latAt(260), baseLng, 190)

		if got := countKind(events, nav.EventPassedTurn); got != 1 {
			t.Errorf("expected passed-turn early in the route, got %d", got)
		}
	})

	t.Run("late progress suppresses", func(t *testing.T) {
		var events []nav.Event
		n := build(&events)
		n.UpdatePosition(latAt(170), baseLng, 700)
		n.UpdatePosition(latAt(260), baseLng, 790)

		if got := countKind(events, nav.EventPassedTurn); got != 0 {
			t.Errorf("expected no passed-turn past the protected ratio, got %d", got)
		}
	})
}

func TestUpdatePosition_OffRouteRisingEdge(t *testing.T) {
	var events []nav.Event
	n := nav.New(nav.DefaultConfig())
	n.Initialize(straightRoute(
		[]float64{0, 200},
		[]string{"Turn left", "Arrive"},
		200,
	), 200, collect(&events))

	// 80 m east of everything: off route.
	offLng := baseLng + 80/(metersPerLatDegree*0.6157) // cos(52°) ≈ 0.6157
	for i := 0; i < 3; i++ {
		n.UpdatePosition(baseLat, offLng, 0)
	}
	if got := countKind(events, nav.EventOffRoute); got != 1 {
		t.Errorf("expected one off-route announcement per excursion, got %d", got)
	}
	if !n.IsOffRoute() {
		t.Error("expected off-route flag set")
	}

	// Back on the route: flag clears with no announcement.
	n.UpdatePosition(baseLat, baseLng, 0)
	if n.IsOffRoute() {
		t.Error("expected off-route flag cleared")
	}
	if got := countKind(events, nav.EventOffRoute); got != 1 {
		t.Errorf("recovery must not announce, got %d events", got)
	}

	// A second excursion announces again.
	n.UpdatePosition(baseLat, offLng, 0)
	if got := countKind(events, nav.EventOffRoute); got != 2 {
		t.Errorf("expected second announcement on new excursion, got %d", got)
	}
}

func TestUpdatePosition_RecalibrationKeepsAnnouncementLatches(t *testing.T) {
	var events []nav.Event
	n := nav.New(nav.DefaultConfig())
	n.Initialize(straightRoute(
		[]float64{0, 200},
		[]string{"Turn left", "Arrive"},
		200,
	), 200, collect(&events))

	// 80 m short of the first waypoint is inside the approach radius yet
	// more than 50 m from every waypoint, so the off-route edge fires and
	// recalibration lands on the waypoint already being tracked. The
	// approach announcement must not re-fire.
	for i := 0; i < 4; i++ {
		n.UpdatePosition(latAt(-80), baseLng, 0)
	}

	if got := countKind(events, nav.EventApproach); got != 1 {
		t.Errorf("expected one approach announcement across recalibration, got %d", got)
	}
	if got := countKind(events, nav.EventOffRoute); got != 1 {
		t.Errorf("expected one off-route announcement, got %d", got)
	}
	if st := n.GetState(); st.CurrentIndex != 0 {
		t.Errorf("expected pointer to stay on waypoint 0, got %d", st.CurrentIndex)
	}
}

func TestUpdatePosition_ScenarioThreeWaypoints(t *testing.T) {
	var events []nav.Event
	n := nav.New(nav.DefaultConfig())
	n.Initialize(straightRoute(
		[]float64{0, 200, 400},
		[]string{"Turn left onto Elm", "Turn right onto Oak", "Arrive at the finish"},
		400,
	), 400, collect(&events))

	// Runner moves directly along the route in 10 m steps.
	advances := 0
	prevIndex := 0
	for pos := -111.0; pos <= 430; pos += 10 {
		st := n.UpdatePosition(latAt(pos), baseLng, pos+111)
		if st.CurrentIndex != prevIndex {
			advances++
			prevIndex = st.CurrentIndex
		}
	}

	if got := countKind(events, nav.EventApproach); got != 3 {
		t.Errorf("expected 3 approach announcements, got %d", got)
	}
	if got := countKind(events, nav.EventTurn); got != 3 {
		t.Errorf("expected 3 turn announcements, got %d", got)
	}
	if got := countKind(events, nav.EventArrived); got != 1 {
		t.Errorf("expected one arrival, got %d", got)
	}
	// The final waypoint's advancement surfaces as the arrival event.
	if advances != 2 {
		t.Errorf("expected 2 index advancements before arrival, got %d", advances)
	}
	if got := countKind(events, nav.EventPassedTurn); got != 0 {
		t.Errorf("expected no passed-turn events, got %d", got)
	}

	t.Run("Announcements ordered per waypoint", func(t *testing.T) {
		// Approach must precede the bare turn phrase for each waypoint.
		order := make([]nav.EventKind, 0, len(events))
		for _, ev := range events {
			if ev.Kind == nav.EventApproach || ev.Kind == nav.EventTurn {
				order = append(order, ev.Kind)
			}
		}
		for i := 0; i+1 < len(order); i += 2 {
			if order[i] != nav.EventApproach || order[i+1] != nav.EventTurn {
				t.Fatalf("unexpected announcement order at %d: %v", i, order)
			}
		}
	})

	if n.CurrentInstruction() != "Destination reached" {
		t.Errorf("unexpected terminal instruction %q", n.CurrentInstruction())
	}
}

func TestReset(t *testing.T) {
	n := nav.New(nav.DefaultConfig())
	n.Initialize(straightRoute(
		[]float64{0, 200},
		[]string{"Turn left", "Arrive"},
		200,
	), 200, nil)
	n.UpdatePosition(latAt(-80), baseLng, 0)

	n.Reset()

	st := n.GetState()
	if st.CurrentIndex != 0 || st.NextInstruction != "" || st.Announced90 {
		t.Errorf("expected zeroed state after reset, got %+v", st)
	}
	if len(n.RemainingWaypoints()) != 0 {
		t.Error("expected no waypoints after reset")
	}
}
