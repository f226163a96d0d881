package nav

import "strings"

// Direction is the maneuver category of a waypoint.
type Direction int

const (
	DirectionStraight Direction = iota
	DirectionLeft
	DirectionRight
	DirectionUTurn
	DirectionDestination
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	case DirectionUTurn:
		return "u-turn"
	case DirectionDestination:
		return "destination"
	default:
		return "straight"
	}
}

// TurnPhrase returns the spoken phrase for the maneuver.
func (d Direction) TurnPhrase() string {
	switch d {
	case DirectionLeft:
		return "turn left"
	case DirectionRight:
		return "turn right"
	case DirectionUTurn:
		return "make a U-turn"
	case DirectionDestination:
		return "your destination is ahead"
	default:
		return "continue straight"
	}
}

// ClassifyInstruction infers a maneuver category from instruction text.
// Keyword priority: destination > u-turn > left > right > default straight.
func ClassifyInstruction(instruction string) Direction {
	text := strings.ToLower(instruction)
	switch {
	case strings.Contains(text, "destination") || strings.Contains(text, "arrive"):
		return DirectionDestination
	case strings.Contains(text, "u-turn") || strings.Contains(text, "uturn") ||
		strings.Contains(text, "u turn"):
		return DirectionUTurn
	case strings.Contains(text, "left"):
		return DirectionLeft
	case strings.Contains(text, "right"):
		return DirectionRight
	default:
		return DirectionStraight
	}
}
