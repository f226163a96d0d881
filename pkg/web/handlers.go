package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/strideworks/go-stride/pkg/hub"
	"github.com/strideworks/go-stride/pkg/nav"
)

// routeResponse is the payload for GET /api/route
type routeResponse struct {
	Waypoints []waypointInfo `json:"waypoints"`
}

type waypointInfo struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Instruction string  `json:"instruction"`
	Protected   bool    `json:"protected"`
}

// handleStatus returns the current run snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.statusFn == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no active session",
		})
	}
	return c.JSON(s.statusFn())
}

// handleRoute returns the remaining route waypoints
func (s *Server) handleRoute(c *fiber.Ctx) error {
	var waypoints []nav.Waypoint
	if s.routeFn != nil {
		waypoints = s.routeFn()
	}

	resp := routeResponse{Waypoints: make([]waypointInfo, 0, len(waypoints))}
	for _, wp := range waypoints {
		resp.Waypoints = append(resp.Waypoints, waypointInfo{
			Latitude:    wp.Latitude,
			Longitude:   wp.Longitude,
			Instruction: wp.Instruction,
			Protected:   wp.Protected,
		})
	}
	return c.JSON(resp)
}

// handleGetEvents returns recent session events
func (s *Server) handleGetEvents(c *fiber.Ctx) error {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	return c.JSON(s.events)
}

// handleStatusWS streams run snapshots to a dashboard client
func (s *Server) handleStatusWS(c *websocket.Conn) {
	// Send the current snapshot before joining the broadcast stream
	if s.statusFn != nil {
		c.WriteJSON(s.statusFn())
	}
	hub.NewClient(s.statusHub, c).Run()
}

// handleEventsWS streams session events to a dashboard client
func (s *Server) handleEventsWS(c *websocket.Conn) {
	// Replay the recent event buffer first
	s.eventsMu.RLock()
	for _, entry := range s.events {
		c.WriteJSON(entry)
	}
	s.eventsMu.RUnlock()

	hub.NewClient(s.eventHub, c).Run()
}
