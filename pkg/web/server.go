// Package web provides a real-time dashboard for a live run
package web

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/strideworks/go-stride/pkg/hub"
	"github.com/strideworks/go-stride/pkg/nav"
	"github.com/strideworks/go-stride/pkg/session"
)

// EventEntry represents one session event for the dashboard feed
type EventEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // gps, nav, announce, session
	Message string `json:"message"`
}

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	// State sources, injected by the session owner
	statusFn func() session.Snapshot
	routeFn  func() []nav.Waypoint

	// Event buffer (last 500 entries)
	events   []EventEntry
	eventsMu sync.RWMutex

	// Hubs for websocket broadcast
	statusHub *hub.Hub
	eventHub  *hub.Hub
}

// NewServer creates a new dashboard server. statusFn and routeFn supply the
// current run snapshot and the loaded route.
func NewServer(port string, statusFn func() session.Snapshot, routeFn func() []nav.Waypoint, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		port:      port,
		logger:    logger.With("component", "web"),
		statusFn:  statusFn,
		routeFn:   routeFn,
		events:    make([]EventEntry, 0, 500),
		statusHub: hub.New("status", logger),
		eventHub:  hub.New("events", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Stride Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static files
	app.Static("/", "./web")

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/route", s.handleRoute)
	api.Get("/events", s.handleGetEvents)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Start starts the web server
func (s *Server) Start() error {
	s.logger.Info("dashboard listening", "addr", "http://localhost:"+s.port)

	go s.statusHub.Run()
	go s.eventHub.Run()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server error", "error", err)
		}
	}()
}

// PublishStatus broadcasts a run snapshot to connected clients
func (s *Server) PublishStatus(snap session.Snapshot) {
	s.statusHub.BroadcastJSON(snap)
}

// AddEvent records a session event and broadcasts it to clients
func (s *Server) AddEvent(eventType, message string) {
	entry := EventEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    eventType,
		Message: message,
	}

	s.eventsMu.Lock()
	s.events = append(s.events, entry)
	if len(s.events) > 500 {
		s.events = s.events[1:]
	}
	s.eventsMu.Unlock()

	s.eventHub.BroadcastJSON(entry)
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	s.statusHub.Close()
	s.eventHub.Close()
	return s.app.Shutdown()
}
