package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/hearthlabs/hearth/pkg/agent"
)

// statusResponse is the /api/status payload.
type statusResponse struct {
	State                string         `json:"state"`
	UptimeSeconds        float64        `json:"uptime_seconds"`
	TransportReady       bool           `json:"transport_ready"`
	TransportUnavailable bool           `json:"transport_unavailable"`
	LastTranscript       string         `json:"last_transcript"`
	LastReply            string         `json:"last_reply"`
	Totals               agent.Counters `json:"totals"`
	LastTurn             *agent.Metrics `json:"last_turn,omitempty"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	transcript, reply := s.agent.LastExchange()
	resp := statusResponse{
		State:          s.agent.State().String(),
		UptimeSeconds:  s.agent.Uptime().Seconds(),
		LastTranscript: transcript,
		LastReply:      reply,
		Totals:         s.agent.Metrics().Totals(),
	}
	if s.transport != nil {
		resp.TransportReady = s.transport.Ready()
		resp.TransportUnavailable = s.transport.Unavailable()
	}
	if turn, ok := s.agent.Metrics().LastTurn(); ok {
		resp.LastTurn = &turn
	}
	return c.JSON(resp)
}

// toolEntry is one row of the /api/tools payload.
type toolEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Remote      bool   `json:"remote"`
}

func (s *Server) handleListTools(c *fiber.Ctx) error {
	list := s.registry.List()
	out := make([]toolEntry, len(list))
	for i, t := range list {
		out[i] = toolEntry{Name: t.Name, Description: t.Description, Remote: t.Remote}
	}
	return c.JSON(out)
}

// triggerRequest is the POST /api/tools/:name body.
type triggerRequest struct {
	Args map[string]interface{} `json:"args"`
}

// handleTriggerTool runs a tool manually through the same executor the
// conversation uses, schema validation included.
func (s *Server) handleTriggerTool(c *fiber.Ctx) error {
	name := c.Params("name")

	var req triggerRequest
	if err := c.BodyParser(&req); err != nil {
		req.Args = make(map[string]interface{})
	}

	exec := s.executor.Execute(c.Context(), name, req.Args)
	status := fiber.StatusOK
	if exec.IsError {
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(fiber.Map{
		"tool":        exec.Tool,
		"result":      exec.Result,
		"error":       exec.IsError,
		"duration_ms": exec.Duration.Milliseconds(),
	})
}

// handleEventsWS streams agent events until the client disconnects.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	events, cancel := s.agent.Hub().Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
