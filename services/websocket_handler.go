package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	ws "github.com/FranciscoJunior65/curriuloproia-sub000/websocket"
)

const answerTimeout = 90 * time.Second

// WebSocketHandler drives a live interview simulation over one connection.
type WebSocketHandler struct {
	interviews *InterviewService
	hub        *ws.Hub
	upgrader   websocket.Upgrader
}

func NewWebSocketHandler(interviews *InterviewService, hub *ws.Hub, allowedOrigins string) *WebSocketHandler {
	return &WebSocketHandler{
		interviews: interviews,
		hub:        hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin(r, allowedOrigins)
			},
		},
	}
}

// ServeHTTP upgrades GET /ws?simulation_id= after the auth middleware ran.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		slog.Error("WebSocket connection failed - user not found in context")
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	simulationID := r.URL.Query().Get("simulation_id")
	if simulationID == "" {
		http.Error(w, "simulation_id is required", http.StatusBadRequest)
		return
	}
	if _, err := h.interviews.Get(r.Context(), user.ID, simulationID); err != nil {
		writeInterviewError(w, err, "Failed to get interview")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	slog.Info("WebSocket connection established", "user_id", user.ID, "simulation_id", simulationID)

	client := h.hub.RegisterClient(conn, user.ID, simulationID)
	client.MessageHandler = h.HandleMessage

	go client.WritePump()
	h.HandleConnect(client)
	client.ReadPump()
}

// HandleConnect pushes the first open question, or the result when the
// simulation is already over.
func (h *WebSocketHandler) HandleConnect(client *ws.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	simulation, err := h.interviews.Get(ctx, client.UserID, client.SimulationID)
	if err != nil {
		slog.Error("Failed to load simulation", "simulation_id", client.SimulationID, "error", err)
		client.SendEvent(ws.Event{Type: "error", Content: "failed to load interview"})
		return
	}

	if next := simulation.NextQuestion(); next != nil {
		client.SendEvent(ws.Event{Type: "question", Content: next.Question, Data: next})
		return
	}
	client.SendEvent(ws.Event{Type: "completed", Content: simulation.Feedback, Data: simulation})
}

// HandleMessage is called sequentially for each client message.
func (h *WebSocketHandler) HandleMessage(client *ws.Client, msg ws.Message) {
	switch msg.Type {
	case "answer":
		h.handleAnswer(client, msg)
	case "end_session":
		slog.Info("Received end_session request", "simulation_id", client.SimulationID)
		client.SendEvent(ws.Event{Type: "end_session", Content: "Sessão encerrada. Você pode retomar a simulação quando quiser."})
		// leave time for the writer to flush the last event
		time.AfterFunc(200*time.Millisecond, client.Close)
	default:
		slog.Warn("Unknown message type", "type", msg.Type, "simulation_id", client.SimulationID)
		client.SendEvent(ws.Event{Type: "error", Content: "unknown message type"})
	}
}

func (h *WebSocketHandler) handleAnswer(client *ws.Client, msg ws.Message) {
	if msg.Content == "" {
		client.SendEvent(ws.Event{Type: "error", Content: "answer is required"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), answerTimeout)
	defer cancel()

	questionID := msg.QuestionID
	if questionID == "" {
		simulation, err := h.interviews.Get(ctx, client.UserID, client.SimulationID)
		if err != nil {
			client.SendEvent(ws.Event{Type: "error", Content: "failed to load interview"})
			return
		}
		next := simulation.NextQuestion()
		if next == nil {
			client.SendEvent(ws.Event{Type: "error", Content: ErrSimulationCompleted.Error()})
			return
		}
		questionID = next.ID
	}

	result, err := h.interviews.Answer(ctx, client.UserID, client.SimulationID, questionID, msg.Content)
	if err != nil {
		slog.Error("Failed to evaluate answer", "simulation_id", client.SimulationID, "question_id", questionID, "error", err)
		content := "failed to evaluate answer, try again"
		if errors.Is(err, ErrSimulationCompleted) || errors.Is(err, ErrQuestionAnswered) || errors.Is(err, ErrNotFound) {
			content = err.Error()
		}
		client.SendEvent(ws.Event{Type: "error", Content: content})
		return
	}

	client.SendEvent(ws.Event{Type: "evaluation", Content: result.Question.Feedback, Data: result.Question})
	if result.Completed {
		client.SendEvent(ws.Event{Type: "completed", Content: result.Simulation.Feedback, Data: result.Simulation})
		return
	}
	client.SendEvent(ws.Event{Type: "question", Content: result.Next.Question, Data: result.Next})
}
