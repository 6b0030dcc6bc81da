package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-lobby-service/internal/app"
	"quiz-lobby-service/internal/domain"
)

// WSHandler is the live side of a session: hosts drive the lifecycle, players
// submit answers, and everyone receives change-feed events. Clients that miss
// events request a full state resync over the same connection.
type WSHandler struct {
	service  *app.LobbyService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.LobbyService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type answerPayload struct {
	QuestionIndex int    `json:"questionIndex"`
	Text          string `json:"text"`
}

type statusPayload struct {
	Status domain.Status `json:"status"`
}

type kickPayload struct {
	ParticipantID string `json:"participantId"`
}

// ServeWS upgrades the connection and wires it into the session use cases.
// Players authenticate with the token issued at join time; the host connects
// with role=host.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}
	isHost := r.URL.Query().Get("role") == "host"

	participantID := ""
	if token := r.URL.Query().Get("token"); token != "" {
		id, err := h.service.ResolveToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}
		participantID = id
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws: write error: %v", err)
				return
			}
		}
	}()

	fail := func(err error) {
		send <- outboundMessage{Type: "error", Payload: errorBody{Kind: domain.KindOf(err), Message: err.Error()}}
	}

	view, err := h.service.SessionView(r.Context(), sessionID)
	if err != nil {
		fail(err)
		close(send)
		<-writerDone
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		fail(err)
		close(send)
		<-writerDone
		return
	}
	defer cancel()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case event, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: "feed", Payload: event}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage{Type: "state", Payload: view}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		switch inbound.Type {
		case "answer":
			if participantID == "" {
				fail(domain.ErrTokenInvalid)
				continue
			}
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				fail(domain.ErrInvalidQuestion)
				continue
			}
			result, err := h.service.SubmitAnswer(r.Context(), participantID, payload.QuestionIndex, payload.Text)
			if err != nil {
				fail(err)
				continue
			}
			send <- outboundMessage{Type: "answerResult", Payload: result}

		case "clearPenalty":
			if participantID == "" {
				fail(domain.ErrTokenInvalid)
				continue
			}
			if err := h.service.ClearPenalty(r.Context(), participantID); err != nil {
				fail(err)
			}

		case "setStatus":
			if !isHost {
				fail(domain.ErrTokenInvalid)
				continue
			}
			var payload statusPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				fail(domain.ErrInvalidTransition)
				continue
			}
			if _, err := h.service.SetStatus(r.Context(), sessionID, payload.Status); err != nil {
				fail(err)
			}

		case "kick":
			if !isHost {
				fail(domain.ErrTokenInvalid)
				continue
			}
			var payload kickPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				fail(domain.ErrParticipantNotFound)
				continue
			}
			if err := h.service.Kick(r.Context(), payload.ParticipantID); err != nil {
				fail(err)
			}

		case "sync":
			view, err := h.service.SessionView(r.Context(), sessionID)
			if err != nil {
				fail(err)
				continue
			}
			send <- outboundMessage{Type: "state", Payload: view}

		default:
			send <- outboundMessage{Type: "error", Payload: errorBody{Kind: domain.KindValidation, Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
