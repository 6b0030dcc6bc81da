package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-lobby-service/internal/app"
	"quiz-lobby-service/internal/domain"
	"quiz-lobby-service/internal/infra/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.LobbyService) {
	t.Helper()
	store := memory.NewStore()
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": {
			ID:                 "quiz-1",
			WrongAnswerPenalty: 5,
			Questions: []domain.Question{
				{
					Type:   domain.QuestionChoice,
					Prompt: "What is 2 + 2?",
					Options: []domain.Option{
						{Text: "3"},
						{Text: "4", Correct: true},
					},
				},
			},
		},
	}), time.Minute)
	tokens := app.NewTokenIssuer([]byte("test-secret"), time.Hour)
	service := app.NewLobbyService(store, quizzes, memory.NewChangeFeed(), tokens)

	mux := http.NewServeMux()
	NewAPIHandler(service).Register(mux)
	mux.HandleFunc("/ws", NewWSHandler(service).ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, service
}

func TestJoinAndAnswerOverWebsocket(t *testing.T) {
	server, service := newTestServer(t)
	ctx := context.Background()

	session, err := service.CreateSession(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	// Join over the REST API to obtain a token.
	body, _ := json.Marshal(map[string]string{"displayName": "Alice"})
	resp, err := http.Post(server.URL+"/api/sessions/"+session.ID+"/join", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("join request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("join status: %d", resp.StatusCode)
	}
	var joined struct {
		Participant domain.Participant `json:"participant"`
		Token       string             `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&joined); err != nil {
		t.Fatalf("decode join: %v", err)
	}
	if joined.Token == "" {
		t.Fatal("no token issued")
	}

	if _, err := service.SetStatus(ctx, session.ID, domain.StatusPlaying); err != nil {
		t.Fatalf("start: %v", err)
	}

	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=" + session.ID + "&token=" + joined.Token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Initial full state comes first.
	msgType, _ := readNext(conn, t, "state")
	if msgType != "state" {
		t.Fatalf("expected state, got %s", msgType)
	}

	answer := map[string]any{
		"type":    "answer",
		"payload": map[string]any{"questionIndex": 0, "text": "4"},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	resultSeen := false
	feedSeen := false
	for i := 0; i < 3 && !(resultSeen && feedSeen); i++ {
		typ, payload := readNext(conn, t, "")
		switch typ {
		case "answerResult":
			resultSeen = true
			if correct, _ := payload["correct"].(bool); !correct {
				t.Fatalf("expected correct answer, got %+v", payload)
			}
		case "feed":
			feedSeen = true
		}
	}
	if !resultSeen || !feedSeen {
		t.Fatalf("expected answerResult and feed, got answerResult=%v feed=%v", resultSeen, feedSeen)
	}
}

func TestHostDrivesStatusOverWebsocket(t *testing.T) {
	server, service := newTestServer(t)
	ctx := context.Background()

	session, err := service.CreateSession(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=" + session.ID + "&role=host"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readNext(conn, t, "state")

	start := map[string]any{
		"type":    "setStatus",
		"payload": map[string]any{"status": "playing"},
	}
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("write setStatus: %v", err)
	}

	_, payload := readNext(conn, t, "feed")
	if payload["type"] != string(app.EventStatusChanged) {
		t.Fatalf("expected statusChanged feed event, got %+v", payload)
	}

	// An illegal transition is rejected with a typed error.
	bad := map[string]any{
		"type":    "setStatus",
		"payload": map[string]any{"status": "waiting"},
	}
	if err := conn.WriteJSON(bad); err != nil {
		t.Fatalf("write bad setStatus: %v", err)
	}
	_, payload = readNext(conn, t, "error")
	if payload["kind"] != string(domain.KindValidation) {
		t.Fatalf("expected validation error, got %+v", payload)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
