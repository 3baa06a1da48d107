package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/charla/adapters/llm"
	"github.com/satriahrh/charla/adapters/memory"
	"github.com/satriahrh/charla/adapters/stt"
	"github.com/satriahrh/charla/adapters/tts"
	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/internal/audio"
	"github.com/satriahrh/charla/usecase"
)

type testServer struct {
	hub      *Hub
	sessions *usecase.SessionService
	server   *httptest.Server
}

func setupTestServer(t *testing.T) *testServer {
	logger := zaptest.NewLogger(t)
	tempDir := t.TempDir()

	conversation := usecase.NewConversationService(
		stt.NewMockSpeechToText(logger),
		nil,
		llm.NewMockLLM(),
		tts.NewMockTextToSpeech(tempDir),
		usecase.ConversationConfig{TempDir: tempDir},
		logger,
	)
	sessions := usecase.NewSessionService(memory.NewSessionRepository(), conversation, "", logger)

	hub := NewHub(sessions, HubConfig{MaxRecordTime: 5 * time.Second}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws/:id", func(c echo.Context) error {
		return HandleWebSocketWithAuth(hub, c, c.Param("id"), logger)
	})
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	return &testServer{hub: hub, sessions: sessions, server: server}
}

func (s *testServer) dial(t *testing.T, sessionID string) *websocket.Conn {
	wsURL := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws/" + sessionID
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket connection failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendJSON(t *testing.T, ws *websocket.Conn, v interface{}) {
	if err := ws.WriteJSON(v); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}
}

// readUntil collects text messages until one of type want arrives and counts
// binary frames seen on the way
func readUntil(t *testing.T, ws *websocket.Conn, want MessageType) (map[string]interface{}, []string, int) {
	t.Helper()
	var seen []string
	binaryFrames := 0

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("Failed waiting for %s: %v (seen %v)", want, err, seen)
		}
		if messageType == websocket.BinaryMessage {
			binaryFrames++
			continue
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Failed to decode message: %v", err)
		}
		msgType, _ := msg["type"].(string)
		seen = append(seen, msgType)
		if MessageType(msgType) == want {
			return msg, seen, binaryFrames
		}
	}
}

func TestHub_NewHubDefaults(t *testing.T) {
	hub := NewHub(nil, HubConfig{}, zaptest.NewLogger(t))

	if hub.clients == nil {
		t.Error("Hub clients map not initialized")
	}
	if hub.config.SampleRate != defaultSampleRate {
		t.Errorf("Expected sample rate %d, got %d", defaultSampleRate, hub.config.SampleRate)
	}
	if hub.config.MaxRecordTime != defaultMaxRecord {
		t.Errorf("Expected max record time %v, got %v", defaultMaxRecord, hub.config.MaxRecordTime)
	}
}

func TestTextInputExchange(t *testing.T) {
	s := setupTestServer(t)
	session, err := s.sessions.Start(context.Background())
	if err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}

	ws := s.dial(t, session.ID)
	sendJSON(t, ws, map[string]string{"type": "text_input", "text": "Me gusta el café"})

	turn, seen, binaryFrames := readUntil(t, ws, MessageTypeTurn)

	if turn["user_text"] != "Me gusta el café" {
		t.Errorf("Expected user_text 'Me gusta el café', got %v", turn["user_text"])
	}
	if reply, _ := turn["reply"].(string); !strings.Contains(reply, "Me gusta el café") {
		t.Errorf("Expected reply to echo the learner, got %q", reply)
	}
	if turn["spoken"] != true {
		t.Errorf("Expected spoken reply, got %v", turn["spoken"])
	}

	wantOrder := []string{"speaking_start", "speaking_end", "turn"}
	if strings.Join(seen, ",") != strings.Join(wantOrder, ",") {
		t.Errorf("Expected messages %v, got %v", wantOrder, seen)
	}
	if binaryFrames == 0 {
		t.Error("Expected reply audio frames")
	}

	got, err := s.sessions.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if got.Len() != 3 {
		t.Errorf("Expected 3 turns, got %d", got.Len())
	}
}

func TestVoiceExchange(t *testing.T) {
	s := setupTestServer(t)
	session, _ := s.sessions.Start(context.Background())
	ws := s.dial(t, session.ID)

	sendJSON(t, ws, map[string]interface{}{"type": "listening_start", "sample_rate": 16000, "channels": 1})
	started, _, _ := readUntil(t, ws, MessageTypeListeningStarted)
	if started["sample_rate"] != float64(16000) {
		t.Errorf("Expected sample_rate 16000, got %v", started["sample_rate"])
	}

	// 200ms of a quiet ramp
	samples := make([]int16, 3200)
	for i := range samples {
		samples[i] = int16(i % 100)
	}
	frame := audio.ToPCM16LE(samples)
	for i := 0; i < len(frame); i += 640 {
		if err := ws.WriteMessage(websocket.BinaryMessage, frame[i:i+640]); err != nil {
			t.Fatalf("Failed to send audio: %v", err)
		}
	}

	sendJSON(t, ws, map[string]string{"type": "listening_end"})

	transcription, _, _ := readUntil(t, ws, MessageTypeTranscription)
	if transcription["text"] != "Hola, ¿cómo estás?" {
		t.Errorf("Expected transcription, got %v", transcription["text"])
	}

	turn, _, _ := readUntil(t, ws, MessageTypeTurn)
	if turn["user_text"] != "Hola, ¿cómo estás?" {
		t.Errorf("Expected transcribed user_text, got %v", turn["user_text"])
	}
}

func TestProtocolErrors(t *testing.T) {
	s := setupTestServer(t)
	session, _ := s.sessions.Start(context.Background())

	tests := []struct {
		name     string
		send     func(ws *websocket.Conn)
		wantCode string
	}{
		{
			name: "audio before listening_start",
			send: func(ws *websocket.Conn) {
				ws.WriteMessage(websocket.BinaryMessage, []byte{0, 0, 1, 0})
			},
			wantCode: ErrorCodeNotListening,
		},
		{
			name: "listening_end without capture",
			send: func(ws *websocket.Conn) {
				ws.WriteJSON(map[string]string{"type": "listening_end"})
			},
			wantCode: ErrorCodeNotListening,
		},
		{
			name: "blank text input",
			send: func(ws *websocket.Conn) {
				ws.WriteJSON(map[string]string{"type": "text_input", "text": "   "})
			},
			wantCode: ErrorCodeInvalidInput,
		},
		{
			name: "empty recording",
			send: func(ws *websocket.Conn) {
				ws.WriteJSON(map[string]string{"type": "listening_start"})
				ws.WriteJSON(map[string]string{"type": "listening_end"})
			},
			wantCode: ErrorCodeServiceUnavailable,
		},
		{
			name: "malformed message",
			send: func(ws *websocket.Conn) {
				ws.WriteMessage(websocket.TextMessage, []byte("{not json"))
			},
			wantCode: ErrorCodeInvalidMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := s.dial(t, session.ID)
			tt.send(ws)

			msg, _, _ := readUntil(t, ws, MessageTypeError)
			if msg["error_code"] != tt.wantCode {
				t.Errorf("Expected error_code %s, got %v", tt.wantCode, msg["error_code"])
			}
		})
	}

	got, _ := s.sessions.Get(context.Background(), session.ID)
	if got.Len() != 1 {
		t.Errorf("Expected rejected input to leave the session untouched, got %d turns", got.Len())
	}
}

func TestUnknownSession(t *testing.T) {
	s := setupTestServer(t)
	ws := s.dial(t, "missing-session")

	sendJSON(t, ws, map[string]string{"type": "text_input", "text": "Hola"})

	msg, _, _ := readUntil(t, ws, MessageTypeError)
	if msg["error_code"] != ErrorCodeSessionNotFound {
		t.Errorf("Expected error_code %s, got %v", ErrorCodeSessionNotFound, msg["error_code"])
	}
}

func TestPingPong(t *testing.T) {
	s := setupTestServer(t)
	session, _ := s.sessions.Start(context.Background())
	ws := s.dial(t, session.ID)

	sendJSON(t, ws, map[string]string{"type": "ping", "data": "hello"})

	msg, _, _ := readUntil(t, ws, MessageTypePong)
	if msg["data"] != "hello" {
		t.Errorf("Expected data 'hello', got %v", msg["data"])
	}
}

func TestHub_ClientCount(t *testing.T) {
	s := setupTestServer(t)
	session, _ := s.sessions.Start(context.Background())

	ws := s.dial(t, session.ID)
	sendJSON(t, ws, map[string]string{"type": "ping"})
	readUntil(t, ws, MessageTypePong)

	if n := s.hub.ClientCount(); n != 1 {
		t.Errorf("Expected 1 client, got %d", n)
	}

	ws.Close()
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := s.hub.ClientCount(); n != 0 {
		t.Errorf("Expected 0 clients after close, got %d", n)
	}
}

func TestSessionCleanupService(t *testing.T) {
	s := setupTestServer(t)
	session, _ := s.sessions.Start(context.Background())

	cleanup := NewSessionCleanupService(s.sessions, 10*time.Millisecond, time.Nanosecond, zaptest.NewLogger(t))
	cleanup.Start()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := s.sessions.Get(context.Background(), session.ID); err != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cleanup.Stop()

	if _, err := s.sessions.Get(context.Background(), session.ID); err == nil {
		t.Error("Expected idle session to be expired")
	}
}

// newSlowClient returns a client without a connection whose send buffer holds
// a single frame
func newSlowClient(t *testing.T) *Client {
	logger := zaptest.NewLogger(t)
	client := newClient(NewHub(nil, HubConfig{}, logger), nil, "session-1", logger)
	client.send = make(chan WriteData, 1)
	return client
}

func writeReply(t *testing.T, size int) *entities.AudioArtifact {
	path := filepath.Join(t.TempDir(), "reply.wav")
	if err := os.WriteFile(path, make([]byte, size), 0o600); err != nil {
		t.Fatalf("Failed to write reply: %v", err)
	}
	return &entities.AudioArtifact{Path: path, Format: entities.AudioFormatWAV, SampleRate: 16000}
}

func TestPresenterPlay_WaitsForSlowClient(t *testing.T) {
	client := newSlowClient(t)
	size := 5*audioChunkSize + 10
	artifact := writeReply(t, size)

	received := make(chan []WriteData)
	go func() {
		var frames []WriteData
		for frame := range client.send {
			frames = append(frames, frame)
			time.Sleep(5 * time.Millisecond)
		}
		received <- frames
	}()

	if err := (&presenter{client: client}).Play(context.Background(), artifact); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	client.close()
	frames := <-received

	// speaking_start, six audio chunks, speaking_end
	if len(frames) != 8 {
		t.Fatalf("Expected 8 frames, got %d", len(frames))
	}

	var first, last BaseMessage
	if err := json.Unmarshal(frames[0].Payload, &first); err != nil || first.Type != MessageTypeSpeakingStart {
		t.Errorf("Expected speaking_start first, got %s (%v)", frames[0].Payload, err)
	}
	if err := json.Unmarshal(frames[7].Payload, &last); err != nil || last.Type != MessageTypeSpeakingEnd {
		t.Errorf("Expected speaking_end last, got %s (%v)", frames[7].Payload, err)
	}

	total := 0
	for _, frame := range frames[1:7] {
		if frame.Type != websocket.BinaryMessage {
			t.Fatalf("Expected binary audio frame, got type %d", frame.Type)
		}
		total += len(frame.Payload)
	}
	if total != size {
		t.Errorf("Expected %d audio bytes, got %d", size, total)
	}
}

func TestPresenterPlay_StopsWhenClientCloses(t *testing.T) {
	client := newSlowClient(t)
	artifact := writeReply(t, 3*audioChunkSize)

	errc := make(chan error, 1)
	go func() {
		errc <- (&presenter{client: client}).Play(context.Background(), artifact)
	}()

	// nothing drains send, so Play blocks once the buffer is full
	deadline := time.Now().Add(2 * time.Second)
	for len(client.send) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	client.close()

	select {
	case err := <-errc:
		if !errors.Is(err, errClientClosed) {
			t.Errorf("Expected errClientClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Play to return after the client closed")
	}

	if client.enqueue(WriteData{Type: websocket.TextMessage}) {
		t.Error("Expected enqueue to refuse frames after close")
	}
}

func TestPresenterPlay_HonoursContext(t *testing.T) {
	client := newSlowClient(t)
	defer client.close()
	artifact := writeReply(t, 3*audioChunkSize)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := (&presenter{client: client}).Play(ctx, artifact)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}
