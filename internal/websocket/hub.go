package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/charla/adapters/recorder"
	"github.com/satriahrh/charla/domain"
	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Size of the binary frames carrying reply audio.
	audioChunkSize = 16 * 1024

	sendBufferSize = 256

	defaultSampleRate   = 16000
	defaultMaxRecord    = 60 * time.Second
	defaultTurnDeadline = 2 * time.Minute
)

var errClientClosed = errors.New("client disconnected")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: check against an allowed-origins list from config
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// HubConfig holds configuration for the Hub
// Optional fields with defaults:
// - SampleRate: capture rate when listening_start does not name one (default: 16000)
// - MaxRecordTime: capture limit per utterance (default: 60s)
// - TurnDeadline: bound on one whole exchange (default: 2m)
type HubConfig struct {
	SampleRate    int
	MaxRecordTime time.Duration
	TurnDeadline  time.Duration
}

// Hub maintains the set of connected clients, one per session
type Hub struct {
	// Registered clients by session ID.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	sessions  *usecase.SessionService
	validator *MessageValidator
	config    HubConfig

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(sessions *usecase.SessionService, config HubConfig, logger *zap.Logger) *Hub {
	if config.SampleRate == 0 {
		config.SampleRate = defaultSampleRate
	}
	if config.MaxRecordTime == 0 {
		config.MaxRecordTime = defaultMaxRecord
	}
	if config.TurnDeadline == 0 {
		config.TurnDeadline = defaultTurnDeadline
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		sessions:   sessions,
		validator:  NewMessageValidator(),
		config:     config,
		logger:     logger,
	}
}

// Run starts the hub's main loop. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if previous, ok := h.clients[client.sessionID]; ok {
				// a reconnect replaces the stale connection
				previous.close()
			}
			h.clients[client.sessionID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("sessionID", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.sessionID]; ok && current == client {
				delete(h.clients, client.sessionID)
			}
			h.mu.Unlock()
			client.close()
			h.logger.Info("Client unregistered", zap.String("sessionID", client.sessionID))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				client.close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages. Closed under sendMu once
	// closing is closed.
	send      chan WriteData
	sendMu    sync.RWMutex
	closing   chan struct{}
	closeOnce sync.Once

	// Session this connection talks to
	sessionID string

	logger *zap.Logger

	mutex   sync.Mutex
	capture *recorder.StreamCapture
	frames  int
}

func newClient(hub *Hub, conn *websocket.Conn, sessionID string, logger *zap.Logger) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan WriteData, sendBufferSize),
		closing:   make(chan struct{}),
		sessionID: sessionID,
		logger:    logger.With(zap.String("sessionID", sessionID)),
	}
}

// HandleWebSocketWithAuth handles websocket requests for an authenticated session
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, sessionID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := newClient(hub, conn, sessionID, logger)

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
			c.close()
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close stops any running capture and closes the send channel once.
// Senders blocked in write are woken by closing before send is closed.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.closing)

		c.mutex.Lock()
		capture := c.capture
		c.capture = nil
		c.mutex.Unlock()
		if capture != nil {
			capture.Stop()
		}

		c.sendMu.Lock()
		close(c.send)
		c.sendMu.Unlock()
	})
}

// enqueue queues a frame for the write pump without waiting. Frames for a
// closed client, or beyond a full buffer, are dropped.
func (c *Client) enqueue(data WriteData) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	select {
	case <-c.closing:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		c.logger.Warn("Send buffer full, dropping frame", zap.Int("type", data.Type))
		return false
	}
}

// write queues a frame for the write pump, waiting for room in the buffer
// until ctx is done or the client is closed
func (c *Client) write(ctx context.Context, data WriteData) error {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	select {
	case <-c.closing:
		return errClientClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.closing:
		return errClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) sendJSON(v interface{}) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return false
	}
	return c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

func (c *Client) writeJSON(ctx context.Context, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(ctx, WriteData{Type: websocket.TextMessage, Payload: payload})
}

func (c *Client) sendError(code, message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	c.sendJSON(CreateErrorMessage(c.sessionID, code, message, details))
}

// processMessage processes incoming control messages from the learner
func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.sendError(ErrorCodeInvalidMessage, "Invalid message", err)
		return
	}

	switch m := msg.(type) {
	case *ListeningStartMessage:
		c.handleListeningStart(m)
	case *ListeningEndMessage:
		c.handleListeningEnd()
	case *TextInputMessage:
		go c.exchange(entities.TypedInput{Text: m.Text})
	case *PingMessage:
		c.sendJSON(CreatePongMessage(c.sessionID, m.Data))
	}
}

// processBinaryAudioChunk feeds PCM16LE frames into the open capture
func (c *Client) processBinaryAudioChunk(data []byte) {
	c.mutex.Lock()
	capture := c.capture
	if capture != nil {
		c.frames++
	}
	c.mutex.Unlock()

	if capture == nil {
		c.logger.Warn("Received binary audio chunk but not listening", zap.Int("size", len(data)))
		c.sendError(ErrorCodeNotListening, "Send listening_start before audio", nil)
		return
	}

	if err := capture.PushPCM16LE(data); err != nil {
		c.logger.Debug("Dropped audio chunk", zap.Error(err))
	}
}

// handleListeningStart opens a new capture, replacing any unfinished one
func (c *Client) handleListeningStart(msg *ListeningStartMessage) {
	sampleRate := msg.SampleRate
	if sampleRate == 0 {
		sampleRate = c.hub.config.SampleRate
	}
	channels := max(msg.Channels, 1)

	capture := recorder.NewStreamCapture(sampleRate, channels, c.hub.config.MaxRecordTime, c.logger)

	c.mutex.Lock()
	select {
	case <-c.closing:
		c.mutex.Unlock()
		capture.Stop()
		return
	default:
	}
	previous := c.capture
	c.capture = capture
	c.frames = 0
	c.mutex.Unlock()

	if previous != nil {
		c.logger.Warn("Discarding unfinished capture")
		previous.Stop()
	}

	c.logger.Info("Listening started", zap.Int("sampleRate", sampleRate), zap.Int("channels", channels))
	c.sendJSON(&ListeningStartedMessage{
		BaseMessage: newBase(MessageTypeListeningStarted, c.sessionID),
		SampleRate:  sampleRate,
		Channels:    channels,
		MaxDuration: c.hub.config.MaxRecordTime.Milliseconds(),
	})
}

// handleListeningEnd stops the capture and submits the clip
func (c *Client) handleListeningEnd() {
	c.mutex.Lock()
	capture := c.capture
	frames := c.frames
	c.capture = nil
	c.mutex.Unlock()

	if capture == nil {
		c.sendError(ErrorCodeNotListening, "No capture in progress", nil)
		return
	}

	clip := capture.Stop()
	c.logger.Info("Listening ended",
		zap.Int("frames", frames),
		zap.Duration("duration", clip.Duration()))

	go c.exchange(entities.RecordedInput{Clip: clip})
}

// exchange runs one exchange and reports its outcome to the client
func (c *Client) exchange(input entities.InputSource) {
	ctx, cancel := context.WithTimeout(context.Background(), c.hub.config.TurnDeadline)
	defer cancel()

	result, err := c.hub.sessions.Exchange(ctx, c.sessionID, input, &presenter{client: c})
	if err != nil {
		code, message := errorCode(err)
		c.logger.Warn("Exchange rejected", zap.String("code", code), zap.Error(err))
		c.sendError(code, message, err)
		return
	}

	if err := c.writeJSON(ctx, CreateTurnMessage(c.sessionID, result)); err != nil {
		c.logger.Debug("Turn not delivered", zap.Error(err))
	}
}

func errorCode(err error) (string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return ErrorCodeInvalidInput, "Please say or type something"
	case errors.Is(err, domain.ErrSessionBusy):
		return ErrorCodeSessionBusy, "Still answering the previous turn"
	case errors.Is(err, domain.ErrSessionNotFound):
		return ErrorCodeSessionNotFound, "Session has ended"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return ErrorCodeServiceUnavailable, "Could not understand the recording, please try again"
	default:
		return ErrorCodeInternal, "Something went wrong"
	}
}

// presenter streams exchange progress to the websocket client
type presenter struct {
	client *Client
}

func (p *presenter) Transcribed(text string) {
	p.client.sendJSON(CreateTextMessage(MessageTypeTranscription, p.client.sessionID, text))
}

func (p *presenter) Translated(text string) {
	p.client.sendJSON(CreateTextMessage(MessageTypeTranslation, p.client.sessionID, text))
}

// Play sends the reply audio as binary frames between speaking_start and
// speaking_end
func (p *presenter) Play(ctx context.Context, artifact *entities.AudioArtifact) error {
	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		return err
	}

	c := p.client
	if err := c.writeJSON(ctx, &SpeakingStartMessage{
		BaseMessage: newBase(MessageTypeSpeakingStart, c.sessionID),
		Format:      string(artifact.Format),
		SampleRate:  artifact.SampleRate,
		Bytes:       len(data),
	}); err != nil {
		return err
	}

	for start := 0; start < len(data); start += audioChunkSize {
		end := min(start+audioChunkSize, len(data))
		if err := c.write(ctx, WriteData{Type: websocket.BinaryMessage, Payload: data[start:end]}); err != nil {
			return err
		}
	}

	return c.writeJSON(ctx, &SpeakingEndMessage{BaseMessage: newBase(MessageTypeSpeakingEnd, c.sessionID)})
}
