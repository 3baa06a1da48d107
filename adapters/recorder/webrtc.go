package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/satriahrh/charla/internal/audio"
)

const (
	pcmuPayloadType = 0
	pcmuClockRate   = 8000
	defaultSTUN     = "stun:stun.l.google.com:19302"
)

// SessionDescription keeps webrtc types out of the transport layer
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// WebRTCConfig holds configuration for the WebRTCReceiver
// Optional fields with defaults:
// - ICEServers: STUN/TURN URLs (default: Google's public STUN server)
// - MaxDuration: capture limit per offer (default: 60s)
type WebRTCConfig struct {
	ICEServers  []string
	MaxDuration time.Duration
}

// WebRTCReceiver accepts browser offers carrying a G.711 μ-law microphone track
type WebRTCReceiver struct {
	api         *webrtc.API
	config      webrtc.Configuration
	maxDuration time.Duration
	logger      *zap.Logger
}

// WebRTCCapture is one negotiated peer connection feeding a StreamCapture
type WebRTCCapture struct {
	*StreamCapture
	pc     *webrtc.PeerConnection
	logger *zap.Logger
}

// NewWebRTCReceiver creates a receiver whose media engine only speaks PCMU
func NewWebRTCReceiver(config WebRTCConfig, logger *zap.Logger) (*WebRTCReceiver, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: pcmuClockRate},
		PayloadType:        pcmuPayloadType,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("failed to register PCMU: %w", err)
	}

	iceServers := config.ICEServers
	if iceServers == nil {
		iceServers = []string{defaultSTUN}
		logger.Info("Using default ICE server", zap.String("url", defaultSTUN))
	}

	maxDuration := config.MaxDuration
	if maxDuration == 0 {
		maxDuration = defaultMaxDuration
	}

	rtcConfig := webrtc.Configuration{}
	if len(iceServers) > 0 {
		rtcConfig.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}

	return &WebRTCReceiver{
		api:         webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine)),
		config:      rtcConfig,
		maxDuration: maxDuration,
		logger:      logger,
	}, nil
}

// Accept answers offer and starts capturing the remote audio track. The
// answer is returned once ICE gathering has completed.
func (w *WebRTCReceiver) Accept(ctx context.Context, offer SessionDescription) (*WebRTCCapture, SessionDescription, error) {
	if offer.Type != "offer" || offer.SDP == "" {
		return nil, SessionDescription{}, errors.New("invalid offer")
	}

	pc, err := w.api.NewPeerConnection(w.config)
	if err != nil {
		return nil, SessionDescription{}, fmt.Errorf("create peer connection: %w", err)
	}

	capture := &WebRTCCapture{
		StreamCapture: NewStreamCapture(pcmuClockRate, 1, w.maxDuration, w.logger),
		pc:            pc,
		logger:        w.logger,
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		w.logger.Info("Remote audio track received", zap.String("codec", track.Codec().MimeType))
		go capture.readTrack(track)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		w.logger.Debug("Peer connection state", zap.String("state", state.String()))
		if state == webrtc.PeerConnectionStateFailed {
			capture.Close()
		}
	})

	fail := func(err error) (*WebRTCCapture, SessionDescription, error) {
		capture.Close()
		return nil, SessionDescription{}, err
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}); err != nil {
		return fail(fmt.Errorf("set remote description: %w", err))
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fail(fmt.Errorf("create answer: %w", err))
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return fail(fmt.Errorf("set local description: %w", err))
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return fail(ctx.Err())
	}

	local := pc.LocalDescription()
	if local == nil {
		return fail(errors.New("no local description"))
	}
	return capture, SessionDescription{Type: "answer", SDP: local.SDP}, nil
}

func (c *WebRTCCapture) readTrack(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			c.logger.Debug("Track read ended", zap.Error(err))
			return
		}
		if err := c.handlePacket(pkt); errors.Is(err, ErrCaptureStopped) {
			return
		}
	}
}

// handlePacket decodes a PCMU payload into the capture. Other payload types
// are ignored.
func (c *WebRTCCapture) handlePacket(pkt *rtp.Packet) error {
	if pkt.PayloadType != pcmuPayloadType || len(pkt.Payload) == 0 {
		return nil
	}
	return c.Push(audio.DecodeMuLaw(pkt.Payload))
}

// Close stops the capture and tears down the peer connection
func (c *WebRTCCapture) Close() error {
	c.Stop()
	return c.pc.Close()
}
