package recorder

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap/zaptest"
)

func TestWebRTCCapture_HandlePacket(t *testing.T) {
	capture := &WebRTCCapture{
		StreamCapture: NewStreamCapture(pcmuClockRate, 1, time.Second, zaptest.NewLogger(t)),
	}

	// μ-law 0xFF and 0x7F both decode to silence
	_ = capture.handlePacket(&rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: pcmuPayloadType},
		Payload: []byte{0xFF, 0x7F, 0x00, 0x80},
	})
	_ = capture.handlePacket(&rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: 111},
		Payload: []byte{0x01, 0x02},
	})

	clip := capture.Stop()
	if len(clip.Samples) != 4 {
		t.Fatalf("Expected 4 samples from the PCMU packet only, got %d", len(clip.Samples))
	}
	if clip.Samples[0] != 0 || clip.Samples[1] != 0 {
		t.Errorf("Expected silence, got %v", clip.Samples[:2])
	}
	if clip.Samples[2] >= 0 || clip.Samples[3] <= 0 {
		t.Errorf("Expected full-scale negative then positive, got %v", clip.Samples[2:])
	}

	err := capture.handlePacket(&rtp.Packet{Header: rtp.Header{PayloadType: pcmuPayloadType}, Payload: []byte{0xFF}})
	if err != ErrCaptureStopped {
		t.Errorf("Expected ErrCaptureStopped, got %v", err)
	}
}

func TestWebRTCReceiver_Accept(t *testing.T) {
	receiver, err := NewWebRTCReceiver(WebRTCConfig{ICEServers: []string{}}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create receiver: %v", err)
	}

	offerer, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("Failed to create offerer: %v", err)
	}
	defer offerer.Close()

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: pcmuClockRate},
		"audio", "learner")
	if err != nil {
		t.Fatalf("Failed to create track: %v", err)
	}
	if _, err := offerer.AddTrack(track); err != nil {
		t.Fatalf("Failed to add track: %v", err)
	}

	offer, err := offerer.CreateOffer(nil)
	if err != nil {
		t.Fatalf("Failed to create offer: %v", err)
	}
	gathered := webrtc.GatheringCompletePromise(offerer)
	if err := offerer.SetLocalDescription(offer); err != nil {
		t.Fatalf("Failed to set local description: %v", err)
	}
	<-gathered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	capture, answer, err := receiver.Accept(ctx, SessionDescription{Type: "offer", SDP: offerer.LocalDescription().SDP})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer capture.Close()

	if answer.Type != "answer" {
		t.Errorf("Expected answer, got %s", answer.Type)
	}
	if !strings.Contains(answer.SDP, "PCMU/8000") {
		t.Errorf("Expected PCMU in answer SDP, got:\n%s", answer.SDP)
	}
	if err := offerer.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer.SDP}); err != nil {
		t.Errorf("Offerer rejected answer: %v", err)
	}
}

func TestWebRTCReceiver_RejectsInvalidOffer(t *testing.T) {
	receiver, err := NewWebRTCReceiver(WebRTCConfig{ICEServers: []string{}}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create receiver: %v", err)
	}

	if _, _, err := receiver.Accept(context.Background(), SessionDescription{Type: "answer", SDP: "v=0"}); err == nil {
		t.Error("Expected error for non-offer description")
	}
}
