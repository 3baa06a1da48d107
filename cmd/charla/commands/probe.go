package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/satriahrh/charla/internal/api"
	"github.com/satriahrh/charla/internal/audio"
	ws "github.com/satriahrh/charla/internal/websocket"
)

var (
	probeServer  string
	probeWAV     string
	probeOut     string
	probeChunkMs int
	probeTimeout time.Duration
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Stream a WAV file to a running server",
	Long: `Create a session on a running charla server, stream a 16-bit PCM WAV file
over the WebSocket as if it came from a microphone and save the spoken reply.

Example:
  charla probe --server http://localhost:8080 --wav hola.wav --out reply`,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().StringVarP(&probeServer, "server", "s", "http://localhost:8080", "server base URL")
	probeCmd.Flags().StringVarP(&probeWAV, "wav", "f", "", "16-bit PCM WAV file to send (required)")
	probeCmd.Flags().StringVarP(&probeOut, "out", "o", "reply", "reply audio path without extension")
	probeCmd.Flags().IntVar(&probeChunkMs, "chunk-ms", 100, "audio frame length in milliseconds")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 2*time.Minute, "give up waiting for the reply after this long")
	probeCmd.MarkFlagRequired("wav")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	f, err := os.Open(probeWAV)
	if err != nil {
		return err
	}
	clip, err := audio.ReadWAV(f)
	f.Close()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Read %s: %s at %d Hz, %d channel(s)\n", probeWAV, clip.Duration(), clip.SampleRate, clip.Channels)

	session, err := createProbeSession(probeServer)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	fmt.Fprintf(out, "Session %s\n", session.SessionID)

	wsURL, err := websocketURL(probeServer, session.Token)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(ws.ListeningStartMessage{
		BaseMessage: ws.BaseMessage{Type: ws.MessageTypeListeningStart},
		SampleRate:  clip.SampleRate,
		Channels:    clip.Channels,
	}); err != nil {
		return err
	}

	pcm := audio.ToPCM16LE(clip.Samples)
	chunkSize := max(clip.SampleRate*clip.Channels*2*probeChunkMs/1000, 2)
	chunkSize -= chunkSize % 2
	for start := 0; start < len(pcm); start += chunkSize {
		end := min(start+chunkSize, len(pcm))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[start:end]); err != nil {
			return fmt.Errorf("send audio: %w", err)
		}
	}

	if err := conn.WriteJSON(ws.ListeningEndMessage{
		BaseMessage: ws.BaseMessage{Type: ws.MessageTypeListeningEnd},
	}); err != nil {
		return err
	}
	fmt.Fprintf(out, "Sent %d bytes of audio\n", len(pcm))

	return readReply(conn, out, time.Now().Add(probeTimeout))
}

func createProbeSession(server string) (*api.CreateSessionResponse, error) {
	resp, err := http.Post(strings.TrimRight(server, "/")+"/api/v1/sessions", "application/json", bytes.NewReader(nil))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var session api.CreateSessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func websocketURL(server, token string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

// readReply prints server messages until the turn is reported and saves the
// spoken reply
func readReply(conn *websocket.Conn, out io.Writer, deadline time.Time) error {
	var reply bytes.Buffer
	format := ""

	conn.SetReadDeadline(deadline)
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if messageType == websocket.BinaryMessage {
			reply.Write(data)
			continue
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("decode message: %w", err)
		}

		switch ws.MessageType(fmt.Sprint(msg["type"])) {
		case ws.MessageTypeListeningStarted:
			fmt.Fprintln(out, "Server is listening")
		case ws.MessageTypeTranscription:
			fmt.Fprintf(out, "You said: %v\n", msg["text"])
		case ws.MessageTypeTranslation:
			fmt.Fprintf(out, "Translation: %v\n", msg["text"])
		case ws.MessageTypeSpeakingStart:
			format = fmt.Sprint(msg["format"])
			reply.Reset()
		case ws.MessageTypeSpeakingEnd:
			path := probeOut + "." + format
			if err := os.WriteFile(path, reply.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %d bytes of reply audio to %s\n", reply.Len(), path)
		case ws.MessageTypeTurn:
			fmt.Fprintf(out, "Assistant: %v\n", msg["reply"])
			return nil
		case ws.MessageTypeError:
			return fmt.Errorf("%v: %v", msg["error_code"], msg["message"])
		}
	}
}
