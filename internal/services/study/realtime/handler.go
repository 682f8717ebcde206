package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"
)

const (
	maxFramePayloadBytes   = 4 * 1024
	maxFramesPerSecond     = 20
	maxDecodeErrorsPerConn = 3
)

// Authenticator resolves the user behind an upgrade request.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(r *http.Request) (string, error)

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(r *http.Request) (string, error) {
	return f(r)
}

type userIDContextKey struct{}

// Handler upgrades authenticated GET requests into hub subscriptions.
func (h *Hub) Handler(auth Authenticator) http.Handler {
	ws := websocket.Handler(func(conn *websocket.Conn) {
		userID, _ := conn.Request().Context().Value(userIDContextKey{}).(string)
		h.serve(conn, userID)
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if auth == nil {
			http.Error(w, "websocket auth is not configured", http.StatusServiceUnavailable)
			return
		}
		userID, err := auth.Authenticate(r)
		userID = strings.TrimSpace(userID)
		if err != nil || userID == "" {
			log.Printf("realtime: websocket unauthorized remote=%s err=%v", r.RemoteAddr, err)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userIDContextKey{}, userID)
		ws.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Hub) serve(conn *websocket.Conn, userID string) {
	p := newPeer(userID, conn)
	go p.writeLoop()
	defer func() {
		p.close()
		<-p.stopped
	}()

	h.join(p)
	defer h.leave(p)

	_ = p.writeFrame(Frame{Type: "hello", Payload: mustJSON(helloPayload{
		UserID:     userID,
		ServerTime: time.Now().UTC().Format(time.RFC3339),
	})})

	decoder := json.NewDecoder(conn)
	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0
	for {
		var frame Frame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) || p.closed() {
				return
			}
			decodeErrors++
			_ = writeError(p, "", "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeError(p, frame.RequestID, "INVALID_ARGUMENT", "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeError(p, frame.RequestID, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case "ping":
			_ = p.writeFrame(Frame{Type: "pong", RequestID: frame.RequestID})
		default:
			_ = writeError(p, frame.RequestID, "INVALID_ARGUMENT", "unsupported frame type")
		}
	}
}

type helloPayload struct {
	UserID     string `json:"user_id"`
	ServerTime string `json:"server_time"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(p *peer, requestID, code, message string) error {
	return p.writeFrame(Frame{
		Type:      "error",
		RequestID: requestID,
		Payload:   mustJSON(errorEnvelope{Error: errorBody{Code: code, Message: message}}),
	})
}
