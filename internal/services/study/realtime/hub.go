// Package realtime delivers domain events to connected clients over
// websockets.
package realtime

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/louisbranch/study.space/internal/services/study/domain"
	"github.com/louisbranch/study.space/internal/services/study/wire"
)

// Frame is the envelope sent in both directions.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

const (
	peerQueueSize    = 64
	peerWriteTimeout = 5 * time.Second
)

var (
	errPeerClosed     = errors.New("peer closed")
	errPeerBacklogged = errors.New("peer outbound queue full")
)

type peerConn interface {
	io.Writer
	Close() error
	SetWriteDeadline(t time.Time) error
}

// peer owns one socket. Frames are queued and written by writeLoop so a
// client that stops reading never blocks a publisher; a full queue drops
// the peer.
type peer struct {
	userID    string
	conn      peerConn
	out       chan Frame
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func newPeer(userID string, conn peerConn) *peer {
	return &peer{
		userID:  userID,
		conn:    conn,
		out:     make(chan Frame, peerQueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (p *peer) writeFrame(frame Frame) error {
	if p.closed() {
		return errPeerClosed
	}
	select {
	case p.out <- frame:
		return nil
	default:
		p.close()
		return errPeerBacklogged
	}
}

// writeLoop runs until the peer closes or a write fails, then closes the
// socket so the read loop ends too.
func (p *peer) writeLoop() {
	defer close(p.stopped)
	defer func() {
		_ = p.conn.Close()
	}()
	encoder := json.NewEncoder(p.conn)
	for {
		select {
		case <-p.done:
			p.flush(encoder)
			return
		case frame := <-p.out:
			if err := p.conn.SetWriteDeadline(time.Now().Add(peerWriteTimeout)); err != nil {
				log.Printf("realtime: set write deadline for user %s: %v", p.userID, err)
			}
			if err := encoder.Encode(frame); err != nil {
				log.Printf("realtime: write %s to user %s: %v", frame.Type, p.userID, err)
				p.close()
				return
			}
		}
	}
}

// flush writes frames queued before close under one shared deadline.
func (p *peer) flush(encoder *json.Encoder) {
	_ = p.conn.SetWriteDeadline(time.Now().Add(peerWriteTimeout))
	for {
		select {
		case frame := <-p.out:
			if err := encoder.Encode(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (p *peer) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

// Hub tracks open sockets per user and implements domain.Publisher.
type Hub struct {
	mu    sync.Mutex
	users map[string]map[*peer]struct{}
}

var _ domain.Publisher = (*Hub)(nil)

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{users: make(map[string]map[*peer]struct{})}
}

func (h *Hub) join(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	peers, ok := h.users[p.userID]
	if !ok {
		peers = make(map[*peer]struct{})
		h.users[p.userID] = peers
	}
	peers[p] = struct{}{}
}

func (h *Hub) leave(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	peers, ok := h.users[p.userID]
	if !ok {
		return
	}
	delete(peers, p)
	if len(peers) == 0 {
		delete(h.users, p.userID)
	}
}

// Connections reports how many sockets a user has open.
func (h *Hub) Connections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.users[userID])
}

func (h *Hub) snapshot(userID string) []*peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	if userID != "" {
		out := make([]*peer, 0, len(h.users[userID]))
		for p := range h.users[userID] {
			out = append(out, p)
		}
		return out
	}
	var out []*peer
	for _, peers := range h.users {
		for p := range peers {
			out = append(out, p)
		}
	}
	return out
}

// PublishToUser queues the event on every socket the user has open.
// Delivery is best effort and never blocks on a slow client.
func (h *Hub) PublishToUser(userID string, evt domain.Event) {
	if userID == "" {
		return
	}
	h.send(h.snapshot(userID), evt)
}

// Broadcast queues the event on every open socket.
func (h *Hub) Broadcast(evt domain.Event) {
	h.send(h.snapshot(""), evt)
}

func (h *Hub) send(peers []*peer, evt domain.Event) {
	if len(peers) == 0 {
		return
	}
	frame := Frame{Type: evt.Type, Payload: mustJSON(wire.EventPayload(evt))}
	for _, p := range peers {
		if err := p.writeFrame(frame); errors.Is(err, errPeerBacklogged) {
			log.Printf("realtime: dropped slow socket for user %s on %s", p.userID, evt.Type)
		}
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("realtime: marshal frame payload: %v", err)
		return nil
	}
	return b
}
