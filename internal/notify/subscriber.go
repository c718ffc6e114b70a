package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Subscriber is a single websocket connection listening to the feed.
type Subscriber struct {
	id       string
	conn     *websocket.Conn
	hub      *Hub
	log      *zap.Logger
	send     chan Event
	stop     chan struct{}
	stopOnce sync.Once
}

func NewSubscriber(id string, conn *websocket.Conn, hub *Hub, l *zap.Logger) *Subscriber {
	return &Subscriber{
		id:   id,
		conn: conn,
		hub:  hub,
		log:  l.With(zap.String("subscriber", id)),
		send: make(chan Event, 64),
		stop: make(chan struct{}),
	}
}

func (s *Subscriber) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case ev := <-s.send:
			b, err := json.Marshal(ev)
			if err != nil {
				s.log.Error("failed to serialize event", zap.Error(err))
				continue
			}

			if !s.sendMessage(websocket.TextMessage, b) {
				return
			}
		case <-s.stop:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-ticker.C:
			if !s.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

// Read discards inbound messages; it only exists to process control frames
// and to notice when the peer goes away.
func (s *Subscriber) Read() {
	defer func() {
		s.hub.deRegister(s)
		s.stopSubscriber()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error { s.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.log.Warn("ws read", zap.Error(err))
			}
			return
		}
	}
}

func (s *Subscriber) queueEvent(ev Event) bool {
	select {
	case s.send <- ev:
	default:
		s.log.Warn("subscriber buffer full, dropping event", zap.String("room_number", ev.RoomNumber))
		return false
	}

	return true
}

func (s *Subscriber) sendMessage(msgType int, msg []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := s.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			s.log.Warn("ws write", zap.Error(err))
		}
		return false
	}

	return true
}

func (s *Subscriber) stopSubscriber() {
	s.stopOnce.Do(func() { close(s.stop) })
}
