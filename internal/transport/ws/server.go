package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pommerneg.ai/internal/protocol"
	"pommerneg.ai/internal/sim/board"
	"pommerneg.ai/internal/sim/match"
)

type Config struct {
	MatchID string
	Params  protocol.MatchParams
	// NegotiateTimeout bounds each PROPOSE and REVIEW exchange.
	NegotiateTimeout time.Duration
	Logger           *log.Logger
}

// Server seats up to four websocket clients in one match.
type Server struct {
	cfg   Config
	log   *log.Logger
	seats [board.NumPlayers]*RemoteAgent

	mu      sync.Mutex
	changed chan struct{}

	upgrader websocket.Upgrader
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.NegotiateTimeout <= 0 {
		cfg.NegotiateTimeout = time.Second
	}
	s := &Server{
		cfg:     cfg,
		log:     cfg.Logger,
		changed: make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	for i := range s.seats {
		s.seats[i] = newRemoteAgent(i, cfg.Params.ProposalLimit, cfg.NegotiateTimeout, cfg.Logger)
	}
	return s
}

func (s *Server) Seat(i int) *RemoteAgent { return s.seats[i] }

// Players returns the seats as match players, attached or not.
func (s *Server) Players() [board.NumPlayers]match.Player {
	var out [board.NumPlayers]match.Player
	for i, a := range s.seats {
		out[i] = a
	}
	return out
}

func (s *Server) Attached() int {
	n := 0
	for _, a := range s.seats {
		if a.Attached() {
			n++
		}
	}
	return n
}

// WaitSeats blocks until at least n seats hold a connection.
func (s *Server) WaitSeats(ctx context.Context, n int) error {
	for {
		s.mu.Lock()
		ch := s.changed
		s.mu.Unlock()
		if s.Attached() >= n {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Server) notify() {
	s.mu.Lock()
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		agent, out := s.handshake(conn)
		if agent == nil {
			return
		}
		s.log.Printf("[ws] seat %d attached name=%q", agent.Seat(), agent.Name())
		s.notify()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.Validate(msg)
			if err == nil {
				err = agent.deliver(base.Type, msg)
			}
			if err != nil {
				_ = agent.send(protocol.NewError(protocol.ErrProtoBadRequest, err.Error()))
			}
		}

		agent.detach(out)
		s.log.Printf("[ws] seat %d detached", agent.Seat())
		s.notify()
	}
}

func (s *Server) handshake(conn *websocket.Conn) (*RemoteAgent, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, nil
	}

	hello, err := protocol.Decode[protocol.HelloMsg](msg, protocol.TypeHello)
	if err != nil {
		s.reject(conn, protocol.ErrProtoBadRequest, err.Error())
		return nil, nil
	}
	if hello.ProtocolVersion != protocol.Version {
		s.reject(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return nil, nil
	}

	out := make(chan []byte, 16)
	var agent *RemoteAgent
	if hello.Seat != nil {
		if !s.seats[*hello.Seat].attach(out, hello) {
			s.reject(conn, protocol.ErrSeatTaken, "seat taken")
			return nil, nil
		}
		agent = s.seats[*hello.Seat]
	} else {
		for _, a := range s.seats {
			if a.attach(out, hello) {
				agent = a
				break
			}
		}
		if agent == nil {
			s.reject(conn, protocol.ErrNoSeat, "match is full")
			return nil, nil
		}
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		MatchID:         s.cfg.MatchID,
		Seat:            agent.Seat(),
		Params:          s.cfg.Params,
	}
	if err := writeJSON(conn, welcome); err != nil {
		agent.detach(out)
		return nil, nil
	}
	return agent, out
}

func (s *Server) reject(conn *websocket.Conn, code, reason string) {
	_ = writeJSON(conn, protocol.NewError(code, reason))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	}
	return nil
}
