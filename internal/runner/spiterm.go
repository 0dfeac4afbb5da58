package runner

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/vk-instruments/spibeam/internal/beamlog"
	"github.com/vk-instruments/spibeam/internal/protocol"
	"github.com/vk-instruments/spibeam/internal/spiwrite"
)

// SpitermConfig carries the UDP endpoint addressing.
type SpitermConfig struct {
	LocalPort  int
	RemoteHost string
	RemotePort int
}

// Spiterm is the UDP terminal endpoint. It answers framed line commands
// from the operator terminal, acknowledges everything it receives, and
// retransmits its own replies until they are acknowledged.
type Spiterm struct {
	cfg  SpitermConfig
	exec *spiwrite.Executor
	db   *beamlog.DB // optional

	conn    *net.UDPConn
	remote  *net.UDPAddr
	handler *protocol.Handler

	mu      sync.Mutex
	pending map[uint32]chan struct{}
}

// NewSpiterm builds the endpoint. db may be nil to disable command
// logging.
func NewSpiterm(cfg SpitermConfig, exec *spiwrite.Executor, db *beamlog.DB) *Spiterm {
	s := &Spiterm{
		cfg:     cfg,
		exec:    exec,
		db:      db,
		pending: make(map[uint32]chan struct{}),
	}
	s.handler = protocol.NewHandler(s.sendToRemote)
	s.handler.OnAck = s.onAck
	return s
}

func (s *Spiterm) sendToRemote(data []byte) error {
	_, err := s.conn.WriteToUDP(data, s.remote)
	return err
}

func (s *Spiterm) onAck(sequence uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.pending[sequence]; ok {
		close(ch)
		delete(s.pending, sequence)
	}
}

// Run binds the local port and serves until context cancellation.
func (s *Spiterm) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf(":%d", s.cfg.LocalPort))
	if err != nil {
		return fmt.Errorf("failed to resolve local UDP address: %w", err)
	}
	remote, err := net.ResolveUDPAddr("udp",
		fmt.Sprintf("%s:%d", s.cfg.RemoteHost, s.cfg.RemotePort))
	if err != nil {
		return fmt.Errorf("failed to resolve remote UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	s.conn = conn
	s.remote = remote
	defer conn.Close()

	log.Printf("terminal endpoint listening on :%d, peer %s", s.cfg.LocalPort, remote)

	buffer := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			log.Print("terminal endpoint stopping")
			return ctx.Err()
		default:
			conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
			n, sender, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("UDP read error: %v", err)
				continue
			}
			if err := s.handleDatagram(ctx, buffer[:n]); err != nil {
				log.Printf("error handling datagram from %v: %v", sender, err)
			}
		}
	}
}

func (s *Spiterm) handleDatagram(ctx context.Context, data []byte) error {
	var reply strings.Builder
	s.handler.OnLines = func(head protocol.Header, lines string) {
		reply.WriteString(s.executeLines(ctx, lines))
	}
	if err := s.handler.HandleDatagram(data); err != nil {
		return err
	}
	if reply.Len() == 0 {
		return nil
	}
	reply.WriteString(Prompt)
	return s.sendReply(ctx, reply.String())
}

// executeLines runs a received message's command lines. BINARY payloads
// are executed whole; text messages run line by line.
func (s *Spiterm) executeLines(ctx context.Context, lines string) string {
	var b strings.Builder
	var cmds []string
	if strings.HasPrefix(lines, "BINARY:") {
		cmds = []string{lines}
	} else {
		cmds = strings.FieldsFunc(lines, func(r rune) bool { return r == '\r' || r == '\n' })
	}
	for _, cmd := range cmds {
		if strings.TrimSpace(cmd) == "" {
			continue
		}
		res, err := s.exec.Execute(ctx, cmd)
		if err != nil {
			fmt.Fprintf(&b, "Error : %v\r\n", err)
			continue
		}
		for _, v := range res.Responses {
			fmt.Fprintf(&b, "%08x\r\n", v)
		}
		if res.Message != "" {
			b.WriteString(res.Message + "\r\n")
		}
		if s.db != nil {
			if err := s.db.RecordCommand(cmd, res.Message); err != nil {
				log.Printf("failed to record command: %v", err)
			}
		}
	}
	return b.String()
}

// sendReply transmits a reply and retransmits it with exponential backoff
// until the peer acknowledges the sequence or the context ends.
func (s *Spiterm) sendReply(ctx context.Context, text string) error {
	seq := s.handler.NextSequence()
	frame, err := protocol.LinesFrame(seq, text)
	if err != nil {
		return err
	}

	acked := make(chan struct{})
	s.mu.Lock()
	s.pending[seq] = acked
	s.mu.Unlock()

	if err := s.handler.Send(frame); err != nil {
		return err
	}

	go func() {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 50 * time.Millisecond
		bo.MaxInterval = time.Second
		bo.MaxElapsedTime = 10 * time.Second
		retransmit := func() error {
			select {
			case <-acked:
				return nil
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			default:
			}
			if err := s.handler.Send(frame); err != nil {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("reply %d not yet acknowledged", seq)
		}
		if err := backoff.Retry(retransmit, backoff.WithContext(bo, ctx)); err != nil {
			log.Printf("reply %d never acknowledged: %v", seq, err)
		}
		s.mu.Lock()
		delete(s.pending, seq)
		s.mu.Unlock()
	}()
	return nil
}
