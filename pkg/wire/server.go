package wire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/JoseTor101/mom-middleware/pkg/log"
	"github.com/JoseTor101/mom-middleware/pkg/metrics"
	"github.com/JoseTor101/mom-middleware/pkg/types"
)

// maxInflight bounds concurrently running RPC handlers per server.
const maxInflight = 10

// Handler serves the RPC surface. SendMessage, ReceiveMessage and
// CreateTopic return wire statuses directly; GetNextInstance returns
// types.ErrNoInstances when the registry is empty.
type Handler interface {
	SendMessage(ctx context.Context, topic, message string) (status, detail string)
	ReceiveMessage(ctx context.Context, topic string) (status, detail string)
	CreateTopic(ctx context.Context, topic string, partitions int32) (status, detail string)
	GetNextInstance(ctx context.Context) (name, address string, err error)
	RegisterInstance(ctx context.Context, nodeName, hostname string, port int32) (status, detail string)
}

// Server accepts connections and dispatches request frames to a Handler.
type Server struct {
	handler Handler
	logger  zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	closed   bool

	slots chan struct{}
	wg    sync.WaitGroup
}

// NewServer creates a server around the given handler.
func NewServer(handler Handler) *Server {
	return &Server{
		handler: handler,
		logger:  log.WithComponent("wire"),
		slots:   make(chan struct{}, maxInflight),
	}
}

// Listen binds addr (host:port, port 0 picks a free one) and returns the
// bound port. Failure to bind is the one startup error callers treat as
// fatal.
func (s *Server) Listen(addr string) (int, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// Serve runs the accept loop until Close. It must be called after Listen.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		return errors.New("wire: Serve called before Listen")
	}

	for {
		conn, err := l.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || ctx.Err() != nil {
				return nil
			}
			s.logger.Warn().Err(err).Msg("accept failed")
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Close stops the accept loop and waits for in-flight handlers.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	l := s.listener
	s.mu.Unlock()
	var err error
	if l != nil {
		err = l.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	for {
		payload, err := readFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("connection read ended")
			}
			return
		}

		select {
		case s.slots <- struct{}{}:
		case <-ctx.Done():
			return
		}
		resp, corrID, err := s.dispatch(ctx, payload)
		<-s.slots
		if err != nil {
			s.logger.Warn().Err(err).Msg("malformed request frame")
			return
		}
		if err := writeFrame(conn, encodeResponse(corrID, resp)); err != nil {
			s.logger.Debug().Err(err).Msg("failed to write response")
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, payload []byte) (message, int32, error) {
	pd := &decoder{buf: payload}
	apiKey, err := pd.getInt16()
	if err != nil {
		return nil, 0, err
	}
	corrID, err := pd.getInt32()
	if err != nil {
		return nil, 0, err
	}

	switch apiKey {
	case apiKeySendMessage:
		req := &MessageRequest{}
		if err := req.decode(pd); err != nil {
			return nil, 0, err
		}
		status, detail := s.handler.SendMessage(ctx, req.Topic, req.Message)
		metrics.RPCRequestsTotal.WithLabelValues("SendMessage", status).Inc()
		return &MessageResponse{Status: status, Message: detail}, corrID, nil

	case apiKeyReceiveMessage:
		req := &MessageRequest{}
		if err := req.decode(pd); err != nil {
			return nil, 0, err
		}
		status, detail := s.handler.ReceiveMessage(ctx, req.Topic)
		metrics.RPCRequestsTotal.WithLabelValues("ReceiveMessage", status).Inc()
		return &MessageResponse{Status: status, Message: detail}, corrID, nil

	case apiKeyCreateTopic:
		req := &TopicRequest{}
		if err := req.decode(pd); err != nil {
			return nil, 0, err
		}
		status, detail := s.handler.CreateTopic(ctx, req.TopicName, req.Partitions)
		metrics.RPCRequestsTotal.WithLabelValues("CreateTopic", status).Inc()
		return &MessageResponse{Status: status, Message: detail}, corrID, nil

	case apiKeyGetNextInstance:
		name, address, err := s.handler.GetNextInstance(ctx)
		if err != nil {
			if !errors.Is(err, types.ErrNoInstances) {
				s.logger.Error().Err(err).Msg("GetNextInstance failed")
			}
			metrics.RPCRequestsTotal.WithLabelValues("GetNextInstance", types.StatusError).Inc()
			return &InstanceResponse{}, corrID, nil
		}
		metrics.RPCRequestsTotal.WithLabelValues("GetNextInstance", types.StatusSuccess).Inc()
		return &InstanceResponse{Name: name, Address: address}, corrID, nil

	case apiKeyRegisterInstance:
		req := &RegistrationRequest{}
		if err := req.decode(pd); err != nil {
			return nil, 0, err
		}
		status, detail := s.handler.RegisterInstance(ctx, req.NodeName, req.Hostname, req.Port)
		metrics.RPCRequestsTotal.WithLabelValues("RegisterMOMInstance", status).Inc()
		return &MessageResponse{Status: status, Message: detail}, corrID, nil

	default:
		return nil, 0, fmt.Errorf("unknown api key %d", apiKey)
	}
}
