package detection

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/isafetyrobo/safety-agent/internal/logger"
	"github.com/isafetyrobo/safety-agent/pkg/logstore"
	"github.com/isafetyrobo/safety-agent/pkg/metrics"
)

const DefaultReconnectDelay = 5 * time.Second

type Options struct {
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer
	Metrics        *metrics.Metrics
}

// Stream multiplexes the single detection WebSocket to per-instance
// subscribers. The connection is opened by the first subscription, reopened
// after a fixed delay while subscribers remain, and closed when the last one
// leaves. Accepted frames are appended to the log store.
type Stream struct {
	url            string
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	store          logstore.LogStore
	logger         *logger.Logger
	metrics        *metrics.Metrics

	mu        sync.Mutex
	conn      *websocket.Conn
	stop      chan struct{}
	subs      map[string]map[int]chan *Frame
	nextSubID int
	closed    bool
}

func New(url string, store logstore.LogStore, l *logger.Logger, opts Options) *Stream {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}

	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: 10 * time.Second,
		}
	}

	return &Stream{
		url:            url,
		dialer:         opts.Dialer,
		reconnectDelay: opts.ReconnectDelay,
		store:          store,
		logger:         l,
		metrics:        opts.Metrics,
		subs:           make(map[string]map[int]chan *Frame),
	}
}

// Subscribe returns a channel that receives the frames of one instance. A
// subscriber that does not keep up misses frames; the log store still gets
// every one. The returned function unsubscribes and closes the channel.
func (s *Stream) Subscribe(instanceID string) (<-chan *Frame, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan *Frame, 16)

	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++

	if s.subs[instanceID] == nil {
		s.subs[instanceID] = make(map[int]chan *Frame)
	}

	s.subs[instanceID][id] = ch

	if s.stop == nil {
		s.stop = make(chan struct{})
		go s.run(s.stop)
	}

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			s.unsubscribe(instanceID, id)
		})
	}
}

func (s *Stream) unsubscribe(instanceID string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subs[instanceID][id]; ok {
		delete(s.subs[instanceID], id)
		close(ch)
	}

	if len(s.subs[instanceID]) == 0 {
		delete(s.subs, instanceID)
	}

	if len(s.subs) == 0 {
		s.disconnectLocked()
	}
}

// Connected reports whether the shared connection is currently open.
func (s *Stream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn != nil
}

// Close drops every subscriber and the connection. The stream cannot be
// reused afterwards.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	for instanceID, subs := range s.subs {
		for _, ch := range subs {
			close(ch)
		}

		delete(s.subs, instanceID)
	}

	s.disconnectLocked()
}

func (s *Stream) disconnectLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Stream) run(stop chan struct{}) {
	for {
		conn, _, err := s.dialer.Dial(s.url, nil)

		if err != nil {
			s.logger.Error().Caller().Msgf("error connecting to detection stream %s: %v", s.url, err)

			if !s.wait(stop) {
				return
			}

			continue
		}

		s.mu.Lock()

		if isClosed(stop) {
			s.mu.Unlock()
			conn.Close()

			return
		}

		s.conn = conn
		s.mu.Unlock()

		s.logger.Info().Caller().Msgf("connected to detection stream %s", s.url)

		err = s.read(conn)

		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()

		conn.Close()

		if isClosed(stop) {
			return
		}

		s.logger.Error().Caller().Msgf("detection stream disconnected, reconnecting in %s: %v", s.reconnectDelay, err)

		if !s.wait(stop) {
			return
		}
	}
}

func (s *Stream) read(conn *websocket.Conn) error {
	for {
		_, msg, err := conn.ReadMessage()

		if err != nil {
			return err
		}

		frame, err := ParseFrame(msg, time.Now())

		if err != nil {
			s.logger.Warn().Caller().Msgf("skipping detection frame: %v", err)
			s.metrics.ObserveFrame("invalid")

			continue
		}

		s.dispatch(frame, msg)
	}
}

func (s *Stream) dispatch(frame *Frame, raw []byte) {
	s.mu.Lock()
	_, wanted := s.subs[frame.InstanceID]
	s.mu.Unlock()

	if !wanted {
		s.metrics.ObserveFrame("ignored")
		return
	}

	if s.store != nil {
		labels := map[string]string{logstore.InstanceLabel: frame.InstanceID}

		if err := s.store.Push(labels, string(raw), frame.Timestamp); err != nil {
			s.logger.Error().Caller().Msgf("error storing detection frame for instance %s: %v", frame.InstanceID, err)
		}
	}

	s.metrics.ObserveFrame("accepted")

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs[frame.InstanceID] {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (s *Stream) wait(stop chan struct{}) bool {
	timer := time.NewTimer(s.reconnectDelay)
	defer timer.Stop()

	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}

func isClosed(stop chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
