package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SMCFlow/internal/domain/models"
	"SMCFlow/internal/domain/repository"
	mid "SMCFlow/internal/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStream hands out fresh channels on every Read, the way the WebSocket
// client does after a reconnect.
type stubStream struct {
	mu         sync.Mutex
	cnCh       chan *models.Candle
	errCh      chan error
	sessions   int
	reconnects int
	failOnce   bool
	connected  bool
}

func (s *stubStream) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *stubStream) Subscribe(context.Context) error { return nil }

func (s *stubStream) Read(context.Context) (<-chan *models.Candle, <-chan error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions++
	s.cnCh = make(chan *models.Candle, 8)
	s.errCh = make(chan error, 1)
	return s.cnCh, s.errCh
}

func (s *stubStream) Reconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	if s.failOnce && s.reconnects == 1 {
		return errors.New("dial refused")
	}
	s.connected = true
	return nil
}

func (s *stubStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *stubStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *stubStream) send(c *models.Candle) {
	s.mu.Lock()
	ch := s.cnCh
	s.mu.Unlock()
	ch <- c
}

// fail delivers a read error and closes both session channels, mirroring the
// WebSocket read loop's shutdown on error.
func (s *stubStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errCh <- err
	close(s.errCh)
	close(s.cnCh)
	s.connected = false
}

func (s *stubStream) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

func (s *stubStream) reconnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

type recordingProc struct {
	mu      sync.Mutex
	candles []*models.Candle
}

func (p *recordingProc) Process(_ context.Context, c *models.Candle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candles = append(p.candles, c)
	return nil
}

func (p *recordingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.candles)
}

func TestCollectorResumesAfterStreamFailure(t *testing.T) {
	stream := &stubStream{failOnce: true}
	proc := &recordingProc{}
	pipe := mid.NewIngestPipeline(proc, repository.NopMetrics{})
	col := NewCandleCollector(stream, repository.NopMetrics{}, pipe)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, col.Start(ctx))
	require.Equal(t, 1, stream.sessionCount())

	stream.send(engineCandle(0, 1.00, 1.005, 0.995, 1.00))
	require.Eventually(t, func() bool {
		return proc.count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	stream.fail(errors.New("unexpected EOF"))

	// the first reconnect attempt is refused; the collector must retry and
	// then read from the fresh session, not the dead channels
	require.Eventually(t, func() bool {
		return stream.sessionCount() == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, stream.reconnectCount(), 2)

	stream.send(engineCandle(1, 1.00, 1.05, 0.995, 1.04))
	require.Eventually(t, func() bool {
		return proc.count() == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, col.IsConnected())
}
