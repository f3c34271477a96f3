package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/sub"

	// Register all transports
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/anggasct/signalflow"
	logutil "github.com/anggasct/signalflow/pkg/logging"
)

// CountsTopic prefixes count messages published by the vision pipeline
const CountsTopic = "COUNTS:"

// Subscriber receives per-approach counts published by the vision pipeline.
// Each Counts call returns the latest message received since the previous
// call; a cycle without a new message is a gap.
type Subscriber struct {
	sock   mangos.Socket
	logger logr.Logger

	mutex    sync.Mutex
	latest   map[signalflow.Approach]int
	received time.Time
	closed   bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSubscriber dials the vision pipeline publisher at addr
func NewSubscriber(addr string, logger logr.Logger) (*Subscriber, error) {
	sock, err := sub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create sub socket: %w", err)
	}

	// dial asynchronously so the pipeline may come up after the controller
	if err := sock.DialOptions(addr, map[string]interface{}{mangos.OptionDialAsynch: true}); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	if err := sock.SetOption(mangos.OptionSubscribe, []byte(CountsTopic)); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	// a receive deadline lets the receive goroutine observe stopCh
	if err := sock.SetOption(mangos.OptionRecvDeadline, 100*time.Millisecond); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to set receive deadline: %w", err)
	}

	s := &Subscriber{
		sock:   sock,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.receive()

	logger.Info("Detector subscribed", "address", addr)
	return s, nil
}

func (s *Subscriber) receive() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		msg, err := s.sock.Recv()
		if err != nil {
			continue
		}

		counts, err := DecodeCounts(msg)
		if err != nil {
			s.logger.Error(err, "Ignoring malformed counts message")
			continue
		}

		s.mutex.Lock()
		s.latest = counts
		s.received = time.Now()
		s.mutex.Unlock()

		s.logger.V(logutil.TRACE).Info("Counts received", "counts", counts)
	}
}

// Counts returns the latest counts and consumes them
func (s *Subscriber) Counts(ctx context.Context) (map[signalflow.Approach]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.latest == nil {
		return nil, ErrNoCounts
	}

	counts := s.latest
	s.latest = nil
	return counts, nil
}

// LastReceived returns when the last counts message arrived
func (s *Subscriber) LastReceived() time.Time {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.received
}

// Close stops the receiver and closes the socket
func (s *Subscriber) Close() error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}
	s.closed = true
	s.mutex.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	return s.sock.Close()
}

// EncodeCounts builds a counts message as published by the vision pipeline
func EncodeCounts(counts map[signalflow.Approach]int) ([]byte, error) {
	data, err := json.Marshal(counts)
	if err != nil {
		return nil, err
	}
	return append([]byte(CountsTopic), data...), nil
}

// DecodeCounts parses a counts message
func DecodeCounts(msg []byte) (map[signalflow.Approach]int, error) {
	if !bytes.HasPrefix(msg, []byte(CountsTopic)) {
		return nil, fmt.Errorf("message without %s prefix", CountsTopic)
	}

	var counts map[signalflow.Approach]int
	if err := json.Unmarshal(msg[len(CountsTopic):], &counts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal counts: %w", err)
	}
	if counts == nil {
		counts = make(map[signalflow.Approach]int)
	}
	return counts, nil
}
