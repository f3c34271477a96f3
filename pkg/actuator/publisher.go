// Package actuator forwards signal phase changes to the signal head controllers
// over a mangos PUB socket
package actuator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"

	// Register all transports
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/anggasct/signalflow"
	logutil "github.com/anggasct/signalflow/pkg/logging"
)

// Topic prefixes. Subscribers pass them to mangos.OptionSubscribe.
const (
	PhaseTopic = "PHASE:"
	ResetTopic = "RESET:"
)

// Publisher is an observer that publishes every phase change as JSON.
// Sends never block the signal machine; a subscriber that is not keeping up
// misses messages.
type Publisher struct {
	sock   mangos.Socket
	logger logr.Logger

	mutex  sync.Mutex
	closed bool
}

// NewPublisher creates a publisher listening on addr, e.g. tcp://0.0.0.0:40899
func NewPublisher(addr string, logger logr.Logger) (*Publisher, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create pub socket: %w", err)
	}

	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	logger.Info("Actuator publisher listening", "address", addr)
	return &Publisher{sock: sock, logger: logger}, nil
}

// OnPhaseChange publishes the change under PhaseTopic
func (p *Publisher) OnPhaseChange(change signalflow.PhaseChange) {
	data, err := json.Marshal(change)
	if err != nil {
		p.logger.Error(err, "Failed to marshal phase change")
		return
	}
	p.send(PhaseTopic, data)
}

// OnDecisionApplied does nothing; the phase changes carry everything the heads need
func (p *Publisher) OnDecisionApplied(result *signalflow.ApplyResult) {}

// OnMachineStarted does nothing; the startup phase change is published
func (p *Publisher) OnMachineStarted(state signalflow.IntersectionState) {}

// OnMachineReset publishes the all-red phases under ResetTopic
func (p *Publisher) OnMachineReset(state signalflow.IntersectionState) {
	data, err := json.Marshal(state.Phases)
	if err != nil {
		p.logger.Error(err, "Failed to marshal reset state")
		return
	}
	p.send(ResetTopic, data)
}

// OnError does nothing
func (p *Publisher) OnError(err error) {}

func (p *Publisher) send(topic string, data []byte) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed {
		return
	}

	msg := append([]byte(topic), data...)
	if err := p.sock.Send(msg); err != nil {
		p.logger.Error(err, "Failed to publish", "topic", topic)
		return
	}
	p.logger.V(logutil.TRACE).Info("Published", "topic", topic, "bytes", len(msg))
}

// Close closes the socket. Later notifications are dropped.
func (p *Publisher) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.sock.Close()
}

// DecodePhaseChange parses a message published under PhaseTopic
func DecodePhaseChange(msg []byte) (signalflow.PhaseChange, error) {
	var change signalflow.PhaseChange
	if !bytes.HasPrefix(msg, []byte(PhaseTopic)) {
		return change, fmt.Errorf("message without %s prefix", PhaseTopic)
	}
	if err := json.Unmarshal(msg[len(PhaseTopic):], &change); err != nil {
		return change, fmt.Errorf("failed to unmarshal phase change: %w", err)
	}
	return change, nil
}

var _ signalflow.ExtendedObserver = (*Publisher)(nil)
