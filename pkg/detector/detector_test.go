package detector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"

	"github.com/anggasct/signalflow"
)

var approaches = signalflow.MustApproaches(signalflow.DefaultApproaches...)

func TestRandom_CountsWithinBounds(t *testing.T) {
	source := NewRandom(approaches, 20, 42)

	for i := 0; i < 50; i++ {
		counts, err := source.Counts(context.Background())
		require.NoError(t, err)
		require.Len(t, counts, 4)
		for approach, count := range counts {
			assert.True(t, approaches.Contains(approach))
			assert.GreaterOrEqual(t, count, 0)
			assert.LessOrEqual(t, count, 20)
		}
	}
}

func TestRandom_SeedIsReproducible(t *testing.T) {
	first := NewRandom(approaches, 20, 7)
	second := NewRandom(approaches, 20, 7)

	for i := 0; i < 5; i++ {
		a, _ := first.Counts(context.Background())
		b, _ := second.Counts(context.Background())
		assert.Equal(t, a, b)
	}
}

func TestRandom_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRandom(approaches, 20, 1).Counts(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReplay_PlaysCyclesInOrder(t *testing.T) {
	path := writeScript(t, `
cycles:
  - {north: 5, east: 15, south: 2, west: 8}
  - {}
  - {east: 1}
`)

	replay, err := LoadReplay(path)
	require.NoError(t, err)
	ctx := context.Background()

	counts, err := replay.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[signalflow.Approach]int{signalflow.North: 5, signalflow.East: 15, signalflow.South: 2, signalflow.West: 8}, counts)

	_, err = replay.Counts(ctx)
	assert.ErrorIs(t, err, ErrNoCounts)

	counts, err = replay.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[signalflow.East])
	assert.Equal(t, 0, replay.Remaining())

	_, err = replay.Counts(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestReplay_Loops(t *testing.T) {
	replay := NewReplay(Script{
		Loop:   true,
		Cycles: []map[signalflow.Approach]int{{signalflow.North: 1}, {signalflow.North: 2}},
	})

	var seen []int
	for i := 0; i < 5; i++ {
		counts, err := replay.Counts(context.Background())
		require.NoError(t, err)
		seen = append(seen, counts[signalflow.North])
	}
	assert.Equal(t, []int{1, 2, 1, 2, 1}, seen)
}

func TestLoadReplay_Errors(t *testing.T) {
	_, err := LoadReplay(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadReplay(writeScript(t, "cycles: {broken"))
	assert.Error(t, err)

	_, err = LoadReplay(writeScript(t, "loop: true\n"))
	require.Error(t, err)
	assert.True(t, signalflow.IsConfigurationError(err))
}

func TestSubscriber_ReceivesLatestCounts(t *testing.T) {
	addr := "inproc://detector-counts"

	publisher, err := pub.NewSocket()
	require.NoError(t, err)
	defer publisher.Close()
	require.NoError(t, publisher.Listen(addr))

	subscriber, err := NewSubscriber(addr, logr.Discard())
	require.NoError(t, err)
	defer subscriber.Close()

	_, err = subscriber.Counts(context.Background())
	assert.ErrorIs(t, err, ErrNoCounts)

	msg, err := EncodeCounts(map[signalflow.Approach]int{signalflow.North: 4, signalflow.West: 11})
	require.NoError(t, err)

	var counts map[signalflow.Approach]int
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, publisher.Send(msg))
		time.Sleep(10 * time.Millisecond)
		if counts, err = subscriber.Counts(context.Background()); err == nil {
			break
		}
	}

	require.NoError(t, err)
	assert.Equal(t, 4, counts[signalflow.North])
	assert.Equal(t, 11, counts[signalflow.West])
	assert.False(t, subscriber.LastReceived().IsZero())
}

func TestSubscriber_Close(t *testing.T) {
	subscriber, err := NewSubscriber("inproc://detector-close", logr.Discard())
	require.NoError(t, err)

	require.NoError(t, subscriber.Close())
	require.NoError(t, subscriber.Close())

	_, err = subscriber.Counts(context.Background())
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestSubscriber_ReceiveDeadlineSetBeforeReceiving(t *testing.T) {
	subscriber, err := NewSubscriber("inproc://detector-deadline", logr.Discard())
	require.NoError(t, err)

	deadline, err := subscriber.sock.GetOption(mangos.OptionRecvDeadline)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, deadline)

	closed := make(chan error, 1)
	go func() { closed <- subscriber.Close() }()

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked behind the receive goroutine")
	}
}

func TestDecodeCounts(t *testing.T) {
	counts, err := DecodeCounts([]byte(CountsTopic + "null"))
	require.NoError(t, err)
	assert.Empty(t, counts)

	_, err = DecodeCounts([]byte("PHASE:{}"))
	assert.Error(t, err)

	_, err = DecodeCounts([]byte(CountsTopic + "[1,2]"))
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	source, err := New(signalflow.DetectorConfig{Mode: "random", MaxCount: 5, Seed: 3}, approaches, logr.Discard())
	require.NoError(t, err)
	assert.IsType(t, &Random{}, source)

	path := writeScript(t, "cycles:\n  - {north: 1}\n")
	source, err = New(signalflow.DetectorConfig{Mode: "replay", ReplayFile: path}, approaches, logr.Discard())
	require.NoError(t, err)
	assert.IsType(t, &Replay{}, source)

	_, err = New(signalflow.DetectorConfig{Mode: "camera"}, approaches, logr.Discard())
	assert.True(t, signalflow.IsConfigurationError(err))
}
