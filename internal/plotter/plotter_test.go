package plotter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serialplotter/internal/protocol"
)

type readResult struct {
	frame Frame
	err   error
}

// chanReader replays frames pushed on ch and counts concurrent readers.
type chanReader struct {
	ch       chan readResult
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	reads    atomic.Int32
}

func newChanReader(results ...readResult) *chanReader {
	r := &chanReader{ch: make(chan readResult, len(results)+16)}
	for _, res := range results {
		r.ch <- res
	}
	return r
}

func (r *chanReader) ReadFrame(ctx context.Context) (Frame, error) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		m := r.maxSeen.Load()
		if n <= m || r.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	r.reads.Add(1)
	select {
	case res := <-r.ch:
		return res.frame, res.err
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func text(s string) readResult { return readResult{frame: Frame{Kind: FrameText, Payload: []byte(s)}} }

// recordingWriter stores frames and fails the test on overlapping writes.
type recordingWriter struct {
	mu       sync.Mutex
	frames   []string
	inFlight atomic.Int32
	overlap  atomic.Bool
	err      error
}

func (w *recordingWriter) WriteText(ctx context.Context, payload []byte) error {
	if w.inFlight.Add(1) > 1 {
		w.overlap.Store(true)
	}
	defer w.inFlight.Add(-1)
	time.Sleep(time.Millisecond)
	if w.err != nil {
		return w.err
	}
	w.mu.Lock()
	w.frames = append(w.frames, string(payload))
	w.mu.Unlock()
	return nil
}

func TestServerYieldsCommandsInOrder(t *testing.T) {
	r := newChanReader(
		text(`{"command":"SEND_MESSAGE","data":"hi"}`),
		text(`{"command":"CHANGE_SETTINGS","data":{"monitorUISettings":{"lineEnding":"\n"}}}`),
		readResult{frame: Frame{Kind: FrameClose, CloseCode: 1000}},
	)
	srv := NewServer(r)
	ctx := context.Background()

	cmd, err := srv.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.SendMessageCommand{Message: "hi"}, cmd)

	cmd, err = srv.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.ChangeSettingsCommand{Settings: protocol.MonitorSettings{
		MonitorUISettings: &protocol.MonitorModelState{LineEnding: protocol.Ptr(protocol.NewLine)},
	}}, cmd)

	_, err = srv.Next(ctx)
	assert.Equal(t, io.EOF, err)
	assert.True(t, srv.Done())
}

func TestServerStaysEndedAfterClose(t *testing.T) {
	r := newChanReader(
		readResult{frame: Frame{Kind: FrameClose}},
		text(`{"command":"SEND_MESSAGE","data":"late"}`),
	)
	srv := NewServer(r)

	for i := 0; i < 3; i++ {
		cmd, err := srv.Next(context.Background())
		assert.Nil(t, cmd)
		assert.Equal(t, io.EOF, err)
	}
	assert.Equal(t, int32(1), r.reads.Load())
}

func TestServerPerFrameErrorsDoNotEndStream(t *testing.T) {
	boom := errors.New("boom")
	r := newChanReader(
		readResult{frame: Frame{Kind: FrameBinary, Payload: []byte{1, 2}}},
		text(`{"command":"FOO","data":{}}`),
		text(`{not json`),
		readResult{err: boom},
		readResult{frame: Frame{Kind: FrameControl}},
		text(`{"command":"SEND_MESSAGE","data":"ok"}`),
	)
	srv := NewServer(r)
	ctx := context.Background()

	_, err := srv.Next(ctx)
	assert.ErrorIs(t, err, ErrNonTextMessage)

	_, err = srv.Next(ctx)
	var unknown *protocol.UnknownCommandError
	assert.ErrorAs(t, err, &unknown)

	_, err = srv.Next(ctx)
	var decodeErr *protocol.DecodeError
	assert.ErrorAs(t, err, &decodeErr)

	_, err = srv.Next(ctx)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsTerminal(err))

	// control frames are skipped
	cmd, err := srv.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.SendMessageCommand{Message: "ok"}, cmd)
	assert.False(t, srv.Done())
}

func TestServerCommandsSequence(t *testing.T) {
	r := newChanReader(
		text(`{"command":"SEND_MESSAGE","data":"a"}`),
		readResult{frame: Frame{Kind: FrameBinary}},
		text(`{"command":"SEND_MESSAGE","data":"b"}`),
		readResult{frame: Frame{Kind: FrameClose}},
	)
	srv := NewServer(r)

	var msgs []string
	var errs []error
	for cmd, err := range srv.Commands(context.Background()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		msgs = append(msgs, cmd.(protocol.SendMessageCommand).Message)
	}
	assert.Equal(t, []string{"a", "b"}, msgs)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrNonTextMessage)

	// exhausted sequences stay exhausted
	for range srv.Commands(context.Background()) {
		t.Fatal("unexpected item after close")
	}
}

func TestServerCommandsStopsOnBreak(t *testing.T) {
	r := newChanReader(
		text(`{"command":"SEND_MESSAGE","data":"a"}`),
		text(`{"command":"SEND_MESSAGE","data":"b"}`),
	)
	srv := NewServer(r)
	for cmd, err := range srv.Commands(context.Background()) {
		require.NoError(t, err)
		assert.Equal(t, protocol.SendMessageCommand{Message: "a"}, cmd)
		break
	}
	cmd, err := srv.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.SendMessageCommand{Message: "b"}, cmd)
}

func TestServerSerializesConcurrentReaders(t *testing.T) {
	const n = 20
	r := newChanReader()
	srv := NewServer(r)

	var wg sync.WaitGroup
	got := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cmd, err := srv.Next(context.Background())
			if assert.NoError(t, err) {
				got <- cmd.(protocol.SendMessageCommand).Message
			}
		}()
	}
	for i := 0; i < n; i++ {
		r.ch <- text(fmt.Sprintf(`{"command":"SEND_MESSAGE","data":"%d"}`, i))
	}
	wg.Wait()
	close(got)

	seen := map[string]bool{}
	for m := range got {
		seen[m] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, int32(1), r.maxSeen.Load())
}

func TestServerQueuedCallerLeavesOnCancel(t *testing.T) {
	r := newChanReader()
	srv := NewServer(r)

	blocked := make(chan error, 1)
	go func() {
		_, err := srv.Next(context.Background())
		blocked <- err
	}()
	require.Eventually(t, func() bool { return r.inFlight.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := srv.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	r.ch <- text(`{"command":"SEND_MESSAGE","data":"x"}`)
	assert.NoError(t, <-blocked)
}

func TestClientSendWritesBareArray(t *testing.T) {
	w := &recordingWriter{}
	c := NewClient(w)

	require.NoError(t, c.Send(context.Background(), []string{"A:1\n", "B:2\n"}))
	require.NoError(t, c.Send(context.Background(), nil))
	assert.Equal(t, []string{`["A:1\n","B:2\n"]`, `[]`}, w.frames)
}

func TestClientSetMonitorSettings(t *testing.T) {
	w := &recordingWriter{}
	c := NewClient(w)

	err := c.SetMonitorSettings(context.Background(), protocol.MonitorSettings{
		MonitorUISettings: &protocol.MonitorModelState{Connected: protocol.Ptr(true)},
	})
	require.NoError(t, err)
	require.Len(t, w.frames, 1)
	assert.Equal(t,
		`{"command":"ON_SETTINGS_DID_CHANGE","data":{"monitorUISettings":{"connected":true,"generate":false}}}`,
		w.frames[0])
}

func TestClientConcurrentSendsAreSerialized(t *testing.T) {
	const n = 25
	w := &recordingWriter{}
	c := NewClient(w)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := c.SetMonitorSettings(context.Background(), protocol.MonitorSettings{
				MonitorUISettings: &protocol.MonitorModelState{SerialPort: protocol.Ptr(fmt.Sprintf("/dev/tty%d", i))},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.False(t, w.overlap.Load(), "writes overlapped")
	require.Len(t, w.frames, n)
	ports := map[string]bool{}
	for _, f := range w.frames {
		cmd, err := protocol.DecodeMiddleware([]byte(f))
		require.NoError(t, err)
		ports[*cmd.Settings.MonitorUISettings.SerialPort] = true
	}
	assert.Len(t, ports, n)
}

func TestClientWrapsTransportErrors(t *testing.T) {
	w := &recordingWriter{err: fmt.Errorf("write: %w", net.ErrClosed)}
	c := NewClient(w)

	err := c.Send(context.Background(), []string{"A:1\n"})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "send data", te.Op)
	assert.True(t, IsTerminal(err))
	assert.Empty(t, w.frames)
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(nil))
	assert.False(t, IsTerminal(ErrNonTextMessage))
	assert.False(t, IsTerminal(&protocol.DecodeError{Err: errors.New("x")}))
	assert.False(t, IsTerminal(io.EOF))

	assert.True(t, IsTerminal(&TransportError{Op: "read frame", Err: net.ErrClosed}))
	assert.True(t, IsTerminal(&TransportError{Op: "read frame", Err: io.EOF}))
	assert.True(t, IsTerminal(&TransportError{Op: "read frame", Err: syscall.ECONNRESET}))
	assert.True(t, IsTerminal(&TransportError{Op: "dial", Err: &net.DNSError{Err: "no such host", Name: "plotter.invalid"}}))
}
