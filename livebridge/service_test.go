package livebridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.dubash.app/dubash/audiocapture"
	"go.dubash.app/dubash/audiocapture/mock"
	"go.dubash.app/dubash/internal/types"
	"go.dubash.app/dubash/livebridge/gemini"
	"go.dubash.app/dubash/playback"
)

type fakeBroker struct {
	grant    types.Grant
	err      error
	requests []types.SessionRequest
}

func (b *fakeBroker) Mint(ctx context.Context, req types.SessionRequest) (types.Grant, error) {
	b.requests = append(b.requests, req)
	if b.err != nil {
		return types.Grant{}, b.err
	}
	return b.grant, nil
}

type fakeConn struct {
	mu          sync.Mutex
	sent        []types.WireFrame
	sendErr     error
	disconnects int
}

func (c *fakeConn) SendAudio(f types.WireFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, f)
	return nil
}

func (c *fakeConn) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
}

func (c *fakeConn) sentFrames() []types.WireFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.WireFrame(nil), c.sent...)
}

func (c *fakeConn) disconnected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

type fakeSink struct {
	mu     sync.Mutex
	plays  int
	closed int
}

func (f *fakeSink) PlayAt(pcm []byte, rate int, at time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

type fakeArchive struct {
	puts map[string][]types.ConversationTurn
}

func (a *fakeArchive) Put(sessionID string, turn types.ConversationTurn) error {
	if a.puts == nil {
		a.puts = make(map[string][]types.ConversationTurn)
	}
	a.puts[sessionID] = append(a.puts[sessionID], turn)
	return nil
}

type fixture struct {
	svc      *Service
	broker   *fakeBroker
	capture  *mock.Capturer
	sink     *fakeSink
	conn     *fakeConn
	dialed   []gemini.Params
	handlers gemini.Handlers
	dialErr  error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		broker:  &fakeBroker{grant: types.Grant{Token: "tok", Model: "live-model"}},
		capture: mock.New(48000),
		sink:    &fakeSink{},
		conn:    &fakeConn{},
	}
	svc, err := NewService(Options{
		Broker:   f.broker,
		Capture:  f.capture,
		Playback: playback.NewScheduler(func(rate int) (playback.Sink, error) { return f.sink, nil }),
		Dial: func(ctx context.Context, p gemini.Params, h gemini.Handlers) (Conn, error) {
			f.dialed = append(f.dialed, p)
			f.handlers = h
			if f.dialErr != nil {
				return nil, f.dialErr
			}
			return f.conn, nil
		},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	if err := f.svc.Start(context.Background(), "Jaipur", "Hindi", types.DirectionOutgoing); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestStartWiresCaptureToAdapter(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	st := f.svc.Status()
	if !st.Active || st.Connecting || st.Err != "" {
		t.Fatalf("status = %+v, want active", st)
	}

	if len(f.broker.requests) != 1 || f.broker.requests[0].Location != "Jaipur" {
		t.Fatalf("broker requests = %+v", f.broker.requests)
	}
	if len(f.dialed) != 1 || f.dialed[0].Token != "tok" || f.dialed[0].Model != "live-model" {
		t.Fatalf("dial params = %+v", f.dialed)
	}
	if !strings.Contains(f.dialed[0].SystemInstruction, "Hindi") {
		t.Error("system instruction does not mention the target language")
	}
	if !f.capture.Running() {
		t.Error("capture not running after Start")
	}

	// Captured frames are resampled to the wire rate and forwarded.
	f.capture.Push(make([]float32, 4800))
	frames := f.conn.sentFrames()
	if len(frames) != 1 {
		t.Fatalf("frames sent = %d, want 1", len(frames))
	}
	if frames[0].SampleRate != 16000 {
		t.Errorf("wire rate = %d, want 16000", frames[0].SampleRate)
	}
	if len(frames[0].Data) != 1600*2 {
		t.Errorf("wire payload = %d bytes, want %d", len(frames[0].Data), 1600*2)
	}
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	// A mocked output transcription arrives from the remote service.
	f.handlers.Transcript(types.DirectionIncoming, "नमस्ते")

	st := f.svc.Status()
	if len(st.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(st.Messages))
	}
	if st.Messages[0].Role != types.RoleAssistant || st.Messages[0].Content != "नमस्ते" {
		t.Errorf("turn = %+v", st.Messages[0])
	}

	// Synthesized audio is scheduled for playback.
	f.handlers.Audio(make([]byte, 480), 24000)
	f.sink.mu.Lock()
	plays := f.sink.plays
	f.sink.mu.Unlock()
	if plays != 1 {
		t.Errorf("buffers scheduled = %d, want 1", plays)
	}

	// The remote ends the session; everything is released without a Stop.
	f.handlers.Closed(1000, "server going away")

	st = f.svc.Status()
	if st.Active {
		t.Error("still active after remote close")
	}
	if f.capture.Running() {
		t.Error("capture still running after remote close")
	}
	// Already-received messages stay visible.
	if len(st.Messages) != 1 {
		t.Errorf("messages after close = %d, want 1", len(st.Messages))
	}
}

func TestTranscriptAggregationAcrossDirections(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.handlers.Transcript(types.DirectionOutgoing, "how much")
	f.handlers.Transcript(types.DirectionOutgoing, "for this")
	f.handlers.Transcript(types.DirectionIncoming, "यह कितने का है")
	f.handlers.Transcript(types.DirectionOutgoing, "okay")
	f.handlers.Transcript(types.DirectionIncoming, "   ") // ignored

	msgs := f.svc.Status().Messages
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if msgs[0].Content != "how much for this" {
		t.Errorf("turn 0 = %q", msgs[0].Content)
	}
}

func TestStartFailsWhenBrokerRefuses(t *testing.T) {
	f := newFixture(t)
	f.broker.err = errors.New("no credential for you")

	err := f.svc.Start(context.Background(), "Jaipur", "Hindi", types.DirectionOutgoing)
	if err == nil {
		t.Fatal("Start succeeded with failing broker")
	}

	st := f.svc.Status()
	if st.Active || st.Connecting {
		t.Errorf("status = %+v, want inactive", st)
	}
	if st.Err == "" {
		t.Error("no error surfaced to the UI")
	}
	if f.capture.Starts() != 0 {
		t.Error("capture was started despite broker failure")
	}
}

func TestStartFailsWhenDialFails(t *testing.T) {
	f := newFixture(t)
	f.dialErr = errors.New("handshake refused")

	if err := f.svc.Start(context.Background(), "Jaipur", "Hindi", types.DirectionOutgoing); err == nil {
		t.Fatal("Start succeeded with failing dial")
	}

	st := f.svc.Status()
	if st.Active || st.Connecting || st.Err == "" {
		t.Errorf("status = %+v", st)
	}
	if f.capture.Starts() != 0 {
		t.Error("capture was started despite dial failure")
	}
}

type failingCapturer struct{ rate int }

func (c *failingCapturer) Start(func([]float32)) error { return audiocapture.ErrPermission }
func (c *failingCapturer) Stop() error                 { return nil }
func (c *failingCapturer) SampleRate() int             { return c.rate }

func TestStartFailureDisconnectsAdapter(t *testing.T) {
	f := newFixture(t)
	conn := f.conn
	svc, err := NewService(Options{
		Broker:   f.broker,
		Capture:  &failingCapturer{rate: 48000},
		Playback: playback.NewScheduler(func(rate int) (playback.Sink, error) { return f.sink, nil }),
		Dial: func(ctx context.Context, p gemini.Params, h gemini.Handlers) (Conn, error) {
			return conn, nil
		},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	err = svc.Start(context.Background(), "Jaipur", "Hindi", types.DirectionOutgoing)
	if !errors.Is(err, audiocapture.ErrPermission) {
		t.Fatalf("Start = %v, want ErrPermission", err)
	}

	// No connected adapter may survive a failed start.
	if conn.disconnected() == 0 {
		t.Error("adapter not disconnected after capture failure")
	}
	if st := svc.Status(); st.Active || st.Connecting {
		t.Errorf("status = %+v", st)
	}
}

func TestStopIdempotent(t *testing.T) {
	f := newFixture(t)

	// Never started: must be a no-op.
	f.svc.Stop()
	f.svc.Stop()
	if st := f.svc.Status(); st.Active || st.Err != "" {
		t.Errorf("status = %+v", st)
	}

	f.start(t)
	f.svc.Stop()
	f.svc.Stop()

	if f.conn.disconnected() != 1 {
		t.Errorf("disconnects = %d, want 1", f.conn.disconnected())
	}
	if f.capture.Running() {
		t.Error("capture still running after Stop")
	}
}

func TestConcurrentStartGuard(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	if err := f.svc.Start(context.Background(), "Delhi", "Hindi", types.DirectionOutgoing); err == nil {
		t.Fatal("second Start succeeded while session active")
	}
	if len(f.broker.requests) != 1 {
		t.Errorf("broker called %d times, want 1", len(f.broker.requests))
	}
}

func TestStopDuringConnectDiscardsStaleAdapter(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	started := make(chan struct{})
	conn := f.conn

	svc, err := NewService(Options{
		Broker:   f.broker,
		Capture:  f.capture,
		Playback: playback.NewScheduler(func(rate int) (playback.Sink, error) { return f.sink, nil }),
		Dial: func(ctx context.Context, p gemini.Params, h gemini.Handlers) (Conn, error) {
			close(started)
			<-release
			return conn, nil
		},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Start(context.Background(), "Jaipur", "Hindi", types.DirectionOutgoing)
	}()

	<-started
	svc.Stop()
	close(release)

	if err := <-errCh; err == nil {
		t.Fatal("superseded Start reported success")
	}
	if conn.disconnected() == 0 {
		t.Error("stale adapter was not disconnected on resolution")
	}
	if f.capture.Starts() != 0 {
		t.Error("capture started for a superseded session")
	}
}

// gateCapturer blocks Start until the test releases it, so a racing Stop
// can land while capture is still coming up.
type gateCapturer struct {
	*mock.Capturer
	entered chan struct{}
	release chan struct{}
}

func (c *gateCapturer) Start(handler func([]float32)) error {
	close(c.entered)
	<-c.release
	return c.Capturer.Start(handler)
}

func TestStopDuringCaptureStartReleasesCapture(t *testing.T) {
	f := newFixture(t)
	capture := &gateCapturer{
		Capturer: mock.New(48000),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	conn := f.conn

	svc, err := NewService(Options{
		Broker:   f.broker,
		Capture:  capture,
		Playback: playback.NewScheduler(func(rate int) (playback.Sink, error) { return f.sink, nil }),
		Dial: func(ctx context.Context, p gemini.Params, h gemini.Handlers) (Conn, error) {
			return conn, nil
		},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Start(context.Background(), "Jaipur", "Hindi", types.DirectionOutgoing)
	}()

	<-capture.entered
	svc.Stop()
	close(capture.release)

	if err := <-errCh; err == nil {
		t.Fatal("superseded Start reported success")
	}
	// The racing Stop could not see this capture; the superseded Start
	// must release it itself.
	if capture.Running() {
		t.Error("capture left running after superseded Start")
	}
	if conn.disconnected() == 0 {
		t.Error("adapter not disconnected")
	}
	if st := svc.Status(); st.Active || st.Connecting {
		t.Errorf("status = %+v", st)
	}
}

func TestPlaybackRateReachesAdapter(t *testing.T) {
	f := newFixture(t)
	var dialed []gemini.Params

	svc, err := NewService(Options{
		Broker:   f.broker,
		Capture:  f.capture,
		Playback: playback.NewScheduler(func(rate int) (playback.Sink, error) { return f.sink, nil }),
		Dial: func(ctx context.Context, p gemini.Params, h gemini.Handlers) (Conn, error) {
			dialed = append(dialed, p)
			return f.conn, nil
		},
		PlaybackRate: 48000,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc.Start(context.Background(), "Jaipur", "Hindi", types.DirectionOutgoing); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if len(dialed) != 1 || dialed[0].OutputRate != 48000 {
		t.Fatalf("dial params = %+v, want OutputRate 48000", dialed)
	}
}

func TestClearMessages(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.handlers.Transcript(types.DirectionIncoming, "text")

	f.svc.ClearMessages()

	if got := f.svc.Status().Messages; len(got) != 0 {
		t.Errorf("messages = %d, want 0", len(got))
	}

	f.handlers.Transcript(types.DirectionIncoming, "fresh")
	msgs := f.svc.Status().Messages
	if len(msgs) != 1 || msgs[0].Seq != 1 {
		t.Errorf("numbering did not restart: %+v", msgs)
	}
}

func TestTurnsAreArchived(t *testing.T) {
	f := newFixture(t)
	archive := &fakeArchive{}

	svc, err := NewService(Options{
		Broker:   f.broker,
		Capture:  f.capture,
		Playback: playback.NewScheduler(func(rate int) (playback.Sink, error) { return f.sink, nil }),
		Dial: func(ctx context.Context, p gemini.Params, h gemini.Handlers) (Conn, error) {
			f.handlers = h
			return f.conn, nil
		},
		Archive: archive,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc.Start(context.Background(), "Jaipur", "Hindi", types.DirectionOutgoing); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.handlers.Transcript(types.DirectionOutgoing, "hello")
	f.handlers.Transcript(types.DirectionOutgoing, "again")

	if len(archive.puts) != 1 {
		t.Fatalf("sessions archived = %d, want 1", len(archive.puts))
	}
	for _, turns := range archive.puts {
		last := turns[len(turns)-1]
		if last.Content != "hello again" {
			t.Errorf("archived content = %q, want %q", last.Content, "hello again")
		}
	}
}
