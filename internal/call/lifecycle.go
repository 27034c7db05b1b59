// Package call orchestrates a single live call: device acquisition,
// transport session, the capture and playback pipelines, and the teardown
// sequence that ends with exactly one history flush.
package call

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxwire/voxwire/internal/history"
	"github.com/voxwire/voxwire/internal/observe"
	"github.com/voxwire/voxwire/internal/segments"
	"github.com/voxwire/voxwire/pkg/audio"
	"github.com/voxwire/voxwire/pkg/audio/capture"
	"github.com/voxwire/voxwire/pkg/audio/device"
	"github.com/voxwire/voxwire/pkg/audio/playback"
	"github.com/voxwire/voxwire/pkg/transport"
	"github.com/voxwire/voxwire/pkg/types"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultGraceWindow  = 15 * time.Second
	defaultCaptureBatch = 256
	defaultPullLen      = 1024
	flushTimeout        = 10 * time.Second

	// markQueueBuffer bounds pending chunk-end acknowledgements between the
	// device pull context and the mark sender goroutine.
	markQueueBuffer = 256
)

// DialFunc establishes a transport session for the given call ID. The
// lifecycle is transport-agnostic; main wires in the socket or peer
// variant.
type DialFunc func(ctx context.Context, callID string) (transport.Transport, error)

// Config holds all dependencies for a [Lifecycle].
type Config struct {
	Devices  device.Opener
	History  *history.Client
	Dial     DialFunc
	AgentID  string
	UserInfo map[string]any

	// SampleRate is the session PCM rate (8000 or 24000).
	SampleRate int
	// FrameSize is samples per outbound frame. Zero means the capture
	// default.
	FrameSize int

	// PollInterval and GraceWindow tune the drain wait after an orderly
	// hang-up. Zero values take the defaults; tests shrink them.
	PollInterval time.Duration
	GraceWindow  time.Duration

	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// Lifecycle manages one call at a time. All exported methods are safe for
// concurrent use.
type Lifecycle struct {
	cfg Config

	mu          sync.Mutex
	state       State
	callID      string
	connectedAt time.Time
	endReason   types.EndReason
	trans       transport.Transport
	buffer      *playback.Buffer
	pump        *capture.Pump
	timeline    *segments.Synchronizer
	cancel      context.CancelFunc

	// closers are called in reverse order during teardown.
	closers []func() error

	// force short-circuits the grace drain when the remote side is gone.
	force     chan struct{}
	forceOnce sync.Once

	flushOnce sync.Once
	done      chan struct{}
}

// New creates an idle Lifecycle. Zero-value tuning fields in cfg are
// filled with defaults.
func New(cfg Config) *Lifecycle {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = defaultGraceWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Lifecycle{
		cfg:      cfg,
		state:    StateIdle,
		timeline: segments.NewSynchronizer(),
		force:    make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Dial places the call: acquires audio devices, registers the call with
// the platform, establishes the transport session and starts the audio
// pipelines. Returns an error if a call is already in progress. On setup
// failure everything acquired so far is released and the lifecycle ends:
// each Lifecycle carries at most one call attempt.
func (l *Lifecycle) Dial(ctx context.Context) error {
	l.mu.Lock()
	if l.state != StateIdle {
		state := l.state
		l.mu.Unlock()
		return fmt.Errorf("call: already %s", state)
	}
	l.state = StateDialing
	l.mu.Unlock()

	ctx, span := observe.StartSpan(ctx, "call.dial")
	defer span.End()

	dialStart := time.Now()
	start, err := l.setup(ctx)
	if err != nil {
		l.abortDial(err)
		return err
	}

	l.mu.Lock()
	l.state = StateConnected
	l.connectedAt = time.Now()
	callID := l.callID
	l.mu.Unlock()

	// Pipelines start only now that the state is Connected, so a hangup or
	// close event that raced the handshake still reaches end() as a real
	// transition instead of being dropped mid-Dialing.
	start()

	l.cfg.Metrics.ActiveCalls.Add(ctx, 1)
	l.cfg.Metrics.CallSetupDuration.Record(ctx, time.Since(dialStart).Seconds())
	l.cfg.Logger.Info("call connected",
		"call_id", callID,
		"agent_id", l.cfg.AgentID,
		"sample_rate", l.cfg.SampleRate,
		"setup", time.Since(dialStart),
	)
	return nil
}

// setup acquires all call resources, recording closers as it goes. On
// success it returns the function that launches the pipeline goroutines;
// the caller invokes it after the Connected transition. Events arriving
// before then wait in the transport's buffered stream.
func (l *Lifecycle) setup(ctx context.Context) (func(), error) {
	var closers []func() error

	source, err := l.cfg.Devices.OpenSource(l.cfg.SampleRate, defaultCaptureBatch)
	if err != nil {
		return nil, &transport.Error{
			Cause: transport.CausePermissionDenied,
			Err:   fmt.Errorf("call: open capture device: %w", err),
		}
	}
	closers = append(closers, source.Close)

	sink, err := l.cfg.Devices.OpenSink(l.cfg.SampleRate, defaultPullLen)
	if err != nil {
		runClosers(closers, l.cfg.Logger)
		return nil, &transport.Error{
			Cause: transport.CausePermissionDenied,
			Err:   fmt.Errorf("call: open playback device: %w", err),
		}
	}
	closers = append(closers, sink.Close)

	callID, err := l.cfg.History.CreateCall(ctx, l.cfg.AgentID, l.cfg.UserInfo)
	if err != nil {
		runClosers(closers, l.cfg.Logger)
		return nil, fmt.Errorf("call: register call: %w", err)
	}

	trans, err := l.cfg.Dial(ctx, callID)
	if err != nil {
		runClosers(closers, l.cfg.Logger)
		return nil, err
	}
	closers = append(closers, trans.Close)

	if err := trans.SendStart(ctx, l.cfg.SampleRate); err != nil {
		runClosers(closers, l.cfg.Logger)
		return nil, err
	}

	marks := make(chan struct{}, markQueueBuffer)
	buffer := playback.NewBuffer(l.cfg.SampleRate, sink.SampleRate())
	player := playback.NewPlayer(buffer, sink,
		playback.WithChunkEndFunc(func() {
			select {
			case marks <- struct{}{}:
			default:
				l.cfg.Logger.Warn("mark queue full, dropping acknowledgement")
			}
		}),
		playback.WithUnderrunFunc(func() {
			l.cfg.Metrics.Underruns.Add(context.Background(), 1)
		}),
	)
	if err := player.Start(); err != nil {
		runClosers(closers, l.cfg.Logger)
		return nil, &transport.Error{
			Cause: transport.CausePermissionDenied,
			Err:   fmt.Errorf("call: start playback: %w", err),
		}
	}

	pump := capture.NewPump(source, l.cfg.FrameSize)
	closers = append(closers, func() error {
		pump.Stop()
		audio.Drain(pump.Frames())
		return nil
	})

	sessCtx, cancel := context.WithCancel(context.Background())

	l.mu.Lock()
	l.callID = callID
	l.trans = trans
	l.buffer = buffer
	l.pump = pump
	l.cancel = cancel
	l.closers = closers
	l.mu.Unlock()

	start := func() {
		g, gctx := errgroup.WithContext(sessCtx)
		g.Go(func() error { return l.sendLoop(gctx, trans, pump) })
		g.Go(func() error { return l.markLoop(gctx, trans, marks) })
		g.Go(func() error { return l.eventLoop(gctx, trans, buffer) })
		go func() {
			if err := g.Wait(); err != nil && sessCtx.Err() == nil {
				l.cfg.Logger.Warn("pipeline stopped", "error", err)
			}
		}()
	}
	return start, nil
}

// abortDial releases resources after a failed setup and ends the
// lifecycle. A call record that was already created is completed with an
// error reason so the platform does not hold a dangling call; nothing else
// is persisted.
func (l *Lifecycle) abortDial(dialErr error) {
	l.mu.Lock()
	callID := l.callID
	l.state = StateEnded
	l.endReason = types.EndReasonError
	l.mu.Unlock()

	l.cfg.Logger.Error("call setup failed", "error", dialErr)
	if callID != "" {
		l.flushOnce.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			if err := l.cfg.History.CompleteCall(ctx, callID, types.EndReasonError, 0, nil); err != nil {
				l.cfg.Logger.Warn("cannot complete aborted call", "call_id", callID, "error", err)
			}
		})
	}
	close(l.done)
}

// sendLoop forwards capture frames to the transport.
func (l *Lifecycle) sendLoop(ctx context.Context, trans transport.Transport, pump *capture.Pump) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-pump.Frames():
			if !ok {
				return nil
			}
			if err := trans.SendFrame(ctx, frame); err != nil {
				return fmt.Errorf("call: send frame: %w", err)
			}
			l.cfg.Metrics.FramesSent.Add(ctx, 1)
		}
	}
}

// markLoop acknowledges played-out chunks back to the platform.
func (l *Lifecycle) markLoop(ctx context.Context, trans transport.Transport, marks <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-marks:
			if err := trans.SendMark(ctx); err != nil {
				return fmt.Errorf("call: send mark: %w", err)
			}
			l.cfg.Metrics.MarksSent.Add(ctx, 1)
		}
	}
}

// eventLoop applies inbound transport events to the playback buffer and
// the speaker timeline, and triggers teardown when the session ends.
func (l *Lifecycle) eventLoop(ctx context.Context, trans transport.Transport, buffer *playback.Buffer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-trans.Events():
			if !ok {
				go l.end(types.EndReasonRemoteClosed)
				return nil
			}
			switch e := evt.(type) {
			case transport.MediaEvent:
				buffer.EnqueuePCM16(e.PCM)
				l.cfg.Metrics.ChunksReceived.Add(ctx, 1)

			case transport.ClearEvent:
				buffer.Clear()
				l.cfg.Metrics.BargeIns.Add(ctx, 1)
				l.cfg.Logger.Debug("playback cleared on barge-in")

			case transport.SegmentsEvent:
				l.timeline.Replace(e.Segments)

			case transport.HangupEvent:
				go l.end(types.EndReasonAgentHangup)

			case transport.ClosedEvent:
				reason := types.EndReasonRemoteClosed
				if e.Err != nil {
					reason = types.EndReasonError
					l.cfg.Logger.Warn("session closed with error", "error", e.Err)
				}
				go l.end(reason)
			}
		}
	}
}

// HangUp ends the call from the user's side. Idempotent: hanging up a
// call that is already ending or ended is a no-op.
func (l *Lifecycle) HangUp(ctx context.Context) error {
	l.end(types.EndReasonUserHangup)
	return nil
}

// end drives the Ending → Ended transition. Only the first caller acts;
// concurrent and repeated calls return once the first pass has claimed the
// transition.
func (l *Lifecycle) end(reason types.EndReason) {
	l.mu.Lock()
	if l.state != StateConnected {
		ending := l.state == StateEnding
		l.mu.Unlock()
		// The far side disappearing while we drain makes the grace window
		// pointless; cut it short.
		if ending && (reason == types.EndReasonRemoteClosed || reason == types.EndReasonError) {
			l.forceOnce.Do(func() { close(l.force) })
		}
		return
	}
	l.state = StateEnding
	l.endReason = reason
	trans := l.trans
	buffer := l.buffer
	cancel := l.cancel
	closers := l.closers
	callID := l.callID
	duration := time.Since(l.connectedAt)
	l.mu.Unlock()

	l.cfg.Logger.Info("call ending", "call_id", callID, "reason", reason)

	// Tell the platform first so it stops streaming, then let queued audio
	// finish playing. Remote-initiated ends skip both: the far side is gone.
	if reason == types.EndReasonUserHangup {
		ctx, hangupCancel := context.WithTimeout(context.Background(), flushTimeout)
		if err := trans.SendHangup(ctx); err != nil {
			l.cfg.Logger.Warn("cannot send hangup", "error", err)
		}
		hangupCancel()
	}
	if reason == types.EndReasonUserHangup || reason == types.EndReasonAgentHangup {
		l.drainPlayback(trans, buffer)
	}

	cancel()
	runClosers(closers, l.cfg.Logger)

	l.flushOnce.Do(func() {
		ctx, flushCancel := context.WithTimeout(context.Background(), flushTimeout)
		defer flushCancel()
		err := l.cfg.History.CompleteCall(ctx, callID, reason, duration, l.timeline.Segments())
		if err != nil {
			l.cfg.Logger.Warn("history flush failed", "call_id", callID, "error", err)
		}
	})

	ctx := context.Background()
	l.cfg.Metrics.ActiveCalls.Add(ctx, -1)
	l.cfg.Metrics.RecordCallCompleted(ctx, string(reason))

	l.mu.Lock()
	l.state = StateEnded
	l.mu.Unlock()
	close(l.done)

	l.cfg.Logger.Info("call ended", "call_id", callID, "reason", reason, "duration", duration)
}

// drainPlayback waits for queued agent audio to finish playing: all
// delivered chunks acknowledged and the buffer idle. Polls on a wall-clock
// cadence and gives up after the grace window, so a stalled device cannot
// wedge teardown.
func (l *Lifecycle) drainPlayback(trans transport.Transport, buffer *playback.Buffer) {
	deadline := time.Now().Add(l.cfg.GraceWindow)
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if trans.PendingMarks() == 0 && buffer.Idle() {
			return
		}
		if time.Now().After(deadline) {
			l.cfg.Logger.Warn("grace window elapsed with audio pending",
				"pending_marks", trans.PendingMarks())
			return
		}
		select {
		case <-l.force:
			return
		case <-ticker.C:
		}
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// CallID returns the platform call ID, or "" before dialing.
func (l *Lifecycle) CallID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.callID
}

// EndReason returns why the call ended. Zero until the call has ended.
func (l *Lifecycle) EndReason() types.EndReason {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.endReason
}

// Done returns a channel closed once the call has fully ended.
func (l *Lifecycle) Done() <-chan struct{} { return l.done }

// Timeline returns the speaker synchronizer for UI consumers.
func (l *Lifecycle) Timeline() *segments.Synchronizer { return l.timeline }

// runClosers calls closers in reverse order, logging failures.
func runClosers(closers []func() error, logger *slog.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Warn("closer error", "index", i, "err", err)
		}
	}
}
