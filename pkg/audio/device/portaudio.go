package device

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Compile-time interface assertions.
var (
	_ Opener = (*Live)(nil)
	_ Source = (*liveSource)(nil)
	_ Sink   = (*liveSink)(nil)
)

// sourceChannelBuffer bounds the capture channel. Capture never blocks on a
// slow consumer; batches beyond the buffer are dropped.
const sourceChannelBuffer = 16

// paUsers tracks how many live devices are open so that the PortAudio
// library is initialised once and terminated when the last device closes.
var (
	paMu    sync.Mutex
	paUsers int
)

func paAcquire() error {
	paMu.Lock()
	defer paMu.Unlock()
	if paUsers == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("device: initialize portaudio: %w", err)
		}
	}
	paUsers++
	return nil
}

func paRelease() {
	paMu.Lock()
	defer paMu.Unlock()
	paUsers--
	if paUsers == 0 {
		_ = portaudio.Terminate()
	}
}

// Live opens real PortAudio devices. The zero value is ready to use.
type Live struct{}

// OpenSource opens the default capture device and starts a reader goroutine
// that delivers batches of batchLen mono float samples.
func (Live) OpenSource(sampleRate, batchLen int) (Source, error) {
	if err := paAcquire(); err != nil {
		return nil, err
	}

	buf := make([]float32, batchLen)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(buf), buf)
	if err != nil {
		paRelease()
		return nil, fmt.Errorf("device: open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		paRelease()
		return nil, fmt.Errorf("device: start capture stream: %w", err)
	}

	s := &liveSource{
		stream:     stream,
		buf:        buf,
		sampleRate: sampleRate,
		out:        make(chan []float32, sourceChannelBuffer),
		done:       make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// OpenSink opens the default output device. Output does not begin until
// [Sink.Start] is called with a pull function.
func (Live) OpenSink(sampleRate, pullLen int) (Sink, error) {
	if err := paAcquire(); err != nil {
		return nil, err
	}

	buf := make([]float32, pullLen)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(buf), buf)
	if err != nil {
		paRelease()
		return nil, fmt.Errorf("device: open output stream: %w", err)
	}

	return &liveSink{
		stream:     stream,
		buf:        buf,
		sampleRate: sampleRate,
		done:       make(chan struct{}),
	}, nil
}

// liveSource reads from a PortAudio capture stream on a dedicated goroutine
// and forwards copied batches on a channel.
type liveSource struct {
	stream     *portaudio.Stream
	buf        []float32
	sampleRate int
	out        chan []float32
	done       chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func (s *liveSource) Samples() <-chan []float32 { return s.out }
func (s *liveSource) SampleRate() int           { return s.sampleRate }

// readLoop owns s.out and closes it on exit.
func (s *liveSource) readLoop() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		default:
		}
		if err := s.stream.Read(); err != nil {
			return
		}
		// Copy: s.buf is reused by the next Read.
		batch := make([]float32, len(s.buf))
		copy(batch, s.buf)
		select {
		case s.out <- batch:
		case <-s.done:
			return
		default:
			// Consumer is behind — drop the batch rather than block capture.
		}
	}
}

func (s *liveSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.stream.Stop(); err != nil {
			s.closeErr = err
		}
		if err := s.stream.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
		paRelease()
	})
	return s.closeErr
}

// liveSink writes to a PortAudio output stream, invoking the pull function
// once per buffer on a dedicated goroutine.
type liveSink struct {
	stream     *portaudio.Stream
	buf        []float32
	sampleRate int
	done       chan struct{}

	mu      sync.Mutex
	started bool

	closeOnce sync.Once
	closeErr  error
}

func (s *liveSink) SampleRate() int { return s.sampleRate }

func (s *liveSink) Start(pull func(out []float32)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("device: sink already started")
	}
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("device: start output stream: %w", err)
	}
	s.started = true
	go s.writeLoop(pull)
	return nil
}

func (s *liveSink) writeLoop(pull func(out []float32)) {
	for {
		select {
		case <-s.done:
			return
		default:
		}
		pull(s.buf)
		if err := s.stream.Write(); err != nil {
			return
		}
	}
}

func (s *liveSink) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			if err := s.stream.Stop(); err != nil {
				s.closeErr = err
			}
		}
		if err := s.stream.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
		paRelease()
	})
	return s.closeErr
}
