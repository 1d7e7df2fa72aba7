package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/LdDl/movement-params/mot"
	"github.com/pkg/errors"
)

// DefaultPollInterval is a pause between polls of a source which has no frame yet
const DefaultPollInterval = 5 * time.Millisecond

// Processor enriches frame in place
type Processor interface {
	Process(frame *mot.Frame) error
}

// ProcessorFunc is an adapter to use ordinary functions as processors
type ProcessorFunc func(frame *mot.Frame) error

// Process calls f(frame)
func (f ProcessorFunc) Process(frame *mot.Frame) error {
	return f(frame)
}

// Source provides frames.
// GetFrame must not block: it returns (nil, nil) when no frame is available yet and io.EOF when exhausted.
type Source interface {
	GetFrame() (*mot.Frame, error)
}

// Sink consumes processed frames
type Sink interface {
	Push(frame *mot.Frame) error
}

// Sinks pushes frame to every sink, even if some of them fail. First error is returned
type Sinks []Sink

// Push implements Sink
func (sinks Sinks) Push(frame *mot.Frame) error {
	var first error
	for i, sink := range sinks {
		err := sink.Push(frame)
		if err != nil && first == nil {
			first = errors.Wrapf(err, "Sink #%d failed", i)
		}
	}
	return first
}

// Option configures Pipeline
type Option func(*Pipeline)

// WithLogger sets logger
func WithLogger(logger *slog.Logger) Option {
	return func(pipeline *Pipeline) {
		pipeline.logger = logger
	}
}

// WithPollInterval sets pause between polls of an empty source
func WithPollInterval(interval time.Duration) Option {
	return func(pipeline *Pipeline) {
		pipeline.pollInterval = interval
	}
}

// Pipeline runs processors over every frame in order and hands results to sinks
type Pipeline struct {
	processors   []Processor
	sinks        Sinks
	pollInterval time.Duration
	logger       *slog.Logger
	processed    int64
	failed       int64
}

// New creates pipeline
func New(processors []Processor, sinks []Sink, opts ...Option) *Pipeline {
	pipeline := &Pipeline{
		processors:   processors,
		sinks:        Sinks(sinks),
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(pipeline)
	}
	return pipeline
}

// ProcessFrame applies processors in order and pushes frame to sinks.
// The first failing processor stops handling of this frame: sinks do not receive it.
func (pipeline *Pipeline) ProcessFrame(frame *mot.Frame) error {
	for i, processor := range pipeline.processors {
		err := processor.Process(frame)
		if err != nil {
			pipeline.failed++
			return errors.Wrapf(err, "Processor #%d failed on frame %s", i, frame.ID)
		}
	}
	pipeline.processed++
	if len(pipeline.sinks) == 0 {
		return nil
	}
	err := pipeline.sinks.Push(frame)
	if err != nil {
		return errors.Wrapf(err, "Can't push frame %s", frame.ID)
	}
	return nil
}

// Run polls source until it is exhausted or context is cancelled.
// Errors of a single frame are logged and do not stop the loop.
// Returns nil when source is exhausted and context error on cancellation.
func (pipeline *Pipeline) Run(ctx context.Context, source Source) error {
	for {
		select {
		case <-ctx.Done():
			pipeline.logger.Info("pipeline stopped", "processed", pipeline.processed, "failed", pipeline.failed)
			return ctx.Err()
		default:
		}

		frame, err := source.GetFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				pipeline.logger.Info("source exhausted", "processed", pipeline.processed, "failed", pipeline.failed)
				return nil
			}
			pipeline.logger.Warn("can't get frame", "error", err)
			if !pipeline.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}
		if frame == nil {
			if !pipeline.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		err = pipeline.ProcessFrame(frame)
		if err != nil {
			pipeline.logger.Warn("frame skipped", "frame", frame.ID, "error", err)
		}
	}
}

// Processed returns number of frames which passed all processors
func (pipeline *Pipeline) Processed() int64 {
	return pipeline.processed
}

// Failed returns number of frames rejected by a processor
func (pipeline *Pipeline) Failed() int64 {
	return pipeline.failed
}

// sleep waits for poll interval. Returns false if context was cancelled meanwhile
func (pipeline *Pipeline) sleep(ctx context.Context) bool {
	timer := time.NewTimer(pipeline.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
