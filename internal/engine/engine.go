package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivlev/animframes/internal/canvas"
	"github.com/ivlev/animframes/internal/effects"
	"github.com/ivlev/animframes/internal/system"
)

// TargetMode decides which image receives the frames.
type TargetMode string

const (
	// TargetNew creates an image of the source size for the frames.
	TargetNew TargetMode = "new"
	// TargetSource inserts the frames on top of the source image.
	TargetSource TargetMode = "source"
)

// Job is one generation request.
type Job struct {
	Source canvas.Image
	// Drawable is the transform source. Zero selects the active layer.
	Drawable canvas.Layer
	Phases   []effects.Effect
	Target   TargetMode
}

// Result is the output of a committed pass.
type Result struct {
	RunID  uuid.UUID
	Image  canvas.Image
	Width  int
	Height int
	// Frames are in display order, bottom to top.
	Frames   []effects.Frame
	Duration time.Duration
}

// Sequencer runs the phases of a job in order as one atomic pass.
type Sequencer struct {
	canvas canvas.Adapter
	log    *zap.Logger
	memory system.MemoryReader
}

// Option configures a Sequencer.
type Option func(*Sequencer)

func WithLogger(l *zap.Logger) Option {
	return func(s *Sequencer) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMemoryReader replaces the gopsutil reader used by the memory guard.
func WithMemoryReader(p system.MemoryReader) Option {
	return func(s *Sequencer) { s.memory = p }
}

func NewSequencer(c canvas.Adapter, opts ...Option) *Sequencer {
	s := &Sequencer{canvas: c, log: zap.NewNop(), memory: system.AvailableMemory}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run validates every phase, then generates all frames inside one batch.
// A failure in any phase, or cancellation between frames, rolls the whole
// pass back and returns no frames.
func (s *Sequencer) Run(ctx context.Context, job Job) (*Result, error) {
	start := time.Now()
	runID, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	log := s.log.With(zap.Stringer("run_id", runID))

	t, err := s.target(job)
	if err != nil {
		return nil, err
	}
	t.Log = log
	if err := s.validate(ctx, job, t); err != nil {
		return nil, err
	}

	b := NewBatch(s.canvas, log)
	t.Journal = b
	frames, err := s.generate(ctx, job, t, b)
	if err != nil {
		if rerr := b.Abort(); rerr != nil {
			log.Error("rollback incomplete", zap.Error(rerr))
			err = errors.Join(err, rerr)
		}
		log.Warn("pass aborted", zap.Error(err))
		return nil, err
	}
	if err := b.Commit(); err != nil {
		return nil, err
	}
	s.canvas.RefreshDisplay()

	res := &Result{
		RunID:    runID,
		Image:    t.Image,
		Width:    t.Width,
		Height:   t.Height,
		Frames:   frames,
		Duration: time.Since(start),
	}
	log.Info("pass committed",
		zap.Int("frames", len(frames)),
		zap.Uint32("image", uint32(t.Image)),
		zap.Duration("took", res.Duration))
	return res, nil
}

func (s *Sequencer) target(job Job) (*effects.Target, error) {
	w, h, err := s.canvas.ImageSize(job.Source)
	if err != nil {
		return nil, err
	}
	drawable := job.Drawable
	if drawable == 0 {
		if drawable, err = s.canvas.ActiveLayer(job.Source); err != nil {
			return nil, err
		}
	}
	return &effects.Target{
		Canvas:   s.canvas,
		Source:   job.Source,
		Drawable: drawable,
		Image:    job.Source,
		Width:    w,
		Height:   h,
	}, nil
}

// validate runs every precondition before anything is created.
func (s *Sequencer) validate(ctx context.Context, job Job, t *effects.Target) error {
	if len(job.Phases) == 0 {
		return fmt.Errorf("%w: no phases", effects.ErrInvalidParameter)
	}
	switch job.Target {
	case "", TargetNew, TargetSource:
	default:
		return fmt.Errorf("%w: unknown target %q", effects.ErrInvalidParameter, job.Target)
	}
	total := 0
	for i, e := range job.Phases {
		if _, ok := e.(*effects.LockedOverlay); ok && total == 0 {
			return fmt.Errorf("%w: phase %d: %s needs frames before it", effects.ErrInvalidParameter, i, e.Name())
		}
		if err := e.Validate(t); err != nil {
			return fmt.Errorf("phase %d (%s): %w", i, e.Name(), err)
		}
		total += e.Frames()
	}

	need := system.FrameBytes(t.Width, t.Height, total)
	if err := system.CheckMemory(ctx, need, s.memory); err != nil {
		if !errors.Is(err, system.ErrMemoryUnavailable) {
			return err
		}
		t.Log.Warn("memory check skipped", zap.Error(err))
	}
	t.Log.Info("pass planned",
		zap.Int("phases", len(job.Phases)),
		zap.Int("frames", total),
		zap.Int("width", t.Width),
		zap.Int("height", t.Height),
		zap.Uint64("estimated_bytes", need))
	return nil
}

func (s *Sequencer) generate(ctx context.Context, job Job, t *effects.Target, b *Batch) ([]effects.Frame, error) {
	if err := b.Begin(job.Source); err != nil {
		return nil, err
	}
	if job.Target != TargetSource {
		img, err := s.canvas.NewImage(t.Width, t.Height)
		if err != nil {
			return nil, fmt.Errorf("target image: %w", err)
		}
		b.Created(img)
		if err := b.Begin(img); err != nil {
			return nil, err
		}
		t.Image = img
	}

	var seq []effects.Frame
	for i, e := range job.Phases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		before := len(seq)
		var err error
		seq, err = e.Generate(ctx, t, seq)
		if err != nil {
			return nil, fmt.Errorf("phase %d (%s): %w", i, e.Name(), err)
		}
		t.Log.Debug("phase done", zap.String("phase", e.Name()), zap.Int("frames", len(seq)-before))
	}

	if len(seq) > 0 {
		if err := s.canvas.SetActiveLayer(t.Image, seq[0].Layer); err != nil {
			return nil, err
		}
	}
	return seq, nil
}
