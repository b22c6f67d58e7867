// Package effects holds the frame generators: rotation/scale transforms,
// the four-quadrant door opening, the locked overlay terminal frame and the
// radial "sonar" reveal. Generators drive a canvas.Adapter and never touch
// pixels themselves.
package effects

import (
	"context"
	"errors"
	"image"

	"go.uber.org/zap"

	"github.com/ivlev/animframes/internal/canvas"
)

var (
	// ErrInvalidParameter reports a frame count below the minimum or a
	// computed size that would collapse to zero.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrLayerCount reports an image without exactly the required layers.
	ErrLayerCount = errors.New("wrong layer count")
	// ErrMissingLayer reports that no layer carries the required name.
	ErrMissingLayer = errors.New("missing layer")
)

// Effect is one phase of an animation. Validate must not change the host;
// Generate appends the phase's frames in display order.
type Effect interface {
	Name() string
	// Frames is the number of frames Generate will append.
	Frames() int
	Validate(t *Target) error
	Generate(ctx context.Context, t *Target, seq []Frame) ([]Frame, error)
}

// Journal records host side effects so that an aborted pass can be undone.
type Journal interface {
	// Inserted records a layer placed into img's stack.
	Inserted(img canvas.Image, layer canvas.Layer)
	// Dropped records that a journalled layer no longer exists on its own,
	// for example after being merged.
	Dropped(layer canvas.Layer)
	// Scratch records a temporary image to delete on abort.
	Scratch(img canvas.Image)
	// Released records that a scratch image was deleted normally.
	Released(img canvas.Image)
	// Visibility records the visibility a layer had before it was changed.
	Visibility(layer canvas.Layer, previous bool)
}

// Target is what a generator works on.
type Target struct {
	Canvas canvas.Adapter
	// Source is the caller's image and Drawable its layer used as the
	// transform source. Neither is modified, except for layer visibility
	// when frames are generated into Source itself.
	Source   canvas.Image
	Drawable canvas.Layer
	// Image receives the frames. It is Source for in-place generation.
	Image         canvas.Image
	Width, Height int
	Journal       Journal
	Log           *zap.Logger
}

// InPlace reports whether frames are generated into the source image.
func (t *Target) InPlace() bool {
	return t.Image == t.Source
}

// Mid returns the integer midpoints of the source image.
func (t *Target) Mid() (int, int) {
	return t.Width / 2, t.Height / 2
}

func (t *Target) logger() *zap.Logger {
	if t.Log == nil {
		return zap.NewNop()
	}
	return t.Log
}

// insert places layer on top of the target stack, names it and journals it.
func (t *Target) insert(layer canvas.Layer, name string) error {
	if err := t.Canvas.InsertLayer(t.Image, layer, canvas.PositionTop); err != nil {
		return err
	}
	t.Journal.Inserted(t.Image, layer)
	if name == "" {
		return nil
	}
	return t.Canvas.SetLayerName(layer, name)
}

// Frame is one generated layer together with the parameters that produced
// it. Only the fields relevant to the phase are set.
type Frame struct {
	Layer  canvas.Layer
	Name   string
	Phase  string
	Index  int
	Angle  float64
	Scale  float64
	Shift  image.Point
	Radius int
}

func canceled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
