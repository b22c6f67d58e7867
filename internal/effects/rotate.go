package effects

import (
	"context"
	"fmt"
	"image"
	"math"

	"go.uber.org/zap"

	"github.com/ivlev/animframes/internal/canvas"
)

// Pivot chooses the rotation centre of a transform frame.
type Pivot string

const (
	// PivotLayer rotates around the centre of the duplicated layer.
	PivotLayer Pivot = "layer"
	// PivotImage rotates around the integer midpoint of the image.
	PivotImage Pivot = "image"
)

// Transform duplicates the drawable once per frame and rotates each copy by
// an equal increment. Scale shrinks frame i by ScaleFactor and Place moves
// it flush to the bottom-left corner of the image.
type Transform struct {
	Count   int
	Scale   bool
	Place   bool
	Spacing Spacing
	Pivot   Pivot
}

func (e *Transform) Name() string { return "rotate" }

func (e *Transform) Frames() int { return e.Count }

func (e *Transform) minFrames() int {
	if e.Spacing == SpacingFull {
		return 1
	}
	return 2
}

// Validate checks the frame count and that the smallest scaled frame keeps
// at least one pixel per axis.
func (e *Transform) Validate(t *Target) error {
	if e.Count < e.minFrames() {
		return fmt.Errorf("%w: %s needs at least %d frames, got %d", ErrInvalidParameter, e.Name(), e.minFrames(), e.Count)
	}
	switch e.Spacing {
	case "", SpacingOpen, SpacingFull:
	default:
		return fmt.Errorf("%w: unknown spacing %q", ErrInvalidParameter, e.Spacing)
	}
	switch e.Pivot {
	case "", PivotLayer, PivotImage:
	default:
		return fmt.Errorf("%w: unknown pivot %q", ErrInvalidParameter, e.Pivot)
	}
	if !e.Scale {
		return nil
	}
	if e.Count < 2 {
		return fmt.Errorf("%w: scaling needs at least 2 frames, got %d", ErrInvalidParameter, e.Count)
	}
	w, h, err := t.Canvas.LayerSize(t.Drawable)
	if err != nil {
		return err
	}
	sw, sh := ScaledSize(w, h, ScaleFactor(e.Count-1, e.Count))
	if sw < 1 || sh < 1 {
		return fmt.Errorf("%w: %dx%d layer scales down to %dx%d", ErrInvalidParameter, w, h, sw, sh)
	}
	return nil
}

// Generate appends Count rotated copies of the drawable.
func (e *Transform) Generate(ctx context.Context, t *Target, seq []Frame) ([]Frame, error) {
	log := t.logger().With(zap.String("phase", e.Name()))
	w, h, err := t.Canvas.LayerSize(t.Drawable)
	if err != nil {
		return seq, err
	}
	midX, midY := t.Mid()

	for i := 0; i < e.Count; i++ {
		if err := canceled(ctx); err != nil {
			return seq, err
		}
		f := Frame{Phase: e.Name(), Index: i, Angle: RotationAngle(i, e.Count, e.Spacing), Scale: 1}

		layer, err := t.Canvas.DuplicateLayer(t.Drawable, t.Image)
		if err != nil {
			return seq, fmt.Errorf("frame %d: duplicate: %w", i, err)
		}
		f.Layer = layer
		f.Name = fmt.Sprintf("Rotate Frame %d", i)
		if err := t.insert(layer, f.Name); err != nil {
			return seq, fmt.Errorf("frame %d: insert: %w", i, err)
		}

		pivot := canvas.Pt(float64(midX), float64(midY))
		if e.Pivot != PivotImage {
			lw, lh, err := t.Canvas.LayerSize(layer)
			if err != nil {
				return seq, err
			}
			off, err := t.Canvas.LayerOffset(layer)
			if err != nil {
				return seq, err
			}
			pivot = canvas.Pt(float64(off.X)+float64(lw)/2.0, float64(off.Y)+float64(lh)/2.0)
		}
		if err := t.Canvas.Rotate(layer, f.Angle*math.Pi/180, pivot); err != nil {
			return seq, fmt.Errorf("frame %d: rotate: %w", i, err)
		}

		if e.Scale {
			f.Scale = ScaleFactor(i, e.Count)
			sw, sh := ScaledSize(w, h, f.Scale)
			if err := t.Canvas.Scale(layer, sw, sh); err != nil {
				return seq, fmt.Errorf("frame %d: scale: %w", i, err)
			}
		}
		if e.Place {
			_, lh, err := t.Canvas.LayerSize(layer)
			if err != nil {
				return seq, err
			}
			f.Shift = image.Pt(0, t.Height-lh)
			if err := t.Canvas.SetOffset(layer, f.Shift.X, f.Shift.Y); err != nil {
				return seq, fmt.Errorf("frame %d: place: %w", i, err)
			}
		}

		seq = append(seq, f)
		log.Debug("frame generated",
			zap.Int("frame", i),
			zap.Float64("angle", f.Angle),
			zap.Float64("scale", f.Scale))
	}
	return seq, nil
}
