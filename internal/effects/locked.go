package effects

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"
)

// OverlayFactor is the size of the mini overlay relative to the image.
const OverlayFactor = 0.2

// LockedOverlay appends one terminal frame: a copy of the last frame shifted
// right by half the image width, with a 20% copy of the untransformed
// drawable merged onto it at the bottom-left corner.
type LockedOverlay struct{}

func (e *LockedOverlay) Name() string { return "locked" }

func (e *LockedOverlay) Frames() int { return 1 }

func (e *LockedOverlay) Validate(t *Target) error {
	w, h := ScaledSize(t.Width, t.Height, OverlayFactor)
	if w < 1 || h < 1 {
		return fmt.Errorf("%w: %dx%d image is too small for an overlay", ErrInvalidParameter, t.Width, t.Height)
	}
	return nil
}

// Generate derives the terminal frame from the last frame of seq. The last
// frame itself is left in place.
func (e *LockedOverlay) Generate(ctx context.Context, t *Target, seq []Frame) ([]Frame, error) {
	if len(seq) == 0 {
		return seq, fmt.Errorf("%w: %s needs a previous frame", ErrInvalidParameter, e.Name())
	}
	if err := canceled(ctx); err != nil {
		return seq, err
	}
	last := seq[len(seq)-1]
	midX, _ := t.Mid()

	locked, err := t.Canvas.DuplicateLayer(last.Layer, t.Image)
	if err != nil {
		return seq, fmt.Errorf("duplicate last frame: %w", err)
	}
	if err := t.insert(locked, ""); err != nil {
		return seq, err
	}
	if err := t.Canvas.Translate(locked, midX, 0); err != nil {
		return seq, fmt.Errorf("lock: %w", err)
	}

	mini, err := t.Canvas.DuplicateLayer(t.Drawable, t.Image)
	if err != nil {
		return seq, fmt.Errorf("duplicate drawable: %w", err)
	}
	if err := t.insert(mini, ""); err != nil {
		return seq, err
	}
	w, h := ScaledSize(t.Width, t.Height, OverlayFactor)
	if err := t.Canvas.Scale(mini, w, h); err != nil {
		return seq, fmt.Errorf("overlay: %w", err)
	}
	if err := t.Canvas.SetOffset(mini, 0, t.Height-h); err != nil {
		return seq, fmt.Errorf("overlay: %w", err)
	}

	merged, err := t.Canvas.MergeDown(t.Image, mini)
	if err != nil {
		return seq, fmt.Errorf("merge overlay: %w", err)
	}
	t.Journal.Dropped(mini)
	t.Journal.Dropped(locked)
	t.Journal.Inserted(t.Image, merged)

	f := Frame{
		Layer: merged,
		Name:  "Locked Frame",
		Phase: e.Name(),
		Index: last.Index + 1,
		Scale: OverlayFactor,
		Shift: image.Pt(midX, 0),
	}
	if err := t.Canvas.SetLayerName(merged, f.Name); err != nil {
		return seq, err
	}
	t.logger().Debug("frame generated",
		zap.String("phase", e.Name()),
		zap.Int("overlay_width", w),
		zap.Int("overlay_height", h))
	return append(seq, f), nil
}
