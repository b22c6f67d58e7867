package effects

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/ivlev/animframes/internal/canvas"
)

// Door splits the source into four quadrants and slides them outward from
// the image centre, one frame per step. Frame i of Count is shifted by
// Displacement(i, Count, midX, midY).
type Door struct {
	Count int
}

func (e *Door) Name() string { return "door" }

func (e *Door) Frames() int { return e.Count }

func (e *Door) Validate(t *Target) error {
	if e.Count < 1 {
		return fmt.Errorf("%w: %s needs at least 1 frame, got %d", ErrInvalidParameter, e.Name(), e.Count)
	}
	if t.Width < 2 || t.Height < 2 {
		return fmt.Errorf("%w: %dx%d image cannot be split into quadrants", ErrInvalidParameter, t.Width, t.Height)
	}
	return nil
}

// Generate copies quadrants from a private duplicate of the source image,
// so the source selection and clipboard state never leak into the caller's
// image. The duplicate is deleted before returning.
func (e *Door) Generate(ctx context.Context, t *Target, seq []Frame) (out []Frame, err error) {
	log := t.logger().With(zap.String("phase", e.Name()))

	dup, err := t.Canvas.DuplicateImage(t.Source)
	if err != nil {
		return seq, fmt.Errorf("duplicate source: %w", err)
	}
	t.Journal.Scratch(dup)
	defer func() {
		if derr := t.Canvas.DeleteImage(dup); derr != nil {
			if err == nil {
				err = fmt.Errorf("delete source copy: %w", derr)
			}
			return
		}
		t.Journal.Released(dup)
	}()

	src, err := t.Canvas.ActiveLayer(dup)
	if err != nil {
		return seq, fmt.Errorf("source copy: %w", err)
	}
	midX, midY := t.Mid()

	for i := 1; i <= e.Count; i++ {
		if err := canceled(ctx); err != nil {
			return seq, err
		}
		dx, dy := Displacement(i, e.Count, midX, midY)
		f := Frame{Phase: e.Name(), Index: i, Scale: 1, Shift: image.Pt(dx, dy), Name: fmt.Sprintf("Door Frame %d", i)}

		layer, err := t.Canvas.NewLayer(t.Image, t.Width, t.Height, f.Name)
		if err != nil {
			return seq, fmt.Errorf("frame %d: new layer: %w", i, err)
		}
		f.Layer = layer
		if err := t.insert(layer, ""); err != nil {
			return seq, fmt.Errorf("frame %d: insert: %w", i, err)
		}
		if err := t.Canvas.SetActiveLayer(t.Image, layer); err != nil {
			return seq, err
		}

		for _, q := range Quadrants {
			if err := e.paste(t, dup, src, layer, q, dx, dy); err != nil {
				return seq, fmt.Errorf("frame %d: %s: %w", i, q, err)
			}
		}
		if err := t.Canvas.ClearSelection(dup); err != nil {
			return seq, err
		}

		seq = append(seq, f)
		log.Debug("frame generated", zap.Int("frame", i), zap.Int("dx", dx), zap.Int("dy", dy))
	}
	return seq, nil
}

// paste moves one quadrant of src into frame. A quadrant src does not
// cover stays transparent. The floating selection is anchored before
// returning, or removed when a step fails.
func (e *Door) paste(t *Target, dup canvas.Image, src, frame canvas.Layer, q Quadrant, dx, dy int) error {
	rect := q.Rect(t.Width, t.Height)
	covered, err := layerBounds(t.Canvas, src)
	if err != nil {
		return err
	}
	if !rect.Overlaps(covered) {
		return nil
	}
	if err := t.Canvas.SelectRectangle(dup, rect); err != nil {
		return err
	}
	if err := t.Canvas.Copy(src); err != nil {
		return err
	}
	floating, err := t.Canvas.PasteInto(frame)
	if err != nil {
		return err
	}
	// The paste starts where src begins inside rect, which is rect.Min
	// unless src only partly covers the quadrant.
	origin, err := t.Canvas.LayerOffset(floating)
	if err != nil {
		_ = t.Canvas.RemoveLayer(t.Image, floating)
		return err
	}
	at := q.Placement(t.Width, t.Height, dx, dy).Add(origin.Sub(rect.Min))
	if err := t.Canvas.SetOffset(floating, at.X, at.Y); err != nil {
		_ = t.Canvas.RemoveLayer(t.Image, floating)
		return err
	}
	if err := t.Canvas.Anchor(floating); err != nil {
		_ = t.Canvas.RemoveLayer(t.Image, floating)
		return err
	}
	return nil
}

// layerBounds is the rectangle layer occupies in image coordinates.
func layerBounds(c canvas.Adapter, layer canvas.Layer) (image.Rectangle, error) {
	off, err := c.LayerOffset(layer)
	if err != nil {
		return image.Rectangle{}, err
	}
	w, h, err := c.LayerSize(layer)
	if err != nil {
		return image.Rectangle{}, err
	}
	return image.Rect(0, 0, w, h).Add(off), nil
}
