package effects

import (
	"context"
	"fmt"
	"image"
	"strings"

	"go.uber.org/zap"

	"github.com/ivlev/animframes/internal/canvas"
)

// ForegroundName is matched case-insensitively against the source layers.
const ForegroundName = "foreground"

// BackgroundMode selects how the background layer is shown.
type BackgroundMode string

const (
	// BackgroundFinalFrame hides both originals and appends a copy of the
	// background as the last frame.
	BackgroundFinalFrame BackgroundMode = "final-frame"
	// BackgroundBackdrop keeps the background visible beneath every frame.
	BackgroundBackdrop BackgroundMode = "backdrop"
)

// Sonar reveals the background through a growing circular hole punched
// into copies of the foreground layer. The source image must have exactly
// two layers, one of them named "foreground".
type Sonar struct {
	Count      int
	Background BackgroundMode
	// Easing names an entry of Easings. Empty or "linear" uses Radius.
	Easing string
}

func (e *Sonar) Name() string { return "sonar" }

func (e *Sonar) Frames() int {
	if e.mode() == BackgroundFinalFrame {
		return e.Count + 1
	}
	return e.Count
}

func (e *Sonar) mode() BackgroundMode {
	if e.Background == "" {
		return BackgroundFinalFrame
	}
	return e.Background
}

func (e *Sonar) Validate(t *Target) error {
	if e.Count < 1 {
		return fmt.Errorf("%w: %s needs at least 1 frame, got %d", ErrInvalidParameter, e.Name(), e.Count)
	}
	switch e.mode() {
	case BackgroundFinalFrame, BackgroundBackdrop:
	default:
		return fmt.Errorf("%w: unknown background mode %q", ErrInvalidParameter, e.Background)
	}
	if !validEasing(e.Easing) {
		return fmt.Errorf("%w: unknown easing %q", ErrInvalidParameter, e.Easing)
	}
	_, _, err := SplitLayers(t.Canvas, t.Source)
	return err
}

// SplitLayers finds the foreground and background layers of img. The layer
// count is checked before the names.
func SplitLayers(c canvas.Adapter, img canvas.Image) (fg, bg canvas.Layer, err error) {
	layers, err := c.ImageLayers(img)
	if err != nil {
		return 0, 0, err
	}
	if len(layers) != 2 {
		return 0, 0, fmt.Errorf("%w: need exactly 2 layers, image has %d", ErrLayerCount, len(layers))
	}
	for i, l := range layers {
		name, err := c.LayerName(l)
		if err != nil {
			return 0, 0, err
		}
		if strings.EqualFold(name, ForegroundName) {
			return l, layers[1-i], nil
		}
	}
	return 0, 0, fmt.Errorf("%w: no layer named %q", ErrMissingLayer, ForegroundName)
}

// Generate appends Count masked foreground copies and, in final-frame mode,
// one copy of the background.
func (e *Sonar) Generate(ctx context.Context, t *Target, seq []Frame) ([]Frame, error) {
	log := t.logger().With(zap.String("phase", e.Name()))
	fg, bg, err := SplitLayers(t.Canvas, t.Source)
	if err != nil {
		return seq, err
	}
	if err := e.prepare(t, fg, bg); err != nil {
		return seq, err
	}

	midX, midY := t.Mid()
	center := image.Pt(midX, midY)
	maxRadius := MaxRadius(t.Width, t.Height)
	tween := Easings[e.Easing]

	for i := 0; i < e.Count; i++ {
		if err := canceled(ctx); err != nil {
			return seq, err
		}
		f := Frame{
			Phase:  e.Name(),
			Index:  i,
			Scale:  1,
			Radius: EasedRadius(i, e.Count, maxRadius, tween),
			Name:   fmt.Sprintf("Sonar Frame %d", i),
		}
		layer, err := e.reveal(t, fg, f.Name, center, f.Radius)
		if err != nil {
			return seq, fmt.Errorf("frame %d: %w", i, err)
		}
		f.Layer = layer
		seq = append(seq, f)
		log.Debug("frame generated", zap.Int("frame", i), zap.Int("radius", f.Radius))
	}

	if e.mode() != BackgroundFinalFrame {
		return seq, nil
	}
	layer, err := t.Canvas.DuplicateLayer(bg, t.Image)
	if err != nil {
		return seq, fmt.Errorf("background frame: %w", err)
	}
	f := Frame{Layer: layer, Name: "Background", Phase: e.Name(), Index: e.Count, Scale: 1}
	if err := t.insert(layer, f.Name); err != nil {
		return seq, err
	}
	if err := t.Canvas.SetVisible(layer, true); err != nil {
		return seq, err
	}
	return append(seq, f), nil
}

// prepare hides the originals when generating in place, or places a
// backdrop copy of the background under a separate target.
func (e *Sonar) prepare(t *Target, fg, bg canvas.Layer) error {
	if t.InPlace() {
		hide := []canvas.Layer{fg}
		if e.mode() == BackgroundFinalFrame {
			hide = append(hide, bg)
		}
		for _, l := range hide {
			was, err := t.Canvas.Visible(l)
			if err != nil {
				return err
			}
			if err := t.Canvas.SetVisible(l, false); err != nil {
				return err
			}
			t.Journal.Visibility(l, was)
		}
		return nil
	}
	if e.mode() != BackgroundBackdrop {
		return nil
	}
	backdrop, err := t.Canvas.DuplicateLayer(bg, t.Image)
	if err != nil {
		return fmt.Errorf("backdrop: %w", err)
	}
	if err := t.Canvas.InsertLayer(t.Image, backdrop, canvas.PositionBottom); err != nil {
		return fmt.Errorf("backdrop: %w", err)
	}
	t.Journal.Inserted(t.Image, backdrop)
	return t.Canvas.SetVisible(backdrop, true)
}

// reveal creates one frame: a visible foreground copy whose mask is
// transparent inside the circle of radius r around center. Radius 0 leaves
// the mask opaque, since an empty selection would fill the whole mask.
func (e *Sonar) reveal(t *Target, fg canvas.Layer, name string, center image.Point, r int) (canvas.Layer, error) {
	layer, err := t.Canvas.DuplicateLayer(fg, t.Image)
	if err != nil {
		return 0, fmt.Errorf("duplicate: %w", err)
	}
	if err := t.insert(layer, name); err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}
	if err := t.Canvas.SetVisible(layer, true); err != nil {
		return 0, err
	}
	mask, err := t.Canvas.CreateMask(layer)
	if err != nil {
		return 0, fmt.Errorf("mask: %w", err)
	}
	if err := t.Canvas.AttachMask(layer, mask); err != nil {
		return 0, fmt.Errorf("mask: %w", err)
	}
	if err := t.Canvas.ClearSelection(t.Image); err != nil {
		return 0, err
	}
	if r <= 0 {
		return layer, nil
	}
	if err := t.Canvas.SelectEllipse(t.Image, canvas.Ellipse(center, r)); err != nil {
		return 0, fmt.Errorf("select: %w", err)
	}
	if err := t.Canvas.FillMask(mask, false); err != nil {
		return 0, fmt.Errorf("fill: %w", err)
	}
	return layer, t.Canvas.ClearSelection(t.Image)
}
