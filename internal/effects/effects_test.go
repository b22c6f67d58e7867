package effects

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/ivlev/animframes/internal/canvas"
	"github.com/ivlev/animframes/internal/raster"
)

type testJournal struct {
	inserted []canvas.Layer
	dropped  []canvas.Layer
	scratch  []canvas.Image
	released []canvas.Image
	hidden   map[canvas.Layer]bool
}

func (j *testJournal) Inserted(_ canvas.Image, l canvas.Layer) { j.inserted = append(j.inserted, l) }
func (j *testJournal) Dropped(l canvas.Layer)                  { j.dropped = append(j.dropped, l) }
func (j *testJournal) Scratch(img canvas.Image)                { j.scratch = append(j.scratch, img) }
func (j *testJournal) Released(img canvas.Image)               { j.released = append(j.released, img) }

func (j *testJournal) Visibility(l canvas.Layer, was bool) {
	if j.hidden == nil {
		j.hidden = make(map[canvas.Layer]bool)
	}
	j.hidden[l] = was
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

var (
	red   = color.RGBA{R: 0xff, A: 0xff}
	green = color.RGBA{G: 0xff, A: 0xff}
	blue  = color.RGBA{B: 0xff, A: 0xff}
	white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// newTarget imports layers (top first) into a fresh canvas. The returned
// target generates in place unless separate is set.
func newTarget(t *testing.T, w, h int, separate bool, layers ...raster.NamedImage) (*raster.Canvas, *Target, *testJournal) {
	t.Helper()
	c := raster.New()
	src, err := c.Import(w, h, layers)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	drawable, err := c.ActiveLayer(src)
	if err != nil {
		t.Fatalf("ActiveLayer: %v", err)
	}
	dst := src
	if separate {
		if dst, err = c.NewImage(w, h); err != nil {
			t.Fatalf("NewImage: %v", err)
		}
	}
	j := &testJournal{}
	return c, &Target{
		Canvas:   c,
		Source:   src,
		Drawable: drawable,
		Image:    dst,
		Width:    w,
		Height:   h,
		Journal:  j,
	}, j
}

func run(t *testing.T, e Effect, tg *Target, seq []Frame) []Frame {
	t.Helper()
	if err := e.Validate(tg); err != nil {
		t.Fatalf("%s: Validate: %v", e.Name(), err)
	}
	out, err := e.Generate(context.Background(), tg, seq)
	if err != nil {
		t.Fatalf("%s: Generate: %v", e.Name(), err)
	}
	if got, want := len(out)-len(seq), e.Frames(); got != want {
		t.Fatalf("%s: generated %d frames, want %d", e.Name(), got, want)
	}
	return out
}

func assertColor(t *testing.T, img *image.RGBA, x, y int, want color.RGBA) {
	t.Helper()
	if got := img.RGBAAt(x, y); got != want {
		t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
	}
}

func TestTransformFrames(t *testing.T) {
	c, tg, j := newTarget(t, 40, 20, false, raster.NamedImage{Name: "art", Image: solid(40, 20, red)})
	before, _, err := c.Render(tg.Drawable)
	if err != nil {
		t.Fatal(err)
	}

	frames := run(t, &Transform{Count: 4}, tg, nil)

	want := []float64{0, 120, 240, 360}
	for i, f := range frames {
		assertNear(t, "angle", f.Angle, want[i])
		if f.Index != i {
			t.Errorf("frame %d has index %d", i, f.Index)
		}
	}
	stack, err := c.ImageLayers(tg.Image)
	if err != nil {
		t.Fatal(err)
	}
	if len(stack) != 5 {
		t.Fatalf("stack has %d layers, want 5", len(stack))
	}
	if stack[0] != frames[3].Layer || stack[4] != tg.Drawable {
		t.Errorf("stack order %v, want last frame on top and drawable at the bottom", stack)
	}
	if len(j.inserted) != 4 {
		t.Errorf("journal recorded %d inserts, want 4", len(j.inserted))
	}

	w, h, _ := c.LayerSize(frames[0].Layer)
	if w != 40 || h != 20 {
		t.Errorf("unrotated frame is %dx%d, want 40x20", w, h)
	}
	w, h, _ = c.LayerSize(frames[1].Layer)
	if h <= 20 {
		t.Errorf("rotated frame is %dx%d, want it taller than 20", w, h)
	}

	after, _, err := c.Render(tg.Drawable)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before.Pix, after.Pix) {
		t.Error("source drawable pixels changed")
	}
}

func TestTransformScalePlace(t *testing.T) {
	c, tg, _ := newTarget(t, 100, 60, false, raster.NamedImage{Name: "art", Image: solid(100, 60, blue)})

	frames := run(t, &Transform{Count: 3, Scale: true, Place: true}, tg, nil)

	for i, f := range frames {
		sw, sh := ScaledSize(100, 60, ScaleFactor(i, 3))
		w, h, err := c.LayerSize(f.Layer)
		if err != nil {
			t.Fatal(err)
		}
		if w != sw || h != sh {
			t.Errorf("frame %d is %dx%d, want %dx%d", i, w, h, sw, sh)
		}
		off, err := c.LayerOffset(f.Layer)
		if err != nil {
			t.Fatal(err)
		}
		if off != image.Pt(0, 60-sh) {
			t.Errorf("frame %d offset %v, want %v", i, off, image.Pt(0, 60-sh))
		}
	}
	assertNear(t, "last scale", frames[2].Scale, 0.2)
}

func TestTransformInvalid(t *testing.T) {
	_, tg, _ := newTarget(t, 4, 4, false, raster.NamedImage{Name: "art", Image: solid(4, 4, red)})

	tests := []struct {
		name string
		e    *Transform
	}{
		{"one frame", &Transform{Count: 1}},
		{"zero full frames", &Transform{Count: 0, Spacing: SpacingFull}},
		{"scaled to nothing", &Transform{Count: 2, Scale: true}},
		{"unknown pivot", &Transform{Count: 2, Pivot: "corner"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.e.Validate(tg); !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("Validate = %v, want ErrInvalidParameter", err)
			}
		})
	}
	if err := (&Transform{Count: 1, Spacing: SpacingFull}).Validate(tg); err != nil {
		t.Errorf("one full-spacing frame: %v", err)
	}
}

func quadrantSource() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := red
			switch {
			case x >= 4 && y < 4:
				c = green
			case x < 4 && y >= 4:
				c = blue
			case x >= 4 && y >= 4:
				c = white
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestDoorOpens(t *testing.T) {
	c, tg, j := newTarget(t, 8, 8, true, raster.NamedImage{Name: "art", Image: quadrantSource()})

	frames := run(t, &Door{Count: 2}, tg, nil)

	if frames[0].Shift != image.Pt(2, 2) || frames[1].Shift != image.Pt(4, 4) {
		t.Errorf("shifts %v %v, want (2,2) (4,4)", frames[0].Shift, frames[1].Shift)
	}

	half, err := c.RenderFrame(tg.Image, frames[0].Layer)
	if err != nil {
		t.Fatal(err)
	}
	assertColor(t, half, 1, 1, red)
	assertColor(t, half, 6, 1, green)
	assertColor(t, half, 1, 6, blue)
	assertColor(t, half, 6, 6, white)
	assertColor(t, half, 3, 3, color.RGBA{})
	assertColor(t, half, 4, 4, color.RGBA{})

	open, err := c.RenderFrame(tg.Image, frames[1].Layer)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []image.Point{{0, 0}, {7, 0}, {0, 7}, {7, 7}, {3, 4}} {
		assertColor(t, open, p.X, p.Y, color.RGBA{})
	}

	if len(j.scratch) != 1 || len(j.released) != 1 || j.scratch[0] != j.released[0] {
		t.Errorf("scratch %v released %v, want one released copy", j.scratch, j.released)
	}
	if _, _, err := c.ImageSize(j.scratch[0]); !errors.Is(err, raster.ErrUnknownHandle) {
		t.Errorf("source copy still exists: %v", err)
	}
	src, err := c.ImageLayers(tg.Source)
	if err != nil || len(src) != 1 {
		t.Errorf("source stack %v, %v; want one layer", src, err)
	}
}

func TestDoorLastFrameSeparated(t *testing.T) {
	_, tg, _ := newTarget(t, 100, 100, true, raster.NamedImage{Name: "art", Image: solid(100, 100, red)})

	frames := run(t, &Door{Count: 5}, tg, nil)

	if last := frames[4]; last.Index != 5 || last.Shift != image.Pt(50, 50) {
		t.Errorf("last frame %d shift %v, want frame 5 shift (50,50)", last.Index, last.Shift)
	}
	if err := (&Door{}).Validate(tg); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("zero frames: %v, want ErrInvalidParameter", err)
	}
}

func TestLockedOverlay(t *testing.T) {
	c, tg, j := newTarget(t, 10, 10, true, raster.NamedImage{Name: "art", Image: solid(10, 10, green)})

	frames := run(t, &Door{Count: 1}, tg, nil)
	frames = run(t, &LockedOverlay{}, tg, frames)

	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	final := frames[1]
	stack, err := c.ImageLayers(tg.Image)
	if err != nil {
		t.Fatal(err)
	}
	if len(stack) != 2 || stack[0] != final.Layer {
		t.Fatalf("stack %v, want composite on top of one door frame", stack)
	}
	w, h, _ := c.LayerSize(final.Layer)
	off, _ := c.LayerOffset(final.Layer)
	if w != 15 || h != 10 || off != (image.Point{}) {
		t.Errorf("composite %dx%d at %v, want 15x10 at (0,0)", w, h, off)
	}
	if len(j.dropped) != 2 {
		t.Errorf("journal dropped %v, want the locked copy and the overlay", j.dropped)
	}
	if got := j.inserted[len(j.inserted)-1]; got != final.Layer {
		t.Errorf("last journalled insert %d, want composite %d", got, final.Layer)
	}

	pix, _, err := c.Render(final.Layer)
	if err != nil {
		t.Fatal(err)
	}
	if p := pix.RGBAAt(0, 9); p.G < 0xf0 || p.A < 0xf0 || p.R != 0 {
		t.Errorf("overlay pixel = %v, want green", p)
	}
	assertColor(t, pix, 3, 3, color.RGBA{})
}

func TestLockedOverlayNeedsFrame(t *testing.T) {
	_, tg, _ := newTarget(t, 10, 10, true, raster.NamedImage{Name: "art", Image: solid(10, 10, green)})
	if _, err := (&LockedOverlay{}).Generate(context.Background(), tg, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Generate = %v, want ErrInvalidParameter", err)
	}
	_, small, _ := newTarget(t, 4, 4, true, raster.NamedImage{Name: "art", Image: solid(4, 4, green)})
	if err := (&LockedOverlay{}).Validate(small); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Validate = %v, want ErrInvalidParameter", err)
	}
}

func sonarLayers(w, h int) []raster.NamedImage {
	return []raster.NamedImage{
		{Name: "Foreground", Image: solid(w, h, red)},
		{Name: "sky", Image: solid(w, h, blue)},
	}
}

func TestSonarFinalFrame(t *testing.T) {
	c, tg, j := newTarget(t, 100, 100, false, sonarLayers(100, 100)...)
	fg, bg, err := SplitLayers(c, tg.Source)
	if err != nil {
		t.Fatal(err)
	}

	frames := run(t, &Sonar{Count: 10}, tg, nil)

	if len(frames) != 11 {
		t.Fatalf("got %d frames, want 11", len(frames))
	}
	if frames[5].Radius != 35 || frames[0].Radius != 0 {
		t.Errorf("radii %d %d, want 0 and 35", frames[0].Radius, frames[5].Radius)
	}
	for _, l := range []canvas.Layer{fg, bg} {
		if v, _ := c.Visible(l); v {
			t.Errorf("original layer %d still visible", l)
		}
		if was, ok := j.hidden[l]; !ok || !was {
			t.Errorf("journal visibility for %d = %v %v", l, was, ok)
		}
	}
	if name, _ := c.LayerName(frames[10].Layer); name != "Background" {
		t.Errorf("last frame named %q, want Background", name)
	}

	first, err := c.MaskOf(frames[0].Layer)
	if err != nil || first == nil {
		t.Fatalf("frame 0 mask: %v", err)
	}
	for _, a := range first.Pix {
		if a != 0xff {
			t.Fatal("frame 0 mask is not fully opaque")
		}
	}
	mid, err := c.MaskOf(frames[5].Layer)
	if err != nil || mid == nil {
		t.Fatalf("frame 5 mask: %v", err)
	}
	if a := mid.AlphaAt(50, 50).A; a != 0 {
		t.Errorf("mask centre = %d, want 0", a)
	}
	if a := mid.AlphaAt(50, 50+34).A; a != 0 {
		t.Errorf("mask inside radius = %d, want 0", a)
	}
	if a := mid.AlphaAt(50, 50+36).A; a != 0xff {
		t.Errorf("mask outside radius = %d, want 255", a)
	}
	if a := mid.AlphaAt(0, 0).A; a != 0xff {
		t.Errorf("mask corner = %d, want 255", a)
	}

	flat, err := c.RenderFrame(tg.Image, frames[5].Layer)
	if err != nil {
		t.Fatal(err)
	}
	assertColor(t, flat, 0, 0, red)
	assertColor(t, flat, 50, 50, color.RGBA{})
}

func TestSonarBackdrop(t *testing.T) {
	c, tg, _ := newTarget(t, 20, 20, true, sonarLayers(20, 20)...)

	frames := run(t, &Sonar{Count: 4, Background: BackgroundBackdrop}, tg, nil)

	stack, err := c.ImageLayers(tg.Image)
	if err != nil {
		t.Fatal(err)
	}
	if len(stack) != 5 {
		t.Fatalf("target has %d layers, want 4 frames and a backdrop", len(stack))
	}
	if name, _ := c.LayerName(stack[4]); name != "sky" {
		t.Errorf("bottom layer %q, want the background copy", name)
	}
	for _, f := range frames {
		if f.Layer == stack[4] {
			t.Error("backdrop returned as a frame")
		}
	}
	flat, err := c.Flatten(tg.Image)
	if err != nil {
		t.Fatal(err)
	}
	assertColor(t, flat, 10, 10, red)

	src, _ := c.ImageLayers(tg.Source)
	for _, l := range src {
		if v, _ := c.Visible(l); !v {
			t.Errorf("source layer %d hidden in a separate target", l)
		}
	}
}

func TestSonarBackdropInPlace(t *testing.T) {
	c, tg, _ := newTarget(t, 20, 20, false, sonarLayers(20, 20)...)
	fg, bg, _ := SplitLayers(c, tg.Source)

	run(t, &Sonar{Count: 2, Background: BackgroundBackdrop}, tg, nil)

	if v, _ := c.Visible(fg); v {
		t.Error("foreground still visible")
	}
	if v, _ := c.Visible(bg); !v {
		t.Error("background hidden in backdrop mode")
	}
}

func TestSonarPreconditions(t *testing.T) {
	tests := []struct {
		name   string
		layers []raster.NamedImage
		want   error
	}{
		{"missing foreground", []raster.NamedImage{
			{Name: "front", Image: solid(4, 4, red)},
			{Name: "back", Image: solid(4, 4, blue)},
		}, ErrMissingLayer},
		{"one layer", []raster.NamedImage{
			{Name: "foreground", Image: solid(4, 4, red)},
		}, ErrLayerCount},
		{"three layers", []raster.NamedImage{
			{Name: "a", Image: solid(4, 4, red)},
			{Name: "b", Image: solid(4, 4, red)},
			{Name: "c", Image: solid(4, 4, red)},
		}, ErrLayerCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, tg, j := newTarget(t, 4, 4, false, tt.layers...)
			if err := (&Sonar{Count: 3}).Validate(tg); !errors.Is(err, tt.want) {
				t.Fatalf("Validate = %v, want %v", err, tt.want)
			}
			stack, _ := c.ImageLayers(tg.Source)
			if len(stack) != len(tt.layers) || len(j.inserted) != 0 {
				t.Errorf("precondition failure created layers: %v", stack)
			}
		})
	}

	_, tg, _ := newTarget(t, 4, 4, false, sonarLayers(4, 4)...)
	for _, e := range []*Sonar{{Count: 0}, {Count: 2, Easing: "wobble"}, {Count: 2, Background: "none"}} {
		if err := e.Validate(tg); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("%+v: Validate = %v, want ErrInvalidParameter", e, err)
		}
	}
}

func TestGenerateCanceled(t *testing.T) {
	_, tg, j := newTarget(t, 8, 8, true, raster.NamedImage{Name: "art", Image: solid(8, 8, red)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frames, err := (&Door{Count: 3}).Generate(ctx, tg, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Generate = %v, want context.Canceled", err)
	}
	if len(frames) != 0 || len(j.inserted) != 0 {
		t.Errorf("canceled pass produced %d frames", len(frames))
	}
	if len(j.released) != 1 {
		t.Error("source copy not released after cancellation")
	}
}

func TestDoorRejectsThinImage(t *testing.T) {
	for _, size := range []image.Point{{1, 10}, {10, 1}} {
		_, tg, _ := newTarget(t, size.X, size.Y, true, raster.NamedImage{Name: "art", Image: solid(size.X, size.Y, red)})
		if err := (&Door{Count: 3}).Validate(tg); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("%dx%d: Validate = %v, want ErrInvalidParameter", size.X, size.Y, err)
		}
	}
}

func TestDoorSmallDrawable(t *testing.T) {
	tests := []struct {
		name   string
		offset image.Point
		inside image.Point // lands red in frame 1
		empty  image.Point // stays transparent in frame 1
	}{
		{"top-left corner", image.Pt(0, 0), image.Pt(2, 2), image.Pt(10, 10)},
		{"bottom-right corner", image.Pt(60, 60), image.Pt(90, 90), image.Pt(80, 80)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, tg, _ := newTarget(t, 100, 100, true,
				raster.NamedImage{Name: "logo", Image: solid(30, 30, red), Offset: tt.offset},
				raster.NamedImage{Name: "backdrop", Image: solid(100, 100, blue)},
			)
			frames := run(t, &Door{Count: 2}, tg, nil)

			pix, err := c.RenderFrame(tg.Image, frames[0].Layer)
			if err != nil {
				t.Fatal(err)
			}
			assertColor(t, pix, tt.inside.X, tt.inside.Y, red)
			assertColor(t, pix, tt.empty.X, tt.empty.Y, color.RGBA{})
			assertColor(t, pix, 50, 50, color.RGBA{})
		})
	}
}

func TestTransformPivotFollowsOffset(t *testing.T) {
	c, tg, _ := newTarget(t, 20, 20, false,
		raster.NamedImage{Name: "bar", Image: solid(4, 2, red), Offset: image.Pt(5, 5)})

	frames := run(t, &Transform{Count: 3}, tg, nil)

	// 180 degrees about the layer centre leaves the bar where it was.
	w, h, _ := c.LayerSize(frames[1].Layer)
	off, _ := c.LayerOffset(frames[1].Layer)
	if w != 4 || h != 2 || off != image.Pt(5, 5) {
		t.Errorf("half turn: %dx%d at %v, want 4x2 at (5,5)", w, h, off)
	}
}
