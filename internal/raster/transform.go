package raster

import (
	"fmt"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ivlev/animframes/internal/canvas"
)

// boundsEpsilon absorbs floating point noise when snapping rotated corners
// to whole pixels.
const boundsEpsilon = 1e-9

// Rotate turns layer clockwise (y axis pointing down) by radians around
// pivot. The layer grows to the bounding box of the rotated rectangle.
// Rotations by whole turns leave the pixels untouched.
func (c *Canvas) Rotate(layer canvas.Layer, radians float64, pivot canvas.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.layer(layer)
	if err != nil {
		return err
	}

	turn := math.Mod(radians, 2*math.Pi)
	if math.Abs(turn) < boundsEpsilon || math.Abs(math.Abs(turn)-2*math.Pi) < boundsEpsilon {
		return nil
	}

	sin, cos := math.Sincos(radians)
	w, h := float64(l.pix.Bounds().Dx()), float64(l.pix.Bounds().Dy())
	ox, oy := float64(l.off.X), float64(l.off.Y)

	// Source local -> image coordinates, rotated about the pivot.
	m := f64.Aff3{
		cos, -sin, cos*(ox-pivot.X) - sin*(oy-pivot.Y) + pivot.X,
		sin, cos, sin*(ox-pivot.X) + cos*(oy-pivot.Y) + pivot.Y,
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range [4][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}} {
		x := m[0]*p[0] + m[1]*p[1] + m[2]
		y := m[3]*p[0] + m[4]*p[1] + m[5]
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	bounds := image.Rect(
		int(math.Floor(minX+boundsEpsilon)),
		int(math.Floor(minY+boundsEpsilon)),
		int(math.Ceil(maxX-boundsEpsilon)),
		int(math.Ceil(maxY-boundsEpsilon)),
	)
	if bounds.Empty() {
		return fmt.Errorf("%w: rotated layer %d is empty", ErrInvalidSize, layer)
	}

	// Shift into the local coordinates of the grown layer.
	m[2] -= float64(bounds.Min.X)
	m[5] -= float64(bounds.Min.Y)

	local := image.Rect(0, 0, bounds.Dx(), bounds.Dy())
	pix := image.NewRGBA(local)
	xdraw.BiLinear.Transform(pix, m, l.pix, l.pix.Bounds(), xdraw.Src, nil)

	if l.mask != 0 {
		md, err := c.maskData(l.mask)
		if err != nil {
			return err
		}
		alpha := image.NewAlpha(local)
		xdraw.BiLinear.Transform(alpha, m, md.alpha, md.alpha.Bounds(), xdraw.Src, nil)
		md.alpha = alpha
	}

	l.pix = pix
	l.off = bounds.Min
	return nil
}

// Scale resamples layer to width x height, keeping its centre in place.
func (c *Canvas) Scale(layer canvas.Layer, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: scale layer %d to %dx%d", ErrInvalidSize, layer, width, height)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.layer(layer)
	if err != nil {
		return err
	}
	old := l.pix.Bounds()
	if old.Dx() == width && old.Dy() == height {
		return nil
	}

	local := image.Rect(0, 0, width, height)
	pix := image.NewRGBA(local)
	xdraw.CatmullRom.Scale(pix, local, l.pix, old, xdraw.Src, nil)

	if l.mask != 0 {
		md, err := c.maskData(l.mask)
		if err != nil {
			return err
		}
		alpha := image.NewAlpha(local)
		xdraw.CatmullRom.Scale(alpha, local, md.alpha, md.alpha.Bounds(), xdraw.Src, nil)
		md.alpha = alpha
	}

	l.pix = pix
	l.off = l.off.Add(image.Pt((old.Dx()-width)/2, (old.Dy()-height)/2))
	return nil
}

// SetOffset moves layer so that its top-left corner is at x, y.
func (c *Canvas) SetOffset(layer canvas.Layer, x, y int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.layer(layer)
	if err != nil {
		return err
	}
	l.off = image.Pt(x, y)
	return nil
}

// Translate moves layer by dx, dy.
func (c *Canvas) Translate(layer canvas.Layer, dx, dy int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.layer(layer)
	if err != nil {
		return err
	}
	l.off = l.off.Add(image.Pt(dx, dy))
	return nil
}
