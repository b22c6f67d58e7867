package raster

import (
	"fmt"
	"image"
	"image/draw"

	"go.uber.org/zap"

	"github.com/ivlev/animframes/internal/canvas"
	"github.com/ivlev/animframes/internal/system"
)

type selectionShape int

const (
	shapeRect selectionShape = iota
	shapeEllipse
)

// selection is a rectangle or an ellipse inscribed in a rectangle, in image
// coordinates. A pixel belongs to it when its centre does.
type selection struct {
	shape selectionShape
	r     image.Rectangle
}

func (s *selection) contains(x, y int) bool {
	if !(image.Point{X: x, Y: y}).In(s.r) {
		return false
	}
	if s.shape == shapeRect {
		return true
	}
	rx := float64(s.r.Dx()) / 2
	ry := float64(s.r.Dy()) / 2
	cx := float64(s.r.Min.X) + rx
	cy := float64(s.r.Min.Y) + ry
	nx := (float64(x) + 0.5 - cx) / rx
	ny := (float64(y) + 0.5 - cy) / ry
	return nx*nx+ny*ny <= 1
}

func (c *Canvas) selectShape(img canvas.Image, shape selectionShape, r image.Rectangle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.image(img)
	if err != nil {
		return err
	}
	d.sel = &selection{shape: shape, r: r.Canon()}
	return nil
}

// SelectRectangle replaces the selection of img with r.
func (c *Canvas) SelectRectangle(img canvas.Image, r image.Rectangle) error {
	return c.selectShape(img, shapeRect, r)
}

// SelectEllipse replaces the selection of img with the ellipse inscribed in r.
func (c *Canvas) SelectEllipse(img canvas.Image, r image.Rectangle) error {
	return c.selectShape(img, shapeEllipse, r)
}

// ClearSelection removes the selection of img.
func (c *Canvas) ClearSelection(img canvas.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.image(img)
	if err != nil {
		return err
	}
	d.sel = nil
	return nil
}

// Copy puts the selected pixels of layer on the clipboard. Without a
// selection the whole layer is copied.
func (c *Canvas) Copy(layer canvas.Layer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.layer(layer)
	if err != nil {
		return err
	}
	d, err := c.image(l.image)
	if err != nil {
		return err
	}

	area := l.pix.Bounds().Add(l.off)
	if d.sel != nil {
		area = area.Intersect(d.sel.r)
	}
	if area.Empty() {
		return fmt.Errorf("%w: layer %d", ErrEmptySelection, layer)
	}

	pix := system.GetImage(image.Rect(0, 0, area.Dx(), area.Dy()))
	draw.Draw(pix, pix.Bounds(), l.pix, area.Min.Sub(l.off), draw.Src)
	if d.sel != nil && d.sel.shape != shapeRect {
		for y := 0; y < area.Dy(); y++ {
			for x := 0; x < area.Dx(); x++ {
				if !d.sel.contains(area.Min.X+x, area.Min.Y+y) {
					i := pix.PixOffset(x, y)
					copy(pix.Pix[i:i+4], []uint8{0, 0, 0, 0})
				}
			}
		}
	}

	if c.clip != nil {
		system.PutImage(c.clip.pix)
	}
	c.clip = &clipboard{pix: pix, origin: area.Min}
	return nil
}

// PasteInto creates a floating selection from the clipboard over dst. The
// floating selection starts at the clipboard origin.
func (c *Canvas) PasteInto(dst canvas.Layer) (canvas.Layer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target, err := c.layer(dst)
	if err != nil {
		return 0, err
	}
	if c.clip == nil {
		return 0, ErrNoClipboard
	}
	pix := system.GetImage(c.clip.pix.Bounds())
	copy(pix.Pix, c.clip.pix.Pix)

	id := canvas.Layer(c.nextID())
	c.layers[id] = &layerData{
		name:     "Floating Selection",
		image:    target.image,
		pix:      pix,
		off:      c.clip.origin,
		visible:  true,
		floating: true,
		target:   dst,
	}
	return id, nil
}

// Anchor composites a floating selection onto the layer it was pasted into,
// clipped to that layer, and deletes the floating selection.
func (c *Canvas) Anchor(floating canvas.Layer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := c.layer(floating)
	if err != nil {
		return err
	}
	if !f.floating {
		return fmt.Errorf("%w: layer %d", ErrNotFloating, floating)
	}
	target, err := c.layer(f.target)
	if err != nil {
		return err
	}
	r := f.pix.Bounds().Add(f.off.Sub(target.off))
	draw.Draw(target.pix, r, f.pix, image.Point{}, draw.Over)
	c.dropLayer(floating)
	return nil
}

// MergeDown merges top into the layer directly below it. The result covers
// the union of both layers, keeps the lower layer's name, position and
// visibility, and has no mask.
func (c *Canvas) MergeDown(img canvas.Image, top canvas.Layer) (canvas.Layer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.image(img)
	if err != nil {
		return 0, err
	}
	i := indexOf(d.stack, top)
	if i < 0 {
		return 0, fmt.Errorf("%w: layer %d", ErrNotInStack, top)
	}
	if i+1 >= len(d.stack) {
		return 0, fmt.Errorf("%w: layer %d", ErrNoLayerBelow, top)
	}
	below := d.stack[i+1]
	up, err := c.layer(top)
	if err != nil {
		return 0, err
	}
	down, err := c.layer(below)
	if err != nil {
		return 0, err
	}

	upPix, err := c.rendered(up)
	if err != nil {
		return 0, err
	}
	downPix, err := c.rendered(down)
	if err != nil {
		return 0, err
	}
	upRect := upPix.Bounds().Add(up.off)
	downRect := downPix.Bounds().Add(down.off)
	union := upRect.Union(downRect)

	pix := image.NewRGBA(image.Rect(0, 0, union.Dx(), union.Dy()))
	draw.Draw(pix, downRect.Sub(union.Min), downPix, image.Point{}, draw.Src)
	draw.Draw(pix, upRect.Sub(union.Min), upPix, image.Point{}, draw.Over)

	id := canvas.Layer(c.nextID())
	c.layers[id] = &layerData{
		name:    down.name,
		image:   img,
		pix:     pix,
		off:     union.Min,
		visible: down.visible,
		inStack: true,
	}

	d.stack[i+1] = id
	d.stack = append(d.stack[:i], d.stack[i+1:]...)
	if d.active == top || d.active == below {
		d.active = id
	}
	c.dropLayer(top)
	c.dropLayer(below)

	c.log.Debug("layers merged",
		zap.Uint32("top", uint32(top)),
		zap.Uint32("below", uint32(below)),
		zap.Uint32("result", uint32(id)),
		zap.Stringer("bounds", union))
	return id, nil
}

func (c *Canvas) rendered(l *layerData) (*image.RGBA, error) {
	if l.mask == 0 {
		return l.pix, nil
	}
	m, err := c.maskData(l.mask)
	if err != nil {
		return nil, err
	}
	return applyMask(l.pix, m.alpha), nil
}
