package raster

import (
	"fmt"
	"image"

	"github.com/ivlev/animframes/internal/canvas"
)

// maskData is an 8-bit coverage mask in the local coordinates of the layer
// it belongs to. 255 keeps the layer pixel, 0 hides it.
type maskData struct {
	alpha *image.Alpha
	layer canvas.Layer
}

// CreateMask creates a fully opaque mask sized to layer. The mask is not
// attached yet.
func (c *Canvas) CreateMask(layer canvas.Layer) (canvas.Mask, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.layer(layer)
	if err != nil {
		return 0, err
	}
	alpha := image.NewAlpha(l.pix.Bounds())
	for i := range alpha.Pix {
		alpha.Pix[i] = 0xff
	}
	id := canvas.Mask(c.nextID())
	c.masks[id] = &maskData{alpha: alpha, layer: layer}
	return id, nil
}

// AttachMask attaches mask to layer, replacing any previous mask.
func (c *Canvas) AttachMask(layer canvas.Layer, mask canvas.Mask) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.layer(layer)
	if err != nil {
		return err
	}
	m, err := c.maskData(mask)
	if err != nil {
		return err
	}
	if m.alpha.Bounds() != l.pix.Bounds() {
		return fmt.Errorf("%w: mask %v does not match layer %v", ErrInvalidSize, m.alpha.Bounds(), l.pix.Bounds())
	}
	if l.mask != 0 && l.mask != mask {
		delete(c.masks, l.mask)
	}
	l.mask = mask
	m.layer = layer
	return nil
}

// FillMask sets the selected region of the mask to opaque or transparent.
// The selection of the layer's image decides the region; without a
// selection the whole mask is filled.
func (c *Canvas) FillMask(mask canvas.Mask, opaque bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := c.maskData(mask)
	if err != nil {
		return err
	}
	l, err := c.layer(m.layer)
	if err != nil {
		return err
	}
	d, err := c.image(l.image)
	if err != nil {
		return err
	}

	var v uint8
	if opaque {
		v = 0xff
	}
	b := m.alpha.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if d.sel == nil || d.sel.contains(x+l.off.X, y+l.off.Y) {
				m.alpha.Pix[m.alpha.PixOffset(x, y)] = v
			}
		}
	}
	return nil
}

// MaskOf returns a copy of the mask attached to layer, or nil.
func (c *Canvas) MaskOf(layer canvas.Layer) (*image.Alpha, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.layer(layer)
	if err != nil {
		return nil, err
	}
	if l.mask == 0 {
		return nil, nil
	}
	m, err := c.maskData(l.mask)
	if err != nil {
		return nil, err
	}
	return cloneAlpha(m.alpha), nil
}

func cloneAlpha(src *image.Alpha) *image.Alpha {
	dst := image.NewAlpha(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

// applyMask returns the layer pixels with the mask multiplied in.
func applyMask(pix *image.RGBA, mask *image.Alpha) *image.RGBA {
	out := cloneRGBA(pix)
	if mask == nil {
		return out
	}
	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			a := uint32(mask.AlphaAt(x, y).A)
			if a == 0xff {
				continue
			}
			i := out.PixOffset(x, y)
			for k := 0; k < 4; k++ {
				out.Pix[i+k] = uint8(uint32(out.Pix[i+k]) * a / 0xff)
			}
		}
	}
	return out
}
