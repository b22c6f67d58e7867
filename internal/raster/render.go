package raster

import (
	"image"
	"image/draw"

	"github.com/ivlev/animframes/internal/canvas"
	"github.com/ivlev/animframes/internal/system"
)

// Render returns the pixels of layer with its mask applied, together with
// the layer offset in image coordinates. The returned image is a copy.
func (c *Canvas) Render(layer canvas.Layer) (*image.RGBA, image.Point, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.layer(layer)
	if err != nil {
		return nil, image.Point{}, err
	}
	pix, err := c.rendered(l)
	if err != nil {
		return nil, image.Point{}, err
	}
	if pix == l.pix {
		pix = cloneRGBA(pix)
	}
	return pix, l.off, nil
}

// RenderFrame places one layer, mask applied, on a transparent image-sized
// canvas. Visibility is ignored: every frame is rendered on its own. The
// result comes from the shared buffer pool; callers done with it may return
// it with system.PutImage.
func (c *Canvas) RenderFrame(img canvas.Image, layer canvas.Layer) (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.image(img)
	if err != nil {
		return nil, err
	}
	l, err := c.layer(layer)
	if err != nil {
		return nil, err
	}
	pix, err := c.rendered(l)
	if err != nil {
		return nil, err
	}
	out := system.GetImage(image.Rect(0, 0, d.width, d.height))
	draw.Draw(out, pix.Bounds().Add(l.off), pix, image.Point{}, draw.Over)
	return out, nil
}

// Flatten composites the visible layers of img bottom to top.
func (c *Canvas) Flatten(img canvas.Image) (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.image(img)
	if err != nil {
		return nil, err
	}
	out := image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	for i := len(d.stack) - 1; i >= 0; i-- {
		l, err := c.layer(d.stack[i])
		if err != nil {
			return nil, err
		}
		if !l.visible {
			continue
		}
		pix, err := c.rendered(l)
		if err != nil {
			return nil, err
		}
		draw.Draw(out, pix.Bounds().Add(l.off), pix, image.Point{}, draw.Over)
	}
	return out, nil
}
