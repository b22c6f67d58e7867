package raster

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/ivlev/animframes/internal/canvas"
	"github.com/ivlev/animframes/internal/system"
)

// NewLayer creates a transparent layer owned by img.
func (c *Canvas) NewLayer(img canvas.Image, width, height int, name string) (canvas.Layer, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: layer %q %dx%d", ErrInvalidSize, name, width, height)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.image(img); err != nil {
		return 0, err
	}
	id := canvas.Layer(c.nextID())
	c.layers[id] = &layerData{
		name:    name,
		image:   img,
		pix:     image.NewRGBA(image.Rect(0, 0, width, height)),
		visible: true,
	}
	return id, nil
}

// DuplicateLayer copies layer into dst without inserting it.
func (c *Canvas) DuplicateLayer(layer canvas.Layer, dst canvas.Image) (canvas.Layer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.image(dst); err != nil {
		return 0, err
	}
	return c.duplicateLayer(layer, dst)
}

func (c *Canvas) duplicateLayer(layer canvas.Layer, dst canvas.Image) (canvas.Layer, error) {
	src, err := c.layer(layer)
	if err != nil {
		return 0, err
	}
	id := canvas.Layer(c.nextID())
	dup := &layerData{
		name:    src.name,
		image:   dst,
		pix:     cloneRGBA(src.pix),
		off:     src.off,
		visible: src.visible,
	}
	if src.mask != 0 {
		m, err := c.maskData(src.mask)
		if err != nil {
			return 0, err
		}
		mid := canvas.Mask(c.nextID())
		c.masks[mid] = &maskData{alpha: cloneAlpha(m.alpha), layer: id}
		dup.mask = mid
	}
	c.layers[id] = dup
	return id, nil
}

// InsertLayer places layer in the stack of img. Position 0 is the top,
// a negative position the bottom.
func (c *Canvas) InsertLayer(img canvas.Image, layer canvas.Layer, position int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.image(img)
	if err != nil {
		return err
	}
	l, err := c.layer(layer)
	if err != nil {
		return err
	}
	if l.image != img {
		return fmt.Errorf("%w: layer %d", ErrWrongImage, layer)
	}
	if l.inStack || l.floating {
		return fmt.Errorf("%w: layer %d", ErrInStack, layer)
	}
	if position < 0 || position > len(d.stack) {
		position = len(d.stack)
	}
	d.stack = append(d.stack, 0)
	copy(d.stack[position+1:], d.stack[position:])
	d.stack[position] = layer
	l.inStack = true
	if d.active == 0 {
		d.active = layer
	}
	return nil
}

// RemoveLayer takes layer out of the stack of img and deletes it.
func (c *Canvas) RemoveLayer(img canvas.Image, layer canvas.Layer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.image(img)
	if err != nil {
		return err
	}
	l, err := c.layer(layer)
	if err != nil {
		return err
	}
	if l.image != img {
		return fmt.Errorf("%w: layer %d", ErrWrongImage, layer)
	}
	c.unstack(d, layer)
	c.dropLayer(layer)
	return nil
}

func (c *Canvas) unstack(d *imageData, layer canvas.Layer) {
	i := indexOf(d.stack, layer)
	if i < 0 {
		return
	}
	d.stack = append(d.stack[:i], d.stack[i+1:]...)
	if d.active == layer {
		d.active = 0
		if len(d.stack) > 0 {
			d.active = d.stack[min(i, len(d.stack)-1)]
		}
	}
}

func (c *Canvas) dropLayer(layer canvas.Layer) {
	l, ok := c.layers[layer]
	if !ok {
		return
	}
	if l.mask != 0 {
		delete(c.masks, l.mask)
	}
	if l.floating {
		system.PutImage(l.pix)
	}
	delete(c.layers, layer)
}

// LayerName returns the name of layer.
func (c *Canvas) LayerName(layer canvas.Layer) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.layer(layer)
	if err != nil {
		return "", err
	}
	return l.name, nil
}

// SetLayerName renames layer.
func (c *Canvas) SetLayerName(layer canvas.Layer, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.layer(layer)
	if err != nil {
		return err
	}
	l.name = name
	return nil
}

// LayerSize returns the pixel size of layer.
func (c *Canvas) LayerSize(layer canvas.Layer) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.layer(layer)
	if err != nil {
		return 0, 0, err
	}
	b := l.pix.Bounds()
	return b.Dx(), b.Dy(), nil
}

// LayerOffset returns the position of layer in image coordinates.
func (c *Canvas) LayerOffset(layer canvas.Layer) (image.Point, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.layer(layer)
	if err != nil {
		return image.Point{}, err
	}
	return l.off, nil
}

// SetVisible shows or hides layer.
func (c *Canvas) SetVisible(layer canvas.Layer, visible bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.layer(layer)
	if err != nil {
		return err
	}
	l.visible = visible
	return nil
}

// Visible reports whether layer is shown.
func (c *Canvas) Visible(layer canvas.Layer) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.layer(layer)
	if err != nil {
		return false, err
	}
	return l.visible, nil
}

// Import creates an image of the given size from decoded pictures. layers
// are given top first; each becomes a visible layer at offset zero and the
// top one is made active.
func (c *Canvas) Import(width, height int, layers []NamedImage) (canvas.Image, error) {
	img, err := c.NewImage(width, height)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	d := c.images[img]
	for _, nl := range layers {
		b := nl.Image.Bounds()
		if b.Empty() {
			for _, l := range d.stack {
				c.dropLayer(l)
			}
			delete(c.images, img)
			return 0, fmt.Errorf("%w: layer %q is empty", ErrInvalidSize, nl.Name)
		}
		pix := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(pix, pix.Bounds(), nl.Image, b.Min, draw.Src)

		id := canvas.Layer(c.nextID())
		c.layers[id] = &layerData{
			name:    nl.Name,
			image:   img,
			pix:     pix,
			off:     nl.Offset,
			visible: true,
			inStack: true,
		}
		d.stack = append(d.stack, id)
	}
	if len(d.stack) > 0 {
		d.active = d.stack[0]
	}
	return img, nil
}

// NamedImage is one decoded layer handed to Import.
type NamedImage struct {
	Name   string
	Image  image.Image
	Offset image.Point
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
