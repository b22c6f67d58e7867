// Package raster is an in-memory host canvas implementing canvas.Adapter
// over premultiplied RGBA layers. It is the reference host used by the CLI
// and by the end-to-end tests: layer stacks, floating selections, 8-bit
// layer masks and merge-down behave like a desktop image editor's.
package raster

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"go.uber.org/zap"

	"github.com/ivlev/animframes/internal/canvas"
)

var (
	ErrUnknownHandle  = errors.New("raster: unknown handle")
	ErrNoClipboard    = errors.New("raster: clipboard is empty")
	ErrNotFloating    = errors.New("raster: layer is not a floating selection")
	ErrNoLayerBelow   = errors.New("raster: no layer below")
	ErrBusy           = errors.New("raster: image already has an open batch")
	ErrNoBatch        = errors.New("raster: no open batch")
	ErrInvalidSize    = errors.New("raster: invalid size")
	ErrEmptySelection = errors.New("raster: selection does not intersect layer")
	ErrWrongImage     = errors.New("raster: layer belongs to another image")
	ErrNotInStack     = errors.New("raster: layer is not in the image stack")
	ErrInStack        = errors.New("raster: layer is already in a stack")
)

// Canvas holds every image, layer and mask created through it. All methods
// are safe for concurrent use, but a generation pass expects exclusive use
// of the images it batches.
type Canvas struct {
	mu        sync.Mutex
	next      uint32
	images    map[canvas.Image]*imageData
	layers    map[canvas.Layer]*layerData
	masks     map[canvas.Mask]*maskData
	clip      *clipboard
	refreshes int
	log       *zap.Logger
}

type imageData struct {
	width, height int
	stack         []canvas.Layer // top first
	active        canvas.Layer
	sel           *selection
	batch         bool
}

type layerData struct {
	name     string
	image    canvas.Image
	pix      *image.RGBA // local coordinates, origin at 0,0
	off      image.Point
	visible  bool
	mask     canvas.Mask
	inStack  bool
	floating bool
	target   canvas.Layer // floating selections only
}

type clipboard struct {
	pix    *image.RGBA
	origin image.Point
}

// Option configures a Canvas.
type Option func(*Canvas)

// WithLogger sets the logger used for canvas diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Canvas) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns an empty canvas.
func New(opts ...Option) *Canvas {
	c := &Canvas{
		images: make(map[canvas.Image]*imageData),
		layers: make(map[canvas.Layer]*layerData),
		masks:  make(map[canvas.Mask]*maskData),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ canvas.Adapter = (*Canvas)(nil)

func (c *Canvas) nextID() uint32 {
	c.next++
	return c.next
}

func (c *Canvas) image(img canvas.Image) (*imageData, error) {
	d, ok := c.images[img]
	if !ok {
		return nil, fmt.Errorf("%w: image %d", ErrUnknownHandle, img)
	}
	return d, nil
}

func (c *Canvas) layer(l canvas.Layer) (*layerData, error) {
	d, ok := c.layers[l]
	if !ok {
		return nil, fmt.Errorf("%w: layer %d", ErrUnknownHandle, l)
	}
	return d, nil
}

func (c *Canvas) maskData(m canvas.Mask) (*maskData, error) {
	d, ok := c.masks[m]
	if !ok {
		return nil, fmt.Errorf("%w: mask %d", ErrUnknownHandle, m)
	}
	return d, nil
}

// NewImage creates an empty image.
func (c *Canvas) NewImage(width, height int) (canvas.Image, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	id := canvas.Image(c.nextID())
	c.images[id] = &imageData{width: width, height: height}
	c.log.Debug("image created", zap.Uint32("image", uint32(id)), zap.Int("width", width), zap.Int("height", height))
	return id, nil
}

// DuplicateImage copies an image with all its layers, masks and the active
// layer. The selection is not copied.
func (c *Canvas) DuplicateImage(img canvas.Image) (canvas.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	src, err := c.image(img)
	if err != nil {
		return 0, err
	}
	id := canvas.Image(c.nextID())
	dup := &imageData{width: src.width, height: src.height}
	for _, l := range src.stack {
		nl, err := c.duplicateLayer(l, id)
		if err != nil {
			return 0, err
		}
		c.layers[nl].inStack = true
		dup.stack = append(dup.stack, nl)
		if l == src.active {
			dup.active = nl
		}
	}
	c.images[id] = dup
	c.log.Debug("image duplicated", zap.Uint32("from", uint32(img)), zap.Uint32("image", uint32(id)))
	return id, nil
}

// DeleteImage removes an image and every layer and mask it owns.
func (c *Canvas) DeleteImage(img canvas.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.image(img); err != nil {
		return err
	}
	for id, l := range c.layers {
		if l.image == img {
			c.dropLayer(id)
		}
	}
	delete(c.images, img)
	c.log.Debug("image deleted", zap.Uint32("image", uint32(img)))
	return nil
}

// ImageSize returns the canvas size of img.
func (c *Canvas) ImageSize(img canvas.Image) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.image(img)
	if err != nil {
		return 0, 0, err
	}
	return d.width, d.height, nil
}

// ImageLayers returns the layer stack of img, top first.
func (c *Canvas) ImageLayers(img canvas.Image) ([]canvas.Layer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.image(img)
	if err != nil {
		return nil, err
	}
	out := make([]canvas.Layer, len(d.stack))
	copy(out, d.stack)
	return out, nil
}

// ActiveLayer returns the active layer of img.
func (c *Canvas) ActiveLayer(img canvas.Image) (canvas.Layer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.image(img)
	if err != nil {
		return 0, err
	}
	if d.active == 0 {
		return 0, fmt.Errorf("%w: image %d has no active layer", ErrNotInStack, img)
	}
	return d.active, nil
}

// SetActiveLayer makes layer the active layer of img.
func (c *Canvas) SetActiveLayer(img canvas.Image, layer canvas.Layer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.image(img)
	if err != nil {
		return err
	}
	if indexOf(d.stack, layer) < 0 {
		return fmt.Errorf("%w: layer %d", ErrNotInStack, layer)
	}
	d.active = layer
	return nil
}

// BeginBatch opens the single undo batch allowed per image.
func (c *Canvas) BeginBatch(img canvas.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.image(img)
	if err != nil {
		return err
	}
	if d.batch {
		return fmt.Errorf("%w: image %d", ErrBusy, img)
	}
	d.batch = true
	return nil
}

// EndBatch closes the batch opened by BeginBatch.
func (c *Canvas) EndBatch(img canvas.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.image(img)
	if err != nil {
		return err
	}
	if !d.batch {
		return fmt.Errorf("%w: image %d", ErrNoBatch, img)
	}
	d.batch = false
	return nil
}

// RefreshDisplay records a display flush.
func (c *Canvas) RefreshDisplay() {
	c.mu.Lock()
	c.refreshes++
	c.mu.Unlock()
}

// Refreshes reports how many times RefreshDisplay was called.
func (c *Canvas) Refreshes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshes
}

func indexOf(stack []canvas.Layer, l canvas.Layer) int {
	for i, s := range stack {
		if s == l {
			return i
		}
	}
	return -1
}
