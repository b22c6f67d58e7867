// Package canvas describes the capability surface that frame generators
// need from a host canvas: layer stacks, transforms, selections, masks and
// undo batches. Generators depend only on these interfaces and treat every
// handle as an opaque token owned by the host.
package canvas

import "image"

// Image identifies an image (a layer stack) owned by the host.
type Image uint32

// Layer identifies a layer owned by the host. A Layer produced by a
// generator is one animation frame.
type Layer uint32

// Mask identifies a layer mask owned by the host.
type Mask uint32

// Stack positions for InsertLayer. Positions count from the top of the stack.
const (
	PositionTop    = 0
	PositionBottom = -1
)

// Images manages whole images.
type Images interface {
	NewImage(width, height int) (Image, error)
	DuplicateImage(img Image) (Image, error)
	DeleteImage(img Image) error
	ImageSize(img Image) (width, height int, err error)
	// ImageLayers returns the layer stack, top first.
	ImageLayers(img Image) ([]Layer, error)
	ActiveLayer(img Image) (Layer, error)
	SetActiveLayer(img Image, layer Layer) error
}

// Layers creates, places and inspects layers.
type Layers interface {
	// NewLayer creates a transparent layer that is not yet part of any stack.
	NewLayer(img Image, width, height int, name string) (Layer, error)
	// DuplicateLayer copies layer (pixels, offsets and mask) for use in dst.
	// The copy is not inserted.
	DuplicateLayer(layer Layer, dst Image) (Layer, error)
	InsertLayer(img Image, layer Layer, position int) error
	RemoveLayer(img Image, layer Layer) error
	LayerName(layer Layer) (string, error)
	SetLayerName(layer Layer, name string) error
	LayerSize(layer Layer) (width, height int, err error)
	// LayerOffset returns the top-left corner of layer in image coordinates.
	LayerOffset(layer Layer) (image.Point, error)
	SetVisible(layer Layer, visible bool) error
	Visible(layer Layer) (bool, error)
}

// Transforms moves and resamples layers. Coordinates are image coordinates.
type Transforms interface {
	// Rotate turns layer clockwise by radians around pivot, growing the
	// layer to the rotated bounds.
	Rotate(layer Layer, radians float64, pivot Point) error
	// Scale resamples layer to width x height around its centre.
	Scale(layer Layer, width, height int) error
	SetOffset(layer Layer, x, y int) error
	Translate(layer Layer, dx, dy int) error
}

// Selections works with the per-image selection, clipboard and floating
// selections.
type Selections interface {
	SelectRectangle(img Image, r image.Rectangle) error
	SelectEllipse(img Image, r image.Rectangle) error
	ClearSelection(img Image) error
	// Copy puts the selected part of layer on the clipboard.
	Copy(layer Layer) error
	// PasteInto creates a floating selection over dst from the clipboard.
	PasteInto(dst Layer) (Layer, error)
	// Anchor merges a floating selection into the layer it was pasted into.
	Anchor(floating Layer) error
	MergeDown(img Image, top Layer) (Layer, error)
}

// Masks manages layer masks.
type Masks interface {
	// CreateMask creates a fully opaque mask sized to layer.
	CreateMask(layer Layer) (Mask, error)
	AttachMask(layer Layer, mask Mask) error
	// FillMask fills the selected region of the mask's image, or the whole
	// mask without a selection. opaque=false makes the region transparent.
	FillMask(mask Mask, opaque bool) error
}

// Batches groups a generation pass into one host undo step.
type Batches interface {
	BeginBatch(img Image) error
	EndBatch(img Image) error
	RefreshDisplay()
}

// Adapter is the full host capability set consumed by the generators.
type Adapter interface {
	Images
	Layers
	Transforms
	Selections
	Masks
	Batches
}

// Point is a sub-pixel position in image coordinates.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Ellipse returns the bounding box of a circle of radius r centred on c.
func Ellipse(c image.Point, r int) image.Rectangle {
	return image.Rect(c.X-r, c.Y-r, c.X-r+2*r, c.Y-r+2*r)
}
