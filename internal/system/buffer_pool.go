package system

import (
	"image"
	"sync"
)

// pools holds one sync.Pool of *image.RGBA per buffer size. Pooled buffers
// always start at the origin.
var pools sync.Map // image.Point -> *sync.Pool

func poolFor(size image.Point) *sync.Pool {
	if p, ok := pools.Load(size); ok {
		return p.(*sync.Pool)
	}
	p, _ := pools.LoadOrStore(size, &sync.Pool{
		New: func() any {
			return image.NewRGBA(image.Rectangle{Max: size})
		},
	})
	return p.(*sync.Pool)
}

// GetImage returns a transparent *image.RGBA the size of rect, anchored at
// the origin. Clipboard contents, floating selections and rendered frames
// are taken from here.
func GetImage(rect image.Rectangle) *image.RGBA {
	img := poolFor(rect.Size()).Get().(*image.RGBA)
	clear(img.Pix)
	return img
}

// PutImage hands img back for reuse. The caller must not use it afterwards.
// Buffers not anchored at the origin are left to the garbage collector.
func PutImage(img *image.RGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) || img.Rect.Empty() {
		return
	}
	poolFor(img.Rect.Size()).Put(img)
}
