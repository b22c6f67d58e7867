package effects

import (
	"fmt"
	"image"
	"math"

	"github.com/tanema/gween/ease"
)

// Spacing chooses the divisor of the rotation increment.
type Spacing string

const (
	// SpacingOpen divides a turn by n-1 steps. Frame n-1 lands on a whole
	// turn and repeats the orientation of frame 0.
	SpacingOpen Spacing = "open"
	// SpacingFull divides a turn by n steps, closing the loop without a
	// repeated orientation.
	SpacingFull Spacing = "full"
)

// RotationIncrement returns the angle in degrees between two consecutive
// rotation frames.
func RotationIncrement(n int, spacing Spacing) float64 {
	if spacing == SpacingFull {
		return 360.0 / float64(n)
	}
	return 360.0 / float64(n-1)
}

// RotationAngle returns the angle in degrees of frame i.
func RotationAngle(i, n int, spacing Spacing) float64 {
	return RotationIncrement(n, spacing) * float64(i)
}

// ScaleFactor interpolates linearly from 1.0 at frame 0 to 0.2 at frame n-1.
func ScaleFactor(i, n int) float64 {
	return 1.0 - (float64(i)/float64(n-1))*0.8
}

// ScaledSize truncates w and h multiplied by factor.
func ScaledSize(w, h int, factor float64) (int, int) {
	return int(float64(w) * factor), int(float64(h) * factor)
}

// Quadrant is one quarter of an image split at its integer midpoints.
type Quadrant int

const (
	TopLeft Quadrant = iota
	TopRight
	BottomLeft
	BottomRight
)

// Quadrants lists the quadrants in compositing order.
var Quadrants = [4]Quadrant{TopLeft, TopRight, BottomLeft, BottomRight}

func (q Quadrant) String() string {
	switch q {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	}
	return fmt.Sprintf("quadrant(%d)", int(q))
}

// Rect returns the source rectangle of q in a w x h image. The right and
// bottom quadrants absorb odd remainders.
func (q Quadrant) Rect(w, h int) image.Rectangle {
	midX, midY := w/2, h/2
	switch q {
	case TopLeft:
		return image.Rect(0, 0, midX, midY)
	case TopRight:
		return image.Rect(midX, 0, w, midY)
	case BottomLeft:
		return image.Rect(0, midY, midX, h)
	default:
		return image.Rect(midX, midY, w, h)
	}
}

// Sign returns the direction q moves in as the door opens.
func (q Quadrant) Sign() (int, int) {
	switch q {
	case TopLeft:
		return -1, -1
	case TopRight:
		return 1, -1
	case BottomLeft:
		return -1, 1
	default:
		return 1, 1
	}
}

// Displacement returns the per-axis shift of door frame i of n.
func Displacement(i, n, midX, midY int) (int, int) {
	factor := float64(i) / float64(n)
	return int(factor * float64(midX)), int(factor * float64(midY))
}

// Placement returns where q's rectangle lands for the shift dx, dy.
func (q Quadrant) Placement(w, h, dx, dy int) image.Point {
	r := q.Rect(w, h)
	sx, sy := q.Sign()
	return image.Pt(r.Min.X+sx*dx, r.Min.Y+sy*dy)
}

// MaxRadius is the distance from the integer midpoint of a w x h image to
// its corner.
func MaxRadius(w, h int) float64 {
	midX, midY := float64(w/2), float64(h/2)
	return math.Sqrt(midX*midX + midY*midY)
}

// Radius returns the reveal radius of frame i of n. It starts at 0 and never
// reaches maxRadius.
func Radius(i, n int, maxRadius float64) int {
	return int((float64(i) / float64(n)) * maxRadius)
}

// Easings maps easing names to gween functions. "linear" is handled by
// Radius directly so that the integer radius sequence stays exact.
var Easings = map[string]ease.TweenFunc{
	"in-quad":      ease.InQuad,
	"out-quad":     ease.OutQuad,
	"in-out-quad":  ease.InOutQuad,
	"in-cubic":     ease.InCubic,
	"out-cubic":    ease.OutCubic,
	"in-out-cubic": ease.InOutCubic,
	"in-sine":      ease.InSine,
	"out-sine":     ease.OutSine,
	"in-out-sine":  ease.InOutSine,
	"out-bounce":   ease.OutBounce,
}

// EasedRadius is Radius with the progress i/n passed through fn.
func EasedRadius(i, n int, maxRadius float64, fn ease.TweenFunc) int {
	if fn == nil {
		return Radius(i, n, maxRadius)
	}
	r := fn(float32(i), 0, float32(maxRadius), float32(n))
	if r < 0 {
		return 0
	}
	return int(r)
}

// validEasing reports whether name is empty, "linear" or a key of Easings.
func validEasing(name string) bool {
	if name == "" || name == "linear" {
		return true
	}
	_, ok := Easings[name]
	return ok
}
