package source

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/ivlev/animframes/internal/config"
	"github.com/ivlev/animframes/internal/raster"
	"github.com/ivlev/animframes/internal/system"
)

// QRPrefix marks an input path as text to encode instead of a file.
const QRPrefix = "qr:"

// Source produces the picture a pass starts from.
type Source interface {
	Name() string
	Load(ctx context.Context) (*Picture, error)
	Close() error
}

// Picture is a decoded source: the canvas size and its layers, top first.
type Picture struct {
	Width  int
	Height int
	Layers []raster.NamedImage
}

// Open picks the source for cfg.Path: "qr:<text>", a PDF, an image file or
// a directory of layer images.
func Open(cfg config.InputConfig, log *zap.Logger) (Source, error) {
	if log == nil {
		log = zap.NewNop()
	}
	path := cfg.Path
	switch {
	case strings.HasPrefix(path, QRPrefix):
		return NewQRSource(strings.TrimPrefix(path, QRPrefix), cfg.QRSize)
	case system.HasExtension(path, ".pdf"):
		return NewFitzPDFSource(path, cfg.Page, cfg.DPI)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return NewImageSource(path, log)
}

// FitzPDFSource renders one PDF page as a single layer.
type FitzPDFSource struct {
	doc  *fitz.Document
	path string
	page int
	dpi  int
}

func NewFitzPDFSource(path string, page, dpi int) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	if page < 0 || page >= doc.NumPage() {
		n := doc.NumPage()
		doc.Close()
		return nil, fmt.Errorf("page %d out of range, document has %d", page, n)
	}
	return &FitzPDFSource{doc: doc, path: path, page: page, dpi: dpi}, nil
}

func (f *FitzPDFSource) Name() string {
	return fmt.Sprintf("%s#%d", f.path, f.page)
}

func (f *FitzPDFSource) Load(ctx context.Context) (*Picture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := f.doc.ImageDPI(f.page, float64(f.dpi))
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", f.page, err)
	}
	return single(fmt.Sprintf("page %d", f.page+1), img), nil
}

func (f *FitzPDFSource) Close() error {
	return f.doc.Close()
}

func single(name string, img image.Image) *Picture {
	b := img.Bounds()
	return &Picture{
		Width:  b.Dx(),
		Height: b.Dy(),
		Layers: []raster.NamedImage{{Name: name, Image: img}},
	}
}
