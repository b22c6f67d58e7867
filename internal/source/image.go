package source

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/animframes/internal/raster"
	"github.com/ivlev/animframes/internal/system"
)

// ImageSource reads one image file, or every image in a directory as one
// layer each. Layers are named by file stem and stacked in file name order,
// the first file on top.
type ImageSource struct {
	path  string
	paths []string
	log   *zap.Logger
}

func NewImageSource(path string, log *zap.Logger) (*ImageSource, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var paths []string
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && system.HasExtension(entry.Name(), system.ImageExtensions...) {
				paths = append(paths, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(paths)
		if len(paths) == 0 {
			return nil, fmt.Errorf("no images in %s", path)
		}
	} else {
		paths = []string{path}
	}

	return &ImageSource{path: path, paths: paths, log: log}, nil
}

func (s *ImageSource) Name() string {
	return s.path
}

// Load decodes every file in parallel. The canvas takes the size of the
// largest layer.
func (s *ImageSource) Load(ctx context.Context) (*Picture, error) {
	layers := make([]raster.NamedImage, len(s.paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range s.paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := decode(p)
			if err != nil {
				return err
			}
			layers[i] = raster.NamedImage{Name: stem(p), Image: img}
			s.log.Debug("layer decoded",
				zap.String("file", p),
				zap.Int("width", img.Bounds().Dx()),
				zap.Int("height", img.Bounds().Dy()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pic := &Picture{Layers: layers}
	for _, l := range layers {
		b := l.Image.Bounds()
		pic.Width = max(pic.Width, b.Dx())
		pic.Height = max(pic.Height, b.Dy())
	}
	return pic, nil
}

func (s *ImageSource) Close() error {
	return nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
