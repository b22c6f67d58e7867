package manifest

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ivlev/animframes/internal/effects"
	"github.com/ivlev/animframes/internal/engine"
	"github.com/ivlev/animframes/internal/raster"
)

func plenty(context.Context) (uint64, error) { return 1 << 40, nil }

func runSonar(t *testing.T) (*raster.Canvas, *engine.Result) {
	t.Helper()
	c := raster.New()
	fg := image.NewRGBA(image.Rect(0, 0, 10, 10))
	bg := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := range fg.Pix {
		fg.Pix[i] = 0xff
	}
	bg.Set(0, 0, color.Black)
	img, err := c.Import(10, 10, []raster.NamedImage{
		{Name: "foreground", Image: fg},
		{Name: "background", Image: bg},
	})
	if err != nil {
		t.Fatal(err)
	}
	seq := engine.NewSequencer(c, engine.WithMemoryReader(plenty))
	res, err := seq.Run(context.Background(), engine.Job{
		Source: img,
		Target: engine.TargetSource,
		Phases: []effects.Effect{&effects.Sonar{Count: 3}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return c, res
}

func TestBuildWriteRead(t *testing.T) {
	c, res := runSonar(t)
	m, err := Build(c, res, "layers/", "sonar", true)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(m.Frames) != 4 {
		t.Fatalf("got %d frames, want 4", len(m.Frames))
	}
	if m.Frames[0].Radius != 0 || m.Frames[2].Radius != res.Frames[2].Radius {
		t.Errorf("radii %d, %d", m.Frames[0].Radius, m.Frames[2].Radius)
	}
	if m.Frames[3].File != "frame_0003.png" || m.Frames[3].Size != (Size{10, 10}) {
		t.Errorf("last frame = %+v", m.Frames[3])
	}

	path := filepath.Join(t.TempDir(), "run", "manifest.yaml")
	if err := Write(m, path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.RunID != res.RunID.String() || got.Preset != "sonar" || got.Width != 10 {
		t.Errorf("read back %+v", got)
	}
	if len(got.Frames) != 4 || got.Frames[1].Name != m.Frames[1].Name {
		t.Errorf("frames read back %+v", got.Frames)
	}
}

func TestBuildWithoutDump(t *testing.T) {
	c, res := runSonar(t)
	m, err := Build(c, res, "x", "", false)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range m.Frames {
		if f.File != "" {
			t.Errorf("frame %q has file %q", f.Name, f.File)
		}
	}
}

func TestReadRejectsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(path, []byte("version: \"9\"\nframes: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); err == nil {
		t.Error("unknown version accepted")
	}
}

func TestFindLatest(t *testing.T) {
	root := t.TempDir()
	old := RunDir(root, "sonar", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	fresh := RunDir(root, "sonar", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	for i, dir := range []string{old, fresh} {
		if err := Write(&Manifest{Version: Version}, filepath.Join(dir, "manifest.yaml")); err != nil {
			t.Fatal(err)
		}
		mt := time.Now().Add(time.Duration(i-2) * time.Hour)
		if err := os.Chtimes(filepath.Join(dir, "manifest.yaml"), mt, mt); err != nil {
			t.Fatal(err)
		}
	}

	got, err := FindLatest(root, "manifest.yaml")
	if err != nil {
		t.Fatalf("FindLatest: %v", err)
	}
	if got != filepath.Join(fresh, "manifest.yaml") {
		t.Errorf("FindLatest = %s, want the newer run", got)
	}
	if _, err := FindLatest(t.TempDir(), "manifest.yaml"); err == nil {
		t.Error("empty root returned a manifest")
	}
}
