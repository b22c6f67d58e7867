package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/animframes/internal/canvas"
	"github.com/ivlev/animframes/internal/engine"
)

const Version = "1"

// Manifest describes one committed pass and the files dumped for it.
type Manifest struct {
	Version string    `yaml:"version"`
	RunID   string    `yaml:"run_id"`
	Created time.Time `yaml:"created"`
	Source  string    `yaml:"source"`
	Preset  string    `yaml:"preset,omitempty"`
	Width   int       `yaml:"width"`
	Height  int       `yaml:"height"`
	Frames  []Frame   `yaml:"frames"`
}

// Frame is one generated layer, bottom to top.
type Frame struct {
	Index  int     `yaml:"index"`
	Name   string  `yaml:"name"`
	Phase  string  `yaml:"phase"`
	Offset Point   `yaml:"offset"`
	Size   Size    `yaml:"size"`
	Angle  float64 `yaml:"angle,omitempty"`
	Scale  float64 `yaml:"scale,omitempty"`
	Shift  Point   `yaml:"shift,omitempty"`
	Radius int     `yaml:"radius,omitempty"`
	File   string  `yaml:"file,omitempty"`
}

type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

type Size struct {
	W int `yaml:"w"`
	H int `yaml:"h"`
}

// FrameFile is the PNG name of the i-th frame in display order.
func FrameFile(i int) string {
	return fmt.Sprintf("frame_%04d.png", i)
}

// Build describes res. Layer geometry is read back from c; files are named
// with FrameFile when dumped is set.
func Build(c canvas.Layers, res *engine.Result, source, preset string, dumped bool) (*Manifest, error) {
	m := &Manifest{
		Version: Version,
		RunID:   res.RunID.String(),
		Created: time.Now().UTC().Truncate(time.Second),
		Source:  source,
		Preset:  preset,
		Width:   res.Width,
		Height:  res.Height,
		Frames:  make([]Frame, 0, len(res.Frames)),
	}
	for i, f := range res.Frames {
		off, err := c.LayerOffset(f.Layer)
		if err != nil {
			return nil, fmt.Errorf("frame %q: %w", f.Name, err)
		}
		w, h, err := c.LayerSize(f.Layer)
		if err != nil {
			return nil, fmt.Errorf("frame %q: %w", f.Name, err)
		}
		fr := Frame{
			Index:  i,
			Name:   f.Name,
			Phase:  f.Phase,
			Offset: Point{off.X, off.Y},
			Size:   Size{w, h},
			Angle:  f.Angle,
			Scale:  f.Scale,
			Shift:  Point{f.Shift.X, f.Shift.Y},
			Radius: f.Radius,
		}
		if dumped {
			fr.File = FrameFile(i)
		}
		m.Frames = append(m.Frames, fr)
	}
	return m, nil
}

// Write stores m as YAML, creating the parent directory.
func Write(m *Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Version != Version {
		return nil, fmt.Errorf("unsupported manifest version %q", m.Version)
	}
	return &m, nil
}

// RunDir is the timestamped directory a run dumps into under root.
func RunDir(root, name string, now time.Time) string {
	return filepath.Join(root, fmt.Sprintf("%s_%s", name, now.Format("2006-01-02_15-04-05")))
}

// FindLatest returns the newest manifest among the run directories of root.
func FindLatest(root, manifestName string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("failed to read runs directory: %w", err)
	}
	var latest string
	var latestTime time.Time
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(root, e.Name(), manifestName)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latest, latestTime = path, info.ModTime()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no %s found under %s", manifestName, root)
	}
	return latest, nil
}
