package config

import (
	"fmt"
	"sort"

	"github.com/ivlev/animframes/internal/canvas"
	"github.com/ivlev/animframes/internal/effects"
	"github.com/ivlev/animframes/internal/engine"
)

// Phase kinds.
const (
	KindRotate        = "rotate"
	KindDoorOpen      = "door-open"
	KindLockedOverlay = "locked-overlay"
	KindRadialMask    = "radial-mask"
)

// Plan is the ordered list of phases one pass runs. An empty Phases list
// takes the phases of Preset.
type Plan struct {
	Preset string  `mapstructure:"preset" yaml:"preset"`
	Target string  `mapstructure:"target" yaml:"target"`
	Phases []Phase `mapstructure:"phases" yaml:"phases"`
}

// Phase configures one generator. Fields that do not apply to Kind are
// ignored.
type Phase struct {
	Kind   string `mapstructure:"kind" yaml:"kind"`
	Frames int    `mapstructure:"frames" yaml:"frames"`
	// Scale and Translate apply to rotate phases.
	Scale     bool   `mapstructure:"scale" yaml:"scale,omitempty"`
	Translate bool   `mapstructure:"translate" yaml:"translate,omitempty"`
	Spacing   string `mapstructure:"spacing" yaml:"spacing,omitempty"`
	Pivot     string `mapstructure:"pivot" yaml:"pivot,omitempty"`
	// Background and Easing apply to radial-mask phases.
	Background string `mapstructure:"background" yaml:"background,omitempty"`
	Easing     string `mapstructure:"easing" yaml:"easing,omitempty"`
}

var presets = map[string]Plan{
	"rotate": {
		Target: string(engine.TargetSource),
		Phases: []Phase{{Kind: KindRotate, Frames: 300}},
	},
	"rotate-scale": {
		Target: string(engine.TargetSource),
		Phases: []Phase{{Kind: KindRotate, Frames: 300, Scale: true, Translate: true}},
	},
	"cross": {
		Target: string(engine.TargetNew),
		Phases: []Phase{
			{Kind: KindRotate, Frames: 72, Spacing: string(effects.SpacingFull)},
			{Kind: KindDoorOpen, Frames: 20},
		},
	},
	"cross-locked": {
		Target: string(engine.TargetNew),
		Phases: []Phase{
			{Kind: KindRotate, Frames: 200, Spacing: string(effects.SpacingFull)},
			{Kind: KindDoorOpen, Frames: 60},
			{Kind: KindLockedOverlay},
		},
	},
	"sonar": {
		Target: string(engine.TargetSource),
		Phases: []Phase{{Kind: KindRadialMask, Frames: 20, Background: string(effects.BackgroundFinalFrame)}},
	},
	"sonar-backdrop": {
		Target: string(engine.TargetSource),
		Phases: []Phase{{Kind: KindRadialMask, Frames: 20, Background: string(effects.BackgroundBackdrop)}},
	},
}

// Preset returns a copy of the named plan.
func Preset(name string) (Plan, error) {
	p, ok := presets[name]
	if !ok {
		return Plan{}, fmt.Errorf("unknown preset %q (known: %v)", name, PresetNames())
	}
	p.Preset = name
	p.Phases = append([]Phase(nil), p.Phases...)
	return p, nil
}

func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve fills an empty plan from its preset. A target set on p wins over
// the preset's.
func (p Plan) Resolve() (Plan, error) {
	if len(p.Phases) == 0 {
		base, err := Preset(p.Preset)
		if err != nil {
			return Plan{}, err
		}
		if p.Target != "" {
			base.Target = p.Target
		}
		p = base
	}
	for i, ph := range p.Phases {
		if _, err := ph.Effect(); err != nil {
			return Plan{}, fmt.Errorf("phase %d: %w", i, err)
		}
	}
	return p, nil
}

// Override replaces frame counts. frames applies to rotate and radial-mask
// phases of single-phase plans, rot and open to the rotate and door-open
// phases of multi-phase plans. Zero leaves a count untouched.
func (p *Plan) Override(frames, rot, open int) {
	single := len(p.Phases) == 1
	for i := range p.Phases {
		ph := &p.Phases[i]
		switch ph.Kind {
		case KindRotate:
			if single && frames > 0 {
				ph.Frames = frames
			} else if !single && rot > 0 {
				ph.Frames = rot
			}
		case KindRadialMask:
			if frames > 0 {
				ph.Frames = frames
			}
		case KindDoorOpen:
			if open > 0 {
				ph.Frames = open
			}
		}
	}
}

// Effect builds the generator for ph.
func (ph Phase) Effect() (effects.Effect, error) {
	switch ph.Kind {
	case KindRotate:
		return &effects.Transform{
			Count:   ph.Frames,
			Scale:   ph.Scale,
			Place:   ph.Translate,
			Spacing: effects.Spacing(ph.Spacing),
			Pivot:   effects.Pivot(ph.Pivot),
		}, nil
	case KindDoorOpen:
		return &effects.Door{Count: ph.Frames}, nil
	case KindLockedOverlay:
		return &effects.LockedOverlay{}, nil
	case KindRadialMask:
		return &effects.Sonar{
			Count:      ph.Frames,
			Background: effects.BackgroundMode(ph.Background),
			Easing:     ph.Easing,
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown phase kind %q", effects.ErrInvalidParameter, ph.Kind)
}

// Job resolves p into an engine job over src and its active layer.
func (p Plan) Job(src canvas.Image) (engine.Job, error) {
	r, err := p.Resolve()
	if err != nil {
		return engine.Job{}, err
	}
	job := engine.Job{Source: src, Target: engine.TargetMode(r.Target)}
	for _, ph := range r.Phases {
		e, err := ph.Effect()
		if err != nil {
			return engine.Job{}, err
		}
		job.Phases = append(job.Phases, e)
	}
	return job, nil
}

// TotalFrames is the number of frames the phases of p produce.
func (p Plan) TotalFrames() int {
	n := 0
	for _, ph := range p.Phases {
		if e, err := ph.Effect(); err == nil {
			n += e.Frames()
		}
	}
	return n
}
