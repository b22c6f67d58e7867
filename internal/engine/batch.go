package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ivlev/animframes/internal/canvas"
	"github.com/ivlev/animframes/internal/effects"
)

type opKind int

const (
	opInsert opKind = iota
	opScratch
	opVisibility
	opCreate
	opActive
)

type op struct {
	kind    opKind
	img     canvas.Image
	layer   canvas.Layer
	visible bool
	done    bool
}

// Batch is one generation pass over a set of host images. It opens a host
// batch on every image it claims and keeps an undo log of the side effects
// generators report, so that Abort leaves the host as it was before Begin.
type Batch struct {
	canvas canvas.Adapter
	log    *zap.Logger
	open   []canvas.Image
	ops    []op
	closed bool
}

var _ effects.Journal = (*Batch)(nil)

func NewBatch(c canvas.Adapter, log *zap.Logger) *Batch {
	if log == nil {
		log = zap.NewNop()
	}
	return &Batch{canvas: c, log: log}
}

// Begin claims img for the pass. Claiming an image twice is a no-op.
func (b *Batch) Begin(img canvas.Image) error {
	for _, o := range b.open {
		if o == img {
			return nil
		}
	}
	if err := b.canvas.BeginBatch(img); err != nil {
		return err
	}
	b.open = append(b.open, img)
	if active, err := b.canvas.ActiveLayer(img); err == nil {
		b.ops = append(b.ops, op{kind: opActive, img: img, layer: active})
	}
	return nil
}

// Created records an image made for the pass; Abort deletes it.
func (b *Batch) Created(img canvas.Image) {
	b.ops = append(b.ops, op{kind: opCreate, img: img})
}

func (b *Batch) Inserted(img canvas.Image, layer canvas.Layer) {
	b.ops = append(b.ops, op{kind: opInsert, img: img, layer: layer})
}

func (b *Batch) Dropped(layer canvas.Layer) {
	for i := range b.ops {
		if b.ops[i].kind == opInsert && b.ops[i].layer == layer {
			b.ops[i].done = true
		}
	}
}

func (b *Batch) Scratch(img canvas.Image) {
	b.ops = append(b.ops, op{kind: opScratch, img: img})
}

func (b *Batch) Released(img canvas.Image) {
	for i := range b.ops {
		if b.ops[i].kind == opScratch && b.ops[i].img == img {
			b.ops[i].done = true
		}
	}
}

func (b *Batch) Visibility(layer canvas.Layer, previous bool) {
	b.ops = append(b.ops, op{kind: opVisibility, layer: layer, visible: previous})
}

// Len reports the number of undo entries still pending.
func (b *Batch) Len() int {
	n := 0
	for _, o := range b.ops {
		if !o.done {
			n++
		}
	}
	return n
}

// Commit keeps every change and closes the host batches.
func (b *Batch) Commit() error {
	if b.closed {
		return nil
	}
	b.ops = nil
	return b.end()
}

// Abort undoes the recorded changes newest first and closes the host
// batches. Every undo step is attempted; failures are joined.
func (b *Batch) Abort() error {
	if b.closed {
		return nil
	}
	var errs []error
	deleted := make(map[canvas.Image]bool)
	for i := len(b.ops) - 1; i >= 0; i-- {
		o := b.ops[i]
		if o.done {
			continue
		}
		var err error
		switch o.kind {
		case opInsert:
			if deleted[o.img] {
				continue
			}
			err = b.canvas.RemoveLayer(o.img, o.layer)
		case opScratch, opCreate:
			err = b.canvas.DeleteImage(o.img)
			deleted[o.img] = true
		case opVisibility:
			err = b.canvas.SetVisible(o.layer, o.visible)
		case opActive:
			if !deleted[o.img] {
				err = b.canvas.SetActiveLayer(o.img, o.layer)
			}
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("undo: %w", err))
		}
	}
	b.log.Debug("batch rolled back", zap.Int("steps", len(b.ops)), zap.Int("errors", len(errs)))
	b.ops = nil
	errs = append(errs, b.end())
	return errors.Join(errs...)
}

func (b *Batch) end() error {
	b.closed = true
	var errs []error
	for i := len(b.open) - 1; i >= 0; i-- {
		img := b.open[i]
		if _, err := b.canvas.ImageLayers(img); err != nil {
			// Deleted during rollback.
			continue
		}
		if err := b.canvas.EndBatch(img); err != nil {
			errs = append(errs, err)
		}
	}
	b.open = nil
	return errors.Join(errs...)
}
