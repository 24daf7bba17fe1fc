// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"fmt"
)

// Compile orders the passes that contribute to the backbuffer (and any
// marked outputs), assigns queues, materializes resources, synthesizes
// barriers and derives attachment load/store operations.
//
// Passes that do not reach an output are dropped. On error the graph stays
// uncompiled and must not be executed.
func (g *Graph) Compile() error {
	if g.compiled {
		return nil
	}
	if !g.backbuffer.IsValid() {
		return ErrNoBackbuffer
	}
	for _, p := range g.passes {
		p.resetCompiled()
	}

	writers := g.writers()
	order, err := g.sortPasses(writers)
	if err != nil {
		return err
	}
	if err := g.assignQueues(order); err != nil {
		return err
	}
	if err := g.materialize(order); err != nil {
		return err
	}
	g.synthesizeBarriers(order)
	g.deriveAttachments(order)

	g.order = order
	g.compiled = true

	g.stats.Frame = g.frame
	g.stats.Declared = len(g.passes)
	g.stats.Live = len(order)
	g.stats.Culled = len(g.passes) - len(order)
	for _, p := range order {
		g.stats.Barriers += len(p.barriers)
		g.stats.ReleaseBarriers += len(p.releases)
		switch p.queue {
		case QueueCompute:
			g.stats.AsyncPasses++
		case QueueHost:
			g.stats.HostPasses++
		}
	}
	Logger().Debug("rendergraph: compiled",
		"frame", g.frame, "live", g.stats.Live, "culled", g.stats.Culled,
		"barriers", g.stats.Barriers, "async", g.stats.AsyncPasses)
	return nil
}

// writers maps every resource id to the passes that produce it, in
// declaration order.
func (g *Graph) writers() map[uint32][]*Pass {
	w := make(map[uint32][]*Pass)
	for _, p := range g.passes {
		for _, out := range p.outputs {
			w[out.Ref.ID] = appendUnique(w[out.Ref.ID], p)
		}
		for _, alias := range p.aliases {
			w[alias.ID] = appendUnique(w[alias.ID], p)
		}
	}
	return w
}

const (
	unvisited = iota
	visiting
	visited
)

// sortPasses is a post-order depth-first walk from the producers of the
// outputs back through the producers of every input. A pass reached again
// while it is still on the stack closes a cycle.
func (g *Graph) sortPasses(writers map[uint32][]*Pass) ([]*Pass, error) {
	state := make([]uint8, len(g.passes))
	order := make([]*Pass, 0, len(g.passes))

	var visit func(p *Pass) error
	visit = func(p *Pass) error {
		switch state[p.index] {
		case visiting:
			return fmt.Errorf("%w: pass %q is its own dependency", ErrCyclicalGraph, p.name)
		case visited:
			return nil
		}
		state[p.index] = visiting
		for _, in := range p.inputs {
			for _, w := range writers[in.Ref.ID] {
				if w == p {
					continue
				}
				if err := visit(w); err != nil {
					return err
				}
			}
		}
		state[p.index] = visited
		order = append(order, p)
		return nil
	}

	roots := append([]ResourceRef{g.backbuffer}, g.outputs...)
	for _, root := range roots {
		for _, w := range writers[root.ID] {
			if err := visit(w); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

func appendUnique(ps []*Pass, p *Pass) []*Pass {
	for _, q := range ps {
		if q == p {
			return ps
		}
	}
	return append(ps, p)
}
