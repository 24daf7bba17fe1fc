package rendergraph

import (
	"fmt"
	"sort"
)

// assignQueues pins every pass to a queue. Host passes go to the host
// queue when allowed. With multi-queue enabled, passes are grouped into
// dependency levels and a compute pass sharing its level with exactly one
// other pass moves to the async compute queue.
func (g *Graph) assignQueues(order []*Pass) error {
	for _, p := range order {
		switch p.kind {
		case PassGraphics, PassCompute, PassTransfer:
			p.queue = QueueGraphics
		case PassHost:
			if !g.opts.hostPasses {
				return fmt.Errorf("%w: host pass %q while host passes are disabled", ErrInvalidPass, p.name)
			}
			p.queue = QueueHost
		default:
			return fmt.Errorf("%w: pass %q has unknown kind %v", ErrInvalidPass, p.name, p.kind)
		}
	}
	if !g.opts.multiQueue || g.timelines[QueueCompute] == nil {
		return nil
	}

	levels := dependencyLevels(order)
	byLevel := make(map[int][]*Pass)
	for i, p := range order {
		p.level = levels[i]
		byLevel[p.level] = append(byLevel[p.level], p)
	}
	keys := make([]int, 0, len(byLevel))
	for lvl := range byLevel {
		keys = append(keys, lvl)
	}
	sort.Ints(keys)

	for _, lvl := range keys {
		ps := byLevel[lvl]
		if len(ps) != 2 {
			continue
		}
		for i, p := range ps {
			other := ps[1-i]
			if p.kind == PassCompute && other.queue == QueueGraphics {
				p.queue = QueueCompute
				break
			}
		}
	}
	Logger().Debug("rendergraph: dependency levels", "levels", len(keys), "passes", len(order))
	return nil
}

// dependencyLevels returns, per position in order, 0 for passes nothing
// downstream consumes and otherwise 1 + the highest level of any consumer.
func dependencyLevels(order []*Pass) []int {
	readers := make(map[uint32][]int)
	for i, p := range order {
		for _, in := range p.inputs {
			readers[in.Ref.ID] = append(readers[in.Ref.ID], i)
		}
	}
	levels := make([]int, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		p := order[i]
		lvl := 0
		consider := func(id uint32) {
			for _, r := range readers[id] {
				if r > i && levels[r]+1 > lvl {
					lvl = levels[r] + 1
				}
			}
		}
		for _, out := range p.outputs {
			consider(out.Ref.ID)
		}
		for _, alias := range p.aliases {
			consider(alias.ID)
		}
		levels[i] = lvl
	}
	return levels
}
