package rendergraph

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// Describe renders the compiled plan: one block per pass in execution
// order with its queue, waits, barriers and attachments.
func (g *Graph) Describe() string {
	if !g.compiled {
		return "rendergraph: not compiled\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "frame %d: %d live, %d culled\n", g.frame, len(g.order), len(g.passes)-len(g.order))
	for i, p := range g.order {
		fmt.Fprintf(&sb, "%2d %-24s %-8s queue=%s", i, p.label(), p.kind, p.queue)
		if g.opts.multiQueue {
			fmt.Fprintf(&sb, " level=%d", p.level)
		}
		if p.mustSignal {
			sb.WriteString(" signal")
		}
		sb.WriteByte('\n')
		for _, w := range p.waits {
			fmt.Fprintf(&sb, "     wait   %s (%s)\n", w.name, w.queue)
		}
		for _, b := range p.barriers {
			fmt.Fprintf(&sb, "     bar    %s\n", g.describeBarrier(b))
		}
		for _, a := range p.attachments {
			fmt.Fprintf(&sb, "     att    %s load=%s store=%s\n", g.resources[a.Ref.Slot].name, loadName(a), storeName(a))
		}
		for _, b := range p.releases {
			fmt.Fprintf(&sb, "     rel    %s\n", g.describeBarrier(b))
		}
	}
	if g.final != nil {
		fmt.Fprintf(&sb, "   final  %s\n", g.describeBarrier(g.final.barrier))
	}
	return sb.String()
}

func (g *Graph) describeBarrier(b Barrier) string {
	name := g.resources[b.Ref.Slot].name
	s := fmt.Sprintf("%s %s/%s", name, b.SrcStage, b.SrcAccess)
	if b.Kind == ResourceImage {
		s += "/" + b.SrcLayout.String()
	}
	s += fmt.Sprintf(" -> %s/%s", b.DstStage, b.DstAccess)
	if b.Kind == ResourceImage {
		s += "/" + b.DstLayout.String()
	}
	if b.CrossQueue() {
		s += fmt.Sprintf(" [%s->%s]", b.SrcQueue, b.DstQueue)
	}
	return s
}

func loadName(a Attachment) string {
	if a.LoadOp == gputypes.LoadOpLoad {
		return "load"
	}
	return "clear"
}

func storeName(a Attachment) string {
	if a.StoreOp == gputypes.StoreOpStore {
		return "store"
	}
	return "discard"
}
