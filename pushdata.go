package rendergraph

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// pushPatch is a resource handle written into push data at execution time.
type pushPatch struct {
	offset uint32
	ref    ResourceRef
}

// PushUint32 appends v to the pass's push data.
func (b *PassBuilder) PushUint32(v uint32) *PassBuilder {
	b.p.push = binary.LittleEndian.AppendUint32(b.p.push, v)
	return b
}

// PushFloat32 appends v to the pass's push data.
func (b *PassBuilder) PushFloat32(v float32) *PassBuilder {
	return b.PushUint32(math.Float32bits(v))
}

// PushBytes appends raw bytes to the pass's push data.
func (b *PassBuilder) PushBytes(data []byte) *PassBuilder {
	b.p.push = append(b.p.push, data...)
	return b
}

// PushValue appends the little-endian encoding of a fixed-size value
// (a number, array or struct of numbers).
func (b *PassBuilder) PushValue(v any) *PassBuilder {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		misuse("pass %q: PushValue %T: %v", b.p.name, v, err)
	}
	b.p.push = append(b.p.push, buf.Bytes()...)
	return b
}

// PushRef reserves 8 bytes of push data for ref's live handle. The handle
// is resolved at execution time because the resource may not be
// materialized while the pass is declared. Offsets are 8-byte aligned.
func (b *PassBuilder) PushRef(ref ResourceRef) *PassBuilder {
	b.g.checkRef(ref)
	for len(b.p.push)%8 != 0 {
		b.p.push = append(b.p.push, 0)
	}
	b.p.patches = append(b.p.patches, pushPatch{
		offset: uint32(len(b.p.push)), //nolint:gosec // push data is small
		ref:    ref,
	})
	b.p.push = append(b.p.push, make([]byte, 8)...)
	return b
}

// PushSize returns the number of staged push bytes.
func (p *Pass) PushSize() int { return len(p.push) }

// resolvePush returns the pass's push data with every deferred handle
// written in.
func (g *Graph) resolvePush(p *Pass) ([]byte, error) {
	if len(p.push) == 0 {
		return nil, nil
	}
	out := make([]byte, len(p.push))
	copy(out, p.push)
	for _, patch := range p.patches {
		obj := g.physical(g.resources[patch.ref.Slot])
		if obj == nil {
			return nil, fmt.Errorf("push data: resource %q is not materialized", g.resources[patch.ref.Slot].name)
		}
		var handle uint64
		switch obj.kind {
		case ResourceImage:
			handle = obj.image.Handle()
		case ResourceBuffer:
			handle = obj.buffer.Handle()
		}
		binary.LittleEndian.PutUint64(out[patch.offset:], handle)
	}
	return out, nil
}
