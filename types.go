// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// PassKind is the closed set of pass variants. Every decision point that
// depends on the kind (default stages, attachments, queue legality) switches
// over it exhaustively.
type PassKind uint8

const (
	// PassGraphics records draws inside a render scope built from its attachments.
	PassGraphics PassKind = iota
	// PassCompute records dispatches. Eligible for the async compute queue.
	PassCompute
	// PassTransfer records copies and clears.
	PassTransfer
	// PassHost runs its callback on the CPU at submission time.
	PassHost
)

// String returns the kind name.
func (k PassKind) String() string {
	switch k {
	case PassGraphics:
		return "graphics"
	case PassCompute:
		return "compute"
	case PassTransfer:
		return "transfer"
	case PassHost:
		return "host"
	default:
		return fmt.Sprintf("PassKind(%d)", uint8(k))
	}
}

// QueueKind identifies a hardware queue (or the implicit host queue).
type QueueKind uint8

const (
	// QueueGraphics is the universal graphics queue. Every device has one.
	QueueGraphics QueueKind = iota
	// QueueCompute is the asynchronous compute queue.
	QueueCompute
	// QueueHost is the CPU. It has no command buffers.
	QueueHost

	queueKindCount
)

// String returns the queue name.
func (q QueueKind) String() string {
	switch q {
	case QueueGraphics:
		return "graphics"
	case QueueCompute:
		return "compute"
	case QueueHost:
		return "host"
	default:
		return fmt.Sprintf("QueueKind(%d)", uint8(q))
	}
}

// PipelineStage is a bitmask of pipeline stages.
type PipelineStage uint32

// Pipeline stages.
const (
	StageNone                  PipelineStage = 0
	StageTopOfPipe             PipelineStage = 1 << 0
	StageDrawIndirect          PipelineStage = 1 << 1
	StageVertexInput           PipelineStage = 1 << 2
	StageVertexShader          PipelineStage = 1 << 3
	StageFragmentShader        PipelineStage = 1 << 4
	StageEarlyFragmentTests    PipelineStage = 1 << 5
	StageLateFragmentTests     PipelineStage = 1 << 6
	StageColorAttachmentOutput PipelineStage = 1 << 7
	StageComputeShader         PipelineStage = 1 << 8
	StageTransfer              PipelineStage = 1 << 9
	StageBottomOfPipe          PipelineStage = 1 << 10
	StageHost                  PipelineStage = 1 << 11
	StageAllGraphics           PipelineStage = 1 << 12
	StageAllCommands           PipelineStage = 1 << 13
)

var stageNames = []string{
	"TopOfPipe", "DrawIndirect", "VertexInput", "VertexShader", "FragmentShader",
	"EarlyFragmentTests", "LateFragmentTests", "ColorAttachmentOutput",
	"ComputeShader", "Transfer", "BottomOfPipe", "Host", "AllGraphics", "AllCommands",
}

// String returns the set stage names joined by '|'.
func (s PipelineStage) String() string {
	return flagString(uint32(s), stageNames)
}

// Access is a bitmask of memory access types.
type Access uint32

// Memory access types.
const (
	AccessNone                 Access = 0
	AccessIndirectCommandRead  Access = 1 << 0
	AccessIndexRead            Access = 1 << 1
	AccessVertexAttributeRead  Access = 1 << 2
	AccessUniformRead          Access = 1 << 3
	AccessShaderRead           Access = 1 << 4
	AccessShaderWrite          Access = 1 << 5
	AccessColorAttachmentRead  Access = 1 << 6
	AccessColorAttachmentWrite Access = 1 << 7
	AccessDepthStencilRead     Access = 1 << 8
	AccessDepthStencilWrite    Access = 1 << 9
	AccessTransferRead         Access = 1 << 10
	AccessTransferWrite        Access = 1 << 11
	AccessHostRead             Access = 1 << 12
	AccessHostWrite            Access = 1 << 13
	AccessMemoryRead           Access = 1 << 14
	AccessMemoryWrite          Access = 1 << 15
)

var accessNames = []string{
	"IndirectCommandRead", "IndexRead", "VertexAttributeRead", "UniformRead",
	"ShaderRead", "ShaderWrite", "ColorAttachmentRead", "ColorAttachmentWrite",
	"DepthStencilRead", "DepthStencilWrite", "TransferRead", "TransferWrite",
	"HostRead", "HostWrite", "MemoryRead", "MemoryWrite",
}

// String returns the set access names joined by '|'.
func (a Access) String() string {
	return flagString(uint32(a), accessNames)
}

const writeAccessMask = AccessShaderWrite | AccessColorAttachmentWrite |
	AccessDepthStencilWrite | AccessTransferWrite | AccessHostWrite | AccessMemoryWrite

// IsWrite reports whether any write bit is set.
func (a Access) IsWrite() bool { return a&writeAccessMask != 0 }

func flagString(v uint32, names []string) string {
	if v == 0 {
		return "None"
	}
	var parts []string
	for i, name := range names {
		if v&(1<<uint(i)) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// ImageLayout is the memory layout an image is in for a given access.
type ImageLayout uint8

// Image layouts.
const (
	LayoutUndefined ImageLayout = iota
	LayoutGeneral
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutDepthStencilReadOnly
	LayoutShaderReadOnly
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPresent
)

// String returns the layout name.
func (l ImageLayout) String() string {
	switch l {
	case LayoutUndefined:
		return "Undefined"
	case LayoutGeneral:
		return "General"
	case LayoutColorAttachment:
		return "ColorAttachment"
	case LayoutDepthStencilAttachment:
		return "DepthStencilAttachment"
	case LayoutDepthStencilReadOnly:
		return "DepthStencilReadOnly"
	case LayoutShaderReadOnly:
		return "ShaderReadOnly"
	case LayoutTransferSrc:
		return "TransferSrc"
	case LayoutTransferDst:
		return "TransferDst"
	case LayoutPresent:
		return "Present"
	default:
		return fmt.Sprintf("ImageLayout(%d)", uint8(l))
	}
}

// TextureUsage maps a layout to the texture usage a backend without explicit
// layouts (WebGPU-style) transitions between.
func (l ImageLayout) TextureUsage() gputypes.TextureUsage {
	switch l {
	case LayoutColorAttachment, LayoutDepthStencilAttachment, LayoutDepthStencilReadOnly, LayoutPresent:
		return gputypes.TextureUsageRenderAttachment
	case LayoutShaderReadOnly:
		return gputypes.TextureUsageTextureBinding
	case LayoutGeneral:
		return gputypes.TextureUsageStorageBinding
	case LayoutTransferSrc:
		return gputypes.TextureUsageCopySrc
	case LayoutTransferDst:
		return gputypes.TextureUsageCopyDst
	default:
		return 0
	}
}

// MemoryLocality selects where a buffer lives.
type MemoryLocality uint8

const (
	// MemoryDevice is device-local memory, not host visible.
	MemoryDevice MemoryLocality = iota
	// MemoryStaging is host-visible memory written by the CPU.
	MemoryStaging
	// MemoryReadback is host-visible memory read by the CPU.
	MemoryReadback
)

// String returns the locality name.
func (m MemoryLocality) String() string {
	switch m {
	case MemoryDevice:
		return "device"
	case MemoryStaging:
		return "staging"
	case MemoryReadback:
		return "readback"
	default:
		return fmt.Sprintf("MemoryLocality(%d)", uint8(m))
	}
}
