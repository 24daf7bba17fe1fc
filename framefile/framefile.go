// Package framefile decodes YAML frame descriptions and declares them on a
// render graph. It backs the rgplan tool and data-driven tests.
//
//	name: deferred
//	graph:
//	  multi_queue: true
//	resources:
//	  - {name: backbuffer, kind: image, width: 1280, height: 720, format: bgra8unorm}
//	  - {name: gbuffer, kind: image, width: 1280, height: 720, format: rgba8unorm}
//	  - {name: lights, kind: buffer, size: 65536}
//	passes:
//	  - name: cull
//	    kind: compute
//	    access: [{use: storage-buffer-write, resource: lights}]
//	  - name: gbuffer
//	    kind: graphics
//	    access: [{use: color, resource: gbuffer}]
//	  - name: shade
//	    kind: graphics
//	    access:
//	      - {use: sampled, resource: gbuffer}
//	      - {use: storage-buffer-read, resource: lights}
//	      - {use: color, resource: backbuffer}
//	backbuffer: {resource: backbuffer, layout: present}
package framefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/gputypes"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/rendergraph"
)

// ErrInvalidFrame is returned for descriptions that cannot be declared.
var ErrInvalidFrame = errors.New("framefile: invalid frame")

// Frame is a decoded frame description.
type Frame struct {
	Name       string             `yaml:"name"`
	Graph      rendergraph.Config `yaml:"graph"`
	Resources  []Resource         `yaml:"resources"`
	Passes     []Pass             `yaml:"passes"`
	Backbuffer Backbuffer         `yaml:"backbuffer"`
	Outputs    []string           `yaml:"outputs,omitempty"`

	dir string
}

// Resource declares an image or a buffer.
type Resource struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Width    uint32 `yaml:"width,omitempty"`
	Height   uint32 `yaml:"height,omitempty"`
	Depth    uint32 `yaml:"depth,omitempty"`
	Mips     uint32 `yaml:"mips,omitempty"`
	Format   string `yaml:"format,omitempty"`
	Size     uint64 `yaml:"size,omitempty"`
	Locality string `yaml:"locality,omitempty"`
}

// Access is one declared resource use. As names an alias of the written
// resource that later passes can refer to.
type Access struct {
	Use        string          `yaml:"use"`
	Resource   string          `yaml:"resource"`
	As         string          `yaml:"as,omitempty"`
	Clear      *gputypes.Color `yaml:"clear,omitempty"`
	ClearDepth float32         `yaml:"clear_depth,omitempty"`
}

// Shader selects a WGSL entry point whose reflected interface the pass binds.
type Shader struct {
	File  string `yaml:"file"`
	Entry string `yaml:"entry"`
}

// Pass declares a pass and what its body records.
type Pass struct {
	Name     string   `yaml:"name"`
	Kind     string   `yaml:"kind"`
	Group    string   `yaml:"group,omitempty"`
	Access   []Access `yaml:"access"`
	Shader   *Shader  `yaml:"shader,omitempty"`
	Push     []uint32 `yaml:"push,omitempty"`
	Draw     uint32   `yaml:"draw,omitempty"`
	Dispatch []uint32 `yaml:"dispatch,omitempty"`
	Elements []uint32 `yaml:"elements,omitempty"`
}

// Backbuffer names the presented resource.
type Backbuffer struct {
	Resource string `yaml:"resource"`
	Layout   string `yaml:"layout,omitempty"`
}

// Parse decodes a frame description. Unknown keys are rejected.
func Parse(data []byte) (*Frame, error) {
	f := &Frame{Graph: rendergraph.DefaultConfig()}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("framefile: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Load reads a frame description. Shader files resolve relative to it.
func Load(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("framefile: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.dir = filepath.Dir(path)
	return f, nil
}

// Options returns the graph options from the graph section.
func (f *Frame) Options() []rendergraph.GraphOption {
	return []rendergraph.GraphOption{rendergraph.WithConfig(f.Graph)}
}

type accessInfo struct {
	image, buffer bool
	write         bool
	graphicsOnly  bool
}

var uses = map[string]accessInfo{
	"color":                {image: true, write: true, graphicsOnly: true},
	"depth-write":          {image: true, write: true, graphicsOnly: true},
	"depth-read":           {image: true, graphicsOnly: true},
	"sampled":              {image: true},
	"storage-image-read":   {image: true},
	"storage-image-write":  {image: true, write: true},
	"storage-buffer-read":  {buffer: true},
	"storage-buffer-write": {buffer: true, write: true},
	"uniform":              {buffer: true},
	"vertex":               {buffer: true},
	"index":                {buffer: true},
	"indirect":             {buffer: true},
	"transfer-read":        {image: true, buffer: true},
	"transfer-write":       {image: true, buffer: true, write: true},
	"host-read":            {buffer: true},
	"host-write":           {buffer: true, write: true},
	"dummy":                {image: true, buffer: true},
}

// Validate checks names, kinds and access legality without a graph.
func (f *Frame) Validate() error {
	kinds := make(map[string]string)
	for _, r := range f.Resources {
		if r.Name == "" {
			return fmt.Errorf("%w: resource without a name", ErrInvalidFrame)
		}
		if _, dup := kinds[r.Name]; dup {
			return fmt.Errorf("%w: duplicate resource %q", ErrInvalidFrame, r.Name)
		}
		switch r.Kind {
		case "image":
			if r.Width == 0 || r.Height == 0 {
				return fmt.Errorf("%w: image %q has no size", ErrInvalidFrame, r.Name)
			}
			if _, err := parseFormat(r.Format); err != nil {
				return fmt.Errorf("%w: image %q: %w", ErrInvalidFrame, r.Name, err)
			}
		case "buffer":
			if r.Size == 0 {
				return fmt.Errorf("%w: buffer %q has no size", ErrInvalidFrame, r.Name)
			}
			if _, err := parseLocality(r.Locality); err != nil {
				return fmt.Errorf("%w: buffer %q: %w", ErrInvalidFrame, r.Name, err)
			}
		default:
			return fmt.Errorf("%w: resource %q has kind %q", ErrInvalidFrame, r.Name, r.Kind)
		}
		kinds[r.Name] = r.Kind
	}

	for _, p := range f.Passes {
		kind, err := parsePassKind(p.Kind)
		if err != nil {
			return fmt.Errorf("%w: pass %q: %w", ErrInvalidFrame, p.Name, err)
		}
		for _, a := range p.Access {
			info, ok := uses[a.Use]
			if !ok {
				return fmt.Errorf("%w: pass %q: unknown use %q", ErrInvalidFrame, p.Name, a.Use)
			}
			rk, ok := kinds[a.Resource]
			if !ok {
				return fmt.Errorf("%w: pass %q: unknown resource %q", ErrInvalidFrame, p.Name, a.Resource)
			}
			if (rk == "image" && !info.image) || (rk == "buffer" && !info.buffer) {
				return fmt.Errorf("%w: pass %q: %s on %s %q", ErrInvalidFrame, p.Name, a.Use, rk, a.Resource)
			}
			if info.graphicsOnly && kind != rendergraph.PassGraphics {
				return fmt.Errorf("%w: pass %q: %s on a %s pass", ErrInvalidFrame, p.Name, a.Use, kind)
			}
			if a.As != "" {
				if !info.write {
					return fmt.Errorf("%w: pass %q: alias %q of a read", ErrInvalidFrame, p.Name, a.As)
				}
				if _, dup := kinds[a.As]; dup {
					return fmt.Errorf("%w: pass %q: alias %q redeclares a resource", ErrInvalidFrame, p.Name, a.As)
				}
				kinds[a.As] = rk
			}
		}
		if len(p.Dispatch) > 3 || len(p.Elements) > 3 {
			return fmt.Errorf("%w: pass %q: more than 3 dispatch dimensions", ErrInvalidFrame, p.Name)
		}
		if len(p.Elements) > 0 && p.Shader == nil {
			return fmt.Errorf("%w: pass %q: elements need a shader", ErrInvalidFrame, p.Name)
		}
	}

	if f.Backbuffer.Resource == "" {
		return fmt.Errorf("%w: no backbuffer", ErrInvalidFrame)
	}
	if kinds[f.Backbuffer.Resource] != "image" {
		return fmt.Errorf("%w: backbuffer %q is not an image", ErrInvalidFrame, f.Backbuffer.Resource)
	}
	if _, err := parseLayout(f.Backbuffer.Layout); err != nil {
		return fmt.Errorf("%w: backbuffer: %w", ErrInvalidFrame, err)
	}
	for _, name := range f.Outputs {
		if _, ok := kinds[name]; !ok {
			return fmt.Errorf("%w: unknown output %q", ErrInvalidFrame, name)
		}
	}
	return nil
}

func parsePassKind(s string) (rendergraph.PassKind, error) {
	switch s {
	case "graphics":
		return rendergraph.PassGraphics, nil
	case "compute":
		return rendergraph.PassCompute, nil
	case "transfer":
		return rendergraph.PassTransfer, nil
	case "host":
		return rendergraph.PassHost, nil
	default:
		return 0, fmt.Errorf("unknown pass kind %q", s)
	}
}

func parseFormat(s string) (gputypes.TextureFormat, error) {
	switch strings.ToLower(s) {
	case "", "rgba8unorm":
		return gputypes.TextureFormatRGBA8Unorm, nil
	case "bgra8unorm":
		return gputypes.TextureFormatBGRA8Unorm, nil
	case "r8unorm":
		return gputypes.TextureFormatR8Unorm, nil
	case "depth24plus-stencil8":
		return gputypes.TextureFormatDepth24PlusStencil8, nil
	default:
		return gputypes.TextureFormatUndefined, fmt.Errorf("unknown format %q", s)
	}
}

func parseLocality(s string) (rendergraph.MemoryLocality, error) {
	switch s {
	case "", "device":
		return rendergraph.MemoryDevice, nil
	case "staging":
		return rendergraph.MemoryStaging, nil
	case "readback":
		return rendergraph.MemoryReadback, nil
	default:
		return 0, fmt.Errorf("unknown locality %q", s)
	}
}

func parseLayout(s string) (rendergraph.ImageLayout, error) {
	switch s {
	case "", "present":
		return rendergraph.LayoutPresent, nil
	case "undefined":
		return rendergraph.LayoutUndefined, nil
	case "general":
		return rendergraph.LayoutGeneral, nil
	case "shader-read":
		return rendergraph.LayoutShaderReadOnly, nil
	case "transfer-src":
		return rendergraph.LayoutTransferSrc, nil
	default:
		return 0, fmt.Errorf("unknown layout %q", s)
	}
}
