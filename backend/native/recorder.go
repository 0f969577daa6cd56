package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuframe/cmdlist"
	"github.com/gogpu/gpuframe/descriptor"
)

// allocator is bookkeeping only: HAL encoders own their command memory, so
// Reset just counts recycles.
type allocator struct {
	typ    cmdlist.Type
	resets int
}

// CreateAllocator returns command memory for lists of type t.
func (b *Backend) CreateAllocator(t cmdlist.Type) (cmdlist.Allocator, error) {
	return &allocator{typ: t}, nil
}

func (a *allocator) Reset() error {
	a.resets++
	return nil
}

func (a *allocator) Destroy() {}

// recorder records a cmdlist onto a HAL command encoder.
//
// WebGPU-style encoders have no free-standing draw state, so the render
// target, viewports, scissors and bindings are stored and replayed into a
// render pass opened lazily by the first draw. Anything that cannot be
// recorded inside a pass (barriers, clears, dispatches, target changes)
// ends the open pass first.
type recorder struct {
	b     *Backend
	typ   cmdlist.Type
	label string

	enc      hal.CommandEncoder
	encoding bool
	closed   bool
	cmdBuf   hal.CommandBuffer

	rp        hal.RenderPassEncoder
	target    cmdlist.RenderTarget
	viewports []cmdlist.Viewport
	scissors  []cmdlist.Rect
	pipeline  *Pipeline
	tables    map[uint32]hal.BindGroup
	vertex    map[uint32]cmdlist.VertexBuffer
	index     *indexBinding
}

type indexBinding struct {
	buf    *Buffer
	offset uint64
	format gputypes.IndexFormat
}

// CreateRecorder creates a command encoder for lists of type t.
func (b *Backend) CreateRecorder(t cmdlist.Type, _ cmdlist.Allocator) (cmdlist.Recorder, error) {
	label := fmt.Sprintf("gpuframe_%s", t)
	enc, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("native: create command encoder: %w", err)
	}
	return &recorder{
		b:      b,
		typ:    t,
		label:  label,
		enc:    enc,
		tables: make(map[uint32]hal.BindGroup),
		vertex: make(map[uint32]cmdlist.VertexBuffer),
	}, nil
}

// Reset frees the previous command buffer and begins a new encoding.
func (r *recorder) Reset(_ cmdlist.Allocator) error {
	if r.encoding {
		r.rp = nil
		r.enc.DiscardEncoding()
		r.encoding = false
	}
	if r.cmdBuf != nil {
		r.b.device.FreeCommandBuffer(r.cmdBuf)
		r.cmdBuf = nil
	}
	r.closed = false
	r.clearState()
	if err := r.enc.BeginEncoding(r.label); err != nil {
		return fmt.Errorf("native: begin encoding: %w", err)
	}
	r.encoding = true
	return nil
}

// Close ends any open pass and finishes the encoding.
func (r *recorder) Close() error {
	if !r.encoding {
		return ErrNotEncoding
	}
	r.endPass()
	cmdBuf, err := r.enc.EndEncoding()
	r.encoding = false
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	r.cmdBuf = cmdBuf
	r.closed = true
	return nil
}

// Destroy discards an unfinished encoding and frees the last command buffer.
func (r *recorder) Destroy() {
	if r.encoding {
		r.rp = nil
		r.enc.DiscardEncoding()
		r.encoding = false
	}
	if r.cmdBuf != nil {
		r.b.device.FreeCommandBuffer(r.cmdBuf)
		r.cmdBuf = nil
	}
	r.closed = false
}

func (r *recorder) clearState() {
	r.target = cmdlist.RenderTarget{}
	r.viewports = nil
	r.scissors = nil
	r.pipeline = nil
	r.index = nil
	clear(r.tables)
	clear(r.vertex)
}

func (r *recorder) endPass() {
	if r.rp != nil {
		r.rp.End()
		r.rp = nil
	}
}

func (r *recorder) texture(img cmdlist.Image) *Texture {
	if img == nil {
		return nil
	}
	t, ok := img.(*Texture)
	if !ok {
		r.b.log.Warn("native: ignoring foreign image", "type", fmt.Sprintf("%T", img))
		return nil
	}
	return t
}

func (r *recorder) Barriers(bs []cmdlist.Barrier) {
	r.endPass()
	out := make([]hal.TextureBarrier, 0, len(bs))
	for _, b := range bs {
		t := r.texture(b.Image)
		if t == nil {
			continue
		}
		before, after := textureUsage(b.Before), textureUsage(b.After)
		if before == after {
			continue
		}
		out = append(out, hal.TextureBarrier{
			Texture: t.tex,
			Usage:   hal.TextureUsageTransition{OldUsage: before, NewUsage: after},
		})
	}
	if len(out) > 0 {
		r.enc.TransitionTextures(out)
	}
}

func (r *recorder) ClearColor(target cmdlist.Image, c [4]float32) {
	t := r.texture(target)
	if t == nil {
		return
	}
	r.endPass()
	pass := r.enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: r.label + "_clear",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       t.view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])},
		}},
	})
	pass.End()
}

func (r *recorder) ClearDepthStencil(target cmdlist.Image, depth float32, stencil uint32) {
	t := r.texture(target)
	if t == nil {
		return
	}
	r.endPass()
	pass := r.enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: r.label + "_clear_depth",
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:              t.view,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpStore,
			DepthClearValue:   depth,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpStore,
			StencilClearValue: stencil,
		},
	})
	pass.End()
}

func (r *recorder) SetRenderTarget(rt cmdlist.RenderTarget) {
	r.endPass()
	r.target = cmdlist.RenderTarget{
		Colors: append([]cmdlist.Image(nil), rt.Colors...),
		Depth:  rt.Depth,
	}
}

func (r *recorder) SetViewports(v []cmdlist.Viewport) {
	r.viewports = append(r.viewports[:0], v...)
	if r.rp != nil && len(v) > 0 {
		vp := v[0]
		r.rp.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
	}
}

func (r *recorder) SetScissors(s []cmdlist.Rect) {
	r.scissors = append(r.scissors[:0], s...)
	if r.rp != nil && len(s) > 0 {
		rc := s[0]
		r.rp.SetScissorRect(rc.X, rc.Y, rc.Width, rc.Height)
	}
}

func (r *recorder) SetPipeline(p cmdlist.Pipeline) {
	pl, ok := p.(*Pipeline)
	if !ok {
		r.b.log.Warn("native: ignoring foreign pipeline", "type", fmt.Sprintf("%T", p))
		return
	}
	r.pipeline = pl
	if r.rp != nil && pl.render != nil {
		r.rp.SetPipeline(pl.render)
	}
}

func (r *recorder) SetDescriptorTable(slot uint32, reg descriptor.Region) {
	g, err := r.b.group(reg)
	if err != nil {
		r.b.log.Warn("native: descriptor table not bound", "slot", slot, "err", err)
		return
	}
	r.tables[slot] = g
	if r.rp != nil {
		r.rp.SetBindGroup(slot, g, nil)
	}
}

func (r *recorder) SetVertexBuffers(start uint32, bufs []cmdlist.VertexBuffer) {
	for i, vb := range bufs {
		slot := start + uint32(i) //nolint:gosec // G115: vertex slots are few
		r.vertex[slot] = vb
		if r.rp != nil {
			if b, ok := vb.Buffer.(*Buffer); ok {
				r.rp.SetVertexBuffer(slot, b.buf, vb.Offset)
			}
		}
	}
}

func (r *recorder) SetIndexBuffer(b cmdlist.Buffer, offset uint64, format cmdlist.IndexFormat) {
	buf, ok := b.(*Buffer)
	if !ok {
		r.b.log.Warn("native: ignoring foreign index buffer", "type", fmt.Sprintf("%T", b))
		return
	}
	f := gputypes.IndexFormatUint16
	if format == cmdlist.IndexUint32 {
		f = gputypes.IndexFormatUint32
	}
	r.index = &indexBinding{buf: buf, offset: offset, format: f}
	if r.rp != nil {
		r.rp.SetIndexBuffer(buf.buf, f, offset)
	}
}

func (r *recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if r.beginPass() {
		r.rp.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	}
}

func (r *recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	if r.index == nil {
		r.b.log.Warn("native: indexed draw without index buffer")
		return
	}
	if r.beginPass() {
		r.rp.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
	}
}

func (r *recorder) Dispatch(x, y, z uint32) {
	if r.pipeline == nil || r.pipeline.compute == nil {
		r.b.log.Warn("native: dispatch without compute pipeline")
		return
	}
	r.endPass()
	pass := r.enc.BeginComputePass(&hal.ComputePassDescriptor{Label: r.label + "_compute"})
	pass.SetPipeline(r.pipeline.compute)
	for slot, g := range r.tables {
		pass.SetBindGroup(slot, g, nil)
	}
	pass.Dispatch(x, y, z)
	pass.End()
}

// beginPass opens a render pass over the current target if none is open
// and replays the stored state into it. It reports whether a pass is open.
func (r *recorder) beginPass() bool {
	if r.rp != nil {
		return true
	}
	if r.pipeline == nil || r.pipeline.render == nil {
		r.b.log.Warn("native: draw without render pipeline")
		return false
	}
	desc := &hal.RenderPassDescriptor{Label: r.label + "_draw"}
	for _, img := range r.target.Colors {
		if t := r.texture(img); t != nil {
			desc.ColorAttachments = append(desc.ColorAttachments, hal.RenderPassColorAttachment{
				View:    t.view,
				LoadOp:  gputypes.LoadOpLoad,
				StoreOp: gputypes.StoreOpStore,
			})
		}
	}
	if t := r.texture(r.target.Depth); t != nil {
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:           t.view,
			DepthLoadOp:    gputypes.LoadOpLoad,
			DepthStoreOp:   gputypes.StoreOpStore,
			StencilLoadOp:  gputypes.LoadOpLoad,
			StencilStoreOp: gputypes.StoreOpStore,
		}
	}
	if len(desc.ColorAttachments) == 0 && desc.DepthStencilAttachment == nil {
		r.b.log.Warn("native: draw without render target")
		return false
	}

	r.rp = r.enc.BeginRenderPass(desc)
	r.rp.SetPipeline(r.pipeline.render)
	if len(r.viewports) > 0 {
		vp := r.viewports[0]
		r.rp.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
	}
	if len(r.scissors) > 0 {
		rc := r.scissors[0]
		r.rp.SetScissorRect(rc.X, rc.Y, rc.Width, rc.Height)
	}
	for slot, g := range r.tables {
		r.rp.SetBindGroup(slot, g, nil)
	}
	for slot, vb := range r.vertex {
		if b, ok := vb.Buffer.(*Buffer); ok {
			r.rp.SetVertexBuffer(slot, b.buf, vb.Offset)
		}
	}
	if r.index != nil {
		r.rp.SetIndexBuffer(r.index.buf.buf, r.index.format, r.index.offset)
	}
	return true
}
