package cmdlist

import (
	"errors"

	"github.com/gogpu/gpuframe/descriptor"
)

// ErrPipelineKind is returned when a draw is issued with a compute pipeline
// bound, or a dispatch with a graphics pipeline bound.
var ErrPipelineKind = errors.New("cmdlist: pipeline kind does not match command")

// Transition records a state change of img to u. Transitions are batched
// and flushed before the next draw, dispatch, clear or Close. Repeated
// transitions of the same image before a flush collapse into one barrier,
// and a transition that ends where it started is dropped.
func (l *CommandList) Transition(img Image, u Usage) error {
	if err := l.checkRecording("transition"); err != nil {
		return err
	}
	if err := l.SetUsed(img); err != nil {
		return err
	}

	before := img.Usage()
	if before == u {
		return nil
	}
	img.SetUsage(u)

	for i := range l.pending {
		if l.pending[i].Image != img {
			continue
		}
		if l.pending[i].Before == u {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
		} else {
			l.pending[i].After = u
		}
		return nil
	}
	l.pending = append(l.pending, Barrier{Image: img, Before: before, After: u})
	return nil
}

// PendingBarriers returns the number of transitions not yet flushed.
func (l *CommandList) PendingBarriers() int { return len(l.pending) }

func (l *CommandList) flushBarriers() {
	if len(l.pending) == 0 {
		return
	}
	batch := make([]Barrier, len(l.pending))
	copy(batch, l.pending)
	l.rec.Barriers(batch)
	l.pending = l.pending[:0]
	l.commands++
}

// ClearRenderTarget clears a color attachment.
func (l *CommandList) ClearRenderTarget(target Image, color [4]float32) error {
	if err := l.checkRecording("clear render target"); err != nil {
		return err
	}
	if err := l.SetUsed(target); err != nil {
		return err
	}
	l.flushBarriers()
	l.rec.ClearColor(target, color)
	l.commands++
	return nil
}

// ClearDepthStencil clears a depth/stencil attachment.
func (l *CommandList) ClearDepthStencil(target Image, depth float32, stencil uint32) error {
	if err := l.checkRecording("clear depth stencil"); err != nil {
		return err
	}
	if err := l.SetUsed(target); err != nil {
		return err
	}
	l.flushBarriers()
	l.rec.ClearDepthStencil(target, depth, stencil)
	l.commands++
	return nil
}

// SetRenderTarget binds the attachments for subsequent draws.
func (l *CommandList) SetRenderTarget(rt RenderTarget) error {
	if err := l.checkRecording("set render target"); err != nil {
		return err
	}
	for _, c := range rt.Colors {
		if err := l.SetUsed(c); err != nil {
			return err
		}
	}
	if rt.Depth != nil {
		if err := l.SetUsed(rt.Depth); err != nil {
			return err
		}
	}
	l.rec.SetRenderTarget(rt)
	l.commands++
	return nil
}

// SetViewport sets the viewports.
func (l *CommandList) SetViewport(v ...Viewport) error {
	if err := l.checkRecording("set viewport"); err != nil {
		return err
	}
	l.rec.SetViewports(v)
	l.commands++
	return nil
}

// SetScissor sets the scissor rectangles.
func (l *CommandList) SetScissor(r ...Rect) error {
	if err := l.checkRecording("set scissor"); err != nil {
		return err
	}
	l.rec.SetScissors(r)
	l.commands++
	return nil
}

// SetPipeline binds a pipeline state object.
func (l *CommandList) SetPipeline(p Pipeline) error {
	if err := l.checkRecording("set pipeline"); err != nil {
		return err
	}
	l.pipeline = p
	l.rec.SetPipeline(p)
	l.commands++
	return nil
}

// SetDescriptorTable binds a descriptor table region to slot and marks its
// heap as used by this list.
func (l *CommandList) SetDescriptorTable(slot uint32, r descriptor.Region) error {
	if err := l.checkRecording("set descriptor table"); err != nil {
		return err
	}
	if r.Heap != nil {
		if err := l.SetUsed(r.Heap); err != nil {
			return err
		}
	}
	l.rec.SetDescriptorTable(slot, r)
	l.commands++
	return nil
}

// SetVertexState binds vertex buffers starting at slot start.
func (l *CommandList) SetVertexState(start uint32, bufs ...VertexBuffer) error {
	if err := l.checkRecording("set vertex state"); err != nil {
		return err
	}
	for _, vb := range bufs {
		if err := l.SetUsed(vb.Buffer); err != nil {
			return err
		}
	}
	l.rec.SetVertexBuffers(start, bufs)
	l.commands++
	return nil
}

// SetIndexState binds the index buffer.
func (l *CommandList) SetIndexState(b Buffer, offset uint64, format IndexFormat) error {
	if err := l.checkRecording("set index state"); err != nil {
		return err
	}
	if err := l.SetUsed(b); err != nil {
		return err
	}
	l.rec.SetIndexBuffer(b, offset, format)
	l.commands++
	return nil
}

// Draw records a non-indexed draw.
func (l *CommandList) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	if err := l.checkDraw("draw"); err != nil {
		return err
	}
	l.flushBarriers()
	l.rec.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	l.commands++
	return nil
}

// DrawIndexed records an indexed draw.
func (l *CommandList) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) error {
	if err := l.checkDraw("draw indexed"); err != nil {
		return err
	}
	l.flushBarriers()
	l.rec.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
	l.commands++
	return nil
}

// Dispatch records a compute dispatch.
func (l *CommandList) Dispatch(x, y, z uint32) error {
	if err := l.checkRecording("dispatch"); err != nil {
		return err
	}
	if l.pipeline != nil && !l.pipeline.Compute() {
		return ErrPipelineKind
	}
	l.flushBarriers()
	l.rec.Dispatch(x, y, z)
	l.commands++
	return nil
}

func (l *CommandList) checkDraw(op string) error {
	if err := l.checkRecording(op); err != nil {
		return err
	}
	if l.pipeline != nil && l.pipeline.Compute() {
		return ErrPipelineKind
	}
	return nil
}
