package resources

import (
	"fmt"

	"github.com/spaghettifunk/penumbra/engine/core"
	"github.com/spaghettifunk/penumbra/engine/renderer/gpu"
)

type layoutPair struct {
	from, to gpu.ImageLayout
}

type transition struct {
	srcAccess, dstAccess gpu.Access
	srcStage, dstStage   gpu.PipelineStage
}

const depthReadWrite = gpu.AccessDepthStencilAttachmentRead | gpu.AccessDepthStencilAttachmentWrite

var transitions = map[layoutPair]transition{
	{gpu.LayoutUndefined, gpu.LayoutTransferDst}: {
		gpu.AccessNone, gpu.AccessTransferWrite,
		gpu.StageTopOfPipe, gpu.StageTransfer,
	},
	{gpu.LayoutTransferDst, gpu.LayoutShaderReadOnly}: {
		gpu.AccessTransferWrite, gpu.AccessShaderRead,
		gpu.StageTransfer, gpu.StageFragmentShader,
	},
	{gpu.LayoutUndefined, gpu.LayoutDepthStencilAttachment}: {
		gpu.AccessNone, depthReadWrite,
		gpu.StageTopOfPipe, gpu.StageEarlyFragmentTests,
	},
	{gpu.LayoutDepthStencilAttachment, gpu.LayoutShaderReadOnly}: {
		gpu.AccessDepthStencilAttachmentWrite, gpu.AccessShaderRead,
		gpu.StageLateFragmentTests, gpu.StageFragmentShader,
	},
	{gpu.LayoutUndefined, gpu.LayoutShaderReadOnly}: {
		gpu.AccessNone, gpu.AccessShaderRead,
		gpu.StageTopOfPipe, gpu.StageFragmentShader,
	},
	{gpu.LayoutShaderReadOnly, gpu.LayoutDepthStencilAttachment}: {
		gpu.AccessShaderRead, gpu.AccessDepthStencilAttachmentWrite,
		gpu.StageFragmentShader, gpu.StageEarlyFragmentTests,
	},
	{gpu.LayoutDepthStencilReadOnly, gpu.LayoutShaderReadOnly}: {
		gpu.AccessShaderRead, gpu.AccessShaderRead,
		gpu.StageFragmentShader, gpu.StageFragmentShader,
	},
	{gpu.LayoutDepthStencilReadOnly, gpu.LayoutDepthStencilAttachment}: {
		gpu.AccessShaderRead, depthReadWrite,
		gpu.StageFragmentShader, gpu.StageEarlyFragmentTests,
	},
	{gpu.LayoutUndefined, gpu.LayoutGeneral}: {
		gpu.AccessNone, gpu.AccessShaderWrite | gpu.AccessShaderRead,
		gpu.StageTopOfPipe, gpu.StageFragmentShader,
	},
}

// LayoutBarrier returns the barrier and stages for moving layers of image
// from one layout to another.
func LayoutBarrier(image gpu.Image, format gpu.Format, from, to gpu.ImageLayout, baseLayer, layers uint32) (gpu.ImageBarrier, gpu.PipelineStage, gpu.PipelineStage, error) {
	t, ok := transitions[layoutPair{from, to}]
	if !ok {
		return gpu.ImageBarrier{}, 0, 0, core.Usage("resources.LayoutBarrier", fmt.Errorf("%w: %d -> %d", ErrUnsupportedTransition, from, to))
	}
	return gpu.ImageBarrier{
		Image:      image,
		OldLayout:  from,
		NewLayout:  to,
		SrcAccess:  t.srcAccess,
		DstAccess:  t.dstAccess,
		Aspect:     format.Aspect(),
		BaseLayer:  baseLayer,
		LayerCount: max(layers, 1),
	}, t.srcStage, t.dstStage, nil
}

// TransitionLayout moves every layer of image from one layout to another in a
// single-use command and waits for it.
func (p *Pool) TransitionLayout(image gpu.Image, format gpu.Format, from, to gpu.ImageLayout, layers uint32) error {
	barrier, src, dst, err := LayoutBarrier(image, format, from, to, 0, layers)
	if err != nil {
		return err
	}
	err = gpu.RunSingleUse(p.dev, func(cb gpu.CommandBuffer) error {
		p.dev.CmdPipelineBarrier(cb, src, dst, []gpu.ImageBarrier{barrier})
		return nil
	})
	if err != nil {
		return core.Resource("resources.TransitionLayout", err)
	}
	return nil
}
