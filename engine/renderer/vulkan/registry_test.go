package vulkan

import (
	"sync"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryNeverIssuesZero(t *testing.T) {
	r := newRegistry[string](NewVulkanLockPool(), BufferManagement)
	a := r.add("a")
	b := r.add("b")
	assert.NotZero(t, a)
	assert.NotEqual(t, a, b)

	_, ok := r.get(0)
	assert.False(t, ok)

	v, ok := r.take(a)
	require.True(t, ok)
	assert.Equal(t, "a", v)
	_, ok = r.get(a)
	assert.False(t, ok)
	assert.Equal(t, 1, r.len())

	// handles are not reused after take
	assert.NotEqual(t, a, r.add("c"))
}

func TestRegistryDropWhere(t *testing.T) {
	r := newRegistry[descriptorSet](NewVulkanLockPool(), ResourceManagement)
	for i := 0; i < 4; i++ {
		r.add(descriptorSet{pool: uint64(i % 2)})
	}
	r.dropWhere(func(s descriptorSet) bool { return s.pool == 1 })
	assert.Equal(t, 2, r.len())
}

func TestRegistryConcurrentAdd(t *testing.T) {
	r := newRegistry[int](NewVulkanLockPool(), ImageManagement)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.add(i*100 + j)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 800, r.len())
}

func TestSafeQueueCallDoesNotBlockOtherFamilies(t *testing.T) {
	pool := NewVulkanLockPool()
	pool.SetQueueFamily(0)

	done := make(chan struct{})
	err := pool.SafeQueueCall(0, func() error {
		// a different family and a group lock must both be reachable while
		// family 0 is held
		go func() {
			_ = pool.SafeQueueCall(1, func() error { return nil })
			_ = pool.SafeCall(PipelineManagement, func() error { return nil })
			close(done)
		}()
		<-done
		return nil
	})
	assert.NoError(t, err)
}

func TestChooseSurfaceFormat(t *testing.T) {
	preferred := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	other := vk.SurfaceFormat{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	assert.Equal(t, preferred, chooseSurfaceFormat([]vk.SurfaceFormat{other, preferred}))
	assert.Equal(t, other, chooseSurfaceFormat([]vk.SurfaceFormat{other}))
}

func TestChoosePresentMode(t *testing.T) {
	modes := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}
	assert.Equal(t, vk.PresentModeMailbox, choosePresentMode(modes, false))
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode(modes, true))
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode([]vk.PresentMode{vk.PresentModeFifo}, false))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, uint32(10), clamp(5, 10, 20))
	assert.Equal(t, uint32(20), clamp(25, 10, 20))
	assert.Equal(t, uint32(15), clamp(15, 10, 20))
}

func TestResultHelpers(t *testing.T) {
	assert.Equal(t, "VK_ERROR_OUT_OF_DATE_KHR", VulkanResultString(vk.ErrorOutOfDate, false))
	assert.Contains(t, VulkanResultString(vk.ErrorDeviceLost, true), "lost")
	assert.True(t, VulkanResultIsSuccess(vk.Suboptimal))
	assert.False(t, VulkanResultIsSuccess(vk.ErrorOutOfDate))
	assert.NoError(t, check(vk.Success, "vkNoop"))
	assert.ErrorContains(t, check(vk.ErrorOutOfHostMemory, "vkCreateThing"), "vkCreateThing")

	assert.Equal(t, "main\x00", VulkanSafeString("main"))
	assert.Equal(t, "main\x00", VulkanSafeString("main\x00"))
}
