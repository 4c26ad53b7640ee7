package gpu

import "fmt"

// RunSingleUse records and executes a throwaway command buffer, blocking
// until the queue is idle. Used for uploads and layout transitions; it must
// not be called while a frame's fence wait is outstanding.
func RunSingleUse(dev Device, record func(cb CommandBuffer) error) error {
	cbs, err := dev.AllocateCommandBuffers(1)
	if err != nil {
		return fmt.Errorf("single use: allocate command buffer: %w", err)
	}
	cb := cbs[0]
	defer dev.FreeCommandBuffers(cb)

	if err := dev.BeginCommandBuffer(cb, true); err != nil {
		return fmt.Errorf("single use: begin: %w", err)
	}
	if err := record(cb); err != nil {
		// still close the buffer so the pool can reclaim it
		_ = dev.EndCommandBuffer(cb)
		return err
	}
	if err := dev.EndCommandBuffer(cb); err != nil {
		return fmt.Errorf("single use: end: %w", err)
	}
	if err := dev.Submit(SubmitInfo{CommandBuffer: cb}); err != nil {
		return fmt.Errorf("single use: submit: %w", err)
	}
	if err := dev.QueueWaitIdle(); err != nil {
		return fmt.Errorf("single use: wait idle: %w", err)
	}
	return nil
}
