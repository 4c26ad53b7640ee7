package vulkan

// registry maps the integer handles given to the renderer onto the Vulkan
// objects behind them. Handle zero is never issued.
type registry[T any] struct {
	locks *VulkanLockPool
	group LockGroup
	next  uint64
	items map[uint64]T
}

func newRegistry[T any](locks *VulkanLockPool, group LockGroup) *registry[T] {
	return &registry[T]{
		locks: locks,
		group: group,
		items: make(map[uint64]T),
	}
}

func (r *registry[T]) add(v T) uint64 {
	var h uint64
	_ = r.locks.SafeCall(r.group, func() error {
		r.next++
		h = r.next
		r.items[h] = v
		return nil
	})
	return h
}

func (r *registry[T]) get(h uint64) (T, bool) {
	var (
		v  T
		ok bool
	)
	_ = r.locks.SafeCall(r.group, func() error {
		v, ok = r.items[h]
		return nil
	})
	return v, ok
}

func (r *registry[T]) set(h uint64, v T) {
	_ = r.locks.SafeCall(r.group, func() error {
		r.items[h] = v
		return nil
	})
}

// take removes h and returns what it pointed to.
func (r *registry[T]) take(h uint64) (T, bool) {
	var (
		v  T
		ok bool
	)
	_ = r.locks.SafeCall(r.group, func() error {
		v, ok = r.items[h]
		delete(r.items, h)
		return nil
	})
	return v, ok
}

func (r *registry[T]) len() int {
	n := 0
	_ = r.locks.SafeCall(r.group, func() error {
		n = len(r.items)
		return nil
	})
	return n
}

// dropWhere removes every entry matching pred.
func (r *registry[T]) dropWhere(pred func(T) bool) {
	_ = r.locks.SafeCall(r.group, func() error {
		for h, v := range r.items {
			if pred(v) {
				delete(r.items, h)
			}
		}
		return nil
	})
}
