package config

import "sync"

// BaseConfigManager guards one config section. Every change passes the
// section's check before it becomes visible.
type BaseConfigManager[T any] struct {
	mu    sync.RWMutex
	conf  *T
	check func(T) error

	mgr *Manager
}

// Return the read-only configuration by value
func (a *BaseConfigManager[T]) C() T {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return *a.conf
}

type ConfigModifierFunc[T any] func(c *T)

// Set applies setFunc without verification, meant for defaults and tests
func (a *BaseConfigManager[T]) Set(setFunc ConfigModifierFunc[T]) {
	a.mu.Lock()
	defer a.mu.Unlock()

	setFunc(a.conf)
}

// Update applies setFunc to a copy and commits it only if the section is
// still valid afterwards. The file is written on success.
func (a *BaseConfigManager[T]) Update(setFunc ConfigModifierFunc[T]) error {
	a.mu.Lock()
	next := *a.conf
	setFunc(&next)

	if a.check != nil {
		if err := a.check(next); err != nil {
			a.mu.Unlock()
			return err
		}
	}

	*a.conf = next
	a.mu.Unlock()

	return a.Save()
}

// Verify checks the "hard" conditions that the rest of the code relies on
func (a *BaseConfigManager[T]) Verify() error {
	if a.check == nil {
		return nil
	}
	return a.check(a.C())
}

func (a *BaseConfigManager[T]) Save() error {
	// save the main config, dont lock, the manager will lock us
	return a.mgr.Save()
}

func (a *BaseConfigManager[T]) lock() {
	a.mu.Lock()
}

func (a *BaseConfigManager[T]) unlock() {
	a.mu.Unlock()
}
