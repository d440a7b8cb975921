package sync

import "sync"

// accountFlags отмечает аккаунты с активным прогоном.
type accountFlags struct {
	mu      sync.Mutex
	running map[string]bool
}

func newAccountFlags() *accountFlags {
	return &accountFlags{running: make(map[string]bool)}
}

// acquire возвращает false, если прогон по аккаунту уже идёт.
func (f *accountFlags) acquire(accountUID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running[accountUID] {
		return false
	}
	f.running[accountUID] = true
	return true
}

func (f *accountFlags) release(accountUID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.running, accountUID)
}
