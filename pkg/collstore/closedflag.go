package collstore

import "sync"

// ClosedFlag is shared by pointer between a Database and every Collection it
// creates, so closing the database is instantly visible to every collection
// without back-pointers. It is exported so backend packages can embed it in
// their own database/collection types.
type ClosedFlag struct {
	mu     sync.RWMutex
	closed bool
}

// IsClosed reports whether the flag has been set.
func (f *ClosedFlag) IsClosed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.closed
}

// Set marks the flag closed. Safe to call more than once.
func (f *ClosedFlag) Set() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// checkOpen returns ClosedHandleError if the flag is set, else nil. Every
// public Collection method calls this before touching storage.
func checkOpen(f *ClosedFlag) error {
	if f.IsClosed() {
		return &ClosedHandleError{}
	}
	return nil
}
