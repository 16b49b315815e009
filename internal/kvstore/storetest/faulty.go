package storetest

import (
	"context"
	"errors"
	"sync"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/kvstore"
)

// ErrInjected is the error returned by a Faulty store when a fault is armed.
var ErrInjected = errors.New("storetest: injected storage failure")

// Faulty wraps a store and fails selected operations on demand.
type Faulty struct {
	kvstore.Store

	mu       sync.Mutex
	failGet  bool
	failSet  bool
	failRm   bool
	failList bool
	setCalls int
	getCalls int
}

// NewFaulty wraps inner.
func NewFaulty(inner kvstore.Store) *Faulty {
	return &Faulty{Store: inner}
}

// FailGet makes Get fail while on is true.
func (f *Faulty) FailGet(on bool) { f.mu.Lock(); f.failGet = on; f.mu.Unlock() }

// FailSet makes Set fail while on is true.
func (f *Faulty) FailSet(on bool) { f.mu.Lock(); f.failSet = on; f.mu.Unlock() }

// FailRemove makes Remove fail while on is true.
func (f *Faulty) FailRemove(on bool) { f.mu.Lock(); f.failRm = on; f.mu.Unlock() }

// FailList makes ListKeys fail while on is true.
func (f *Faulty) FailList(on bool) { f.mu.Lock(); f.failList = on; f.mu.Unlock() }

// SetCalls returns how many times Set was called.
func (f *Faulty) SetCalls() int { f.mu.Lock(); defer f.mu.Unlock(); return f.setCalls }

// GetCalls returns how many times Get was called.
func (f *Faulty) GetCalls() int { f.mu.Lock(); defer f.mu.Unlock(); return f.getCalls }

// Get implements kvstore.Store.
func (f *Faulty) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	f.getCalls++
	fail := f.failGet
	f.mu.Unlock()
	if fail {
		return "", false, ErrInjected
	}
	return f.Store.Get(ctx, key)
}

// Set implements kvstore.Store.
func (f *Faulty) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	f.setCalls++
	fail := f.failSet
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.Store.Set(ctx, key, value)
}

// Remove implements kvstore.Store.
func (f *Faulty) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	fail := f.failRm
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.Store.Remove(ctx, key)
}

// ListKeys implements kvstore.Store.
func (f *Faulty) ListKeys(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	fail := f.failList
	f.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return f.Store.ListKeys(ctx)
}
