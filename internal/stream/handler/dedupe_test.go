package handler

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClaimStore struct {
	keys map[string]bool
	err  error
}

func newFakeClaimStore() *fakeClaimStore {
	return &fakeClaimStore{keys: make(map[string]bool)}
}

func (s *fakeClaimStore) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *fakeClaimStore) Del(ctx context.Context, keys ...string) error {
	if s.err != nil {
		return s.err
	}
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func TestDuplicateGuardClaimAndRelease(t *testing.T) {
	store := newFakeClaimStore()
	guard := NewDuplicateGuard(store, time.Minute)
	ctx := context.Background()

	if !guard.Claim(ctx, "txn-1") {
		t.Fatal("first claim must succeed")
	}
	if guard.Claim(ctx, "txn-1") {
		t.Error("second claim of the same id must be rejected")
	}

	guard.Release(ctx, "txn-1")
	if !guard.Claim(ctx, "txn-1") {
		t.Error("claim after release must succeed")
	}
}

func TestDuplicateGuardFailsOpen(t *testing.T) {
	store := newFakeClaimStore()
	store.err = errors.New("redis: connection refused")
	guard := NewDuplicateGuard(store, time.Minute)

	if !guard.Claim(context.Background(), "txn-1") {
		t.Error("store errors must not block ingestion")
	}
	// Release with a broken store only logs; it must not panic.
	guard.Release(context.Background(), "txn-1")
}
