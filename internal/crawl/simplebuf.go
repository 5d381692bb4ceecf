package crawl

import (
	"context"
	"sort"
	"sync"

	"go-tistory-archive/internal/model"
)

// SimpleBuffer 在极简模式下收集抓取结果，避免落库。
type SimpleBuffer struct {
	mu       sync.Mutex
	posts    map[int]model.Record  // key: cursor
	failures map[int]model.Failure // key: cursor
}

func NewSimpleBuffer() *SimpleBuffer {
	return &SimpleBuffer{
		posts:    make(map[int]model.Record),
		failures: make(map[int]model.Failure),
	}
}

func (b *SimpleBuffer) UpsertPost(_ context.Context, r model.Record) error {
	b.mu.Lock()
	b.posts[r.Cursor] = r
	delete(b.failures, r.Cursor)
	b.mu.Unlock()
	return nil
}

func (b *SimpleBuffer) AddFailure(_ context.Context, f model.Failure) error {
	b.mu.Lock()
	b.failures[f.Cursor] = f
	b.mu.Unlock()
	return nil
}

// Snapshot 返回按游标升序排列的副本。
func (b *SimpleBuffer) Snapshot() ([]model.Record, []model.Failure) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ps := make([]model.Record, 0, len(b.posts))
	for _, v := range b.posts {
		ps = append(ps, v)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Cursor < ps[j].Cursor })
	fs := make([]model.Failure, 0, len(b.failures))
	for _, v := range b.failures {
		fs = append(fs, v)
	}
	sort.Slice(fs, func(i, j int) bool { return fs[i].Cursor < fs[j].Cursor })
	return ps, fs
}
