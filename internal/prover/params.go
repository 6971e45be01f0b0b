package prover

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"zkcred/internal/domain"
	"zkcred/internal/zk"
)

// ParamsStore resolves a descriptor's proving parameters reference.
type ParamsStore interface {
	Load(ctx context.Context, ref string) (*zk.Params, error)
}

// MemoryParams holds parameters registered in process.
type MemoryParams struct {
	mu     sync.RWMutex
	params map[string]*zk.Params
}

func NewMemoryParams() *MemoryParams {
	return &MemoryParams{params: make(map[string]*zk.Params)}
}

func (m *MemoryParams) Put(ref string, p *zk.Params) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params[ref] = p
}

func (m *MemoryParams) Load(_ context.Context, ref string) (*zk.Params, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.params[ref]
	if !ok {
		return nil, fmt.Errorf("proving params %q: %w", ref, domain.ErrNotFound)
	}
	return p, nil
}

// FileParams loads parameter directories below root and keeps one decoded
// copy per reference, so concurrent proofs share a proving key.
type FileParams struct {
	root string

	mu     sync.Mutex
	loaded map[string]*zk.Params
}

func NewFileParams(root string) *FileParams {
	return &FileParams{root: root, loaded: make(map[string]*zk.Params)}
}

func (f *FileParams) Load(_ context.Context, ref string) (*zk.Params, error) {
	if ref == "" || strings.Contains(ref, "..") || filepath.IsAbs(ref) {
		return nil, errors.New("invalid proving params reference")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.loaded[ref]; ok {
		return p, nil
	}
	p, err := zk.LoadParams(filepath.Join(f.root, ref))
	if err != nil {
		return nil, fmt.Errorf("load proving params %q: %w", ref, err)
	}
	f.loaded[ref] = p
	return p, nil
}
