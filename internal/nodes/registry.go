package nodes

import (
	"fmt"
	"iter"
	"slices"
	"sync"
)

// Registry is the set of managed nodes keyed by identifier.
// Each primitive is atomic; All returns a snapshot that later mutation does not affect.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*ManagedNode
}

func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]*ManagedNode)}
}

func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nodes[id]
	return ok
}

func (r *Registry) Get(id string) (*ManagedNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	return n, ok
}

func (r *Registry) Add(node *ManagedNode) error {
	if node == nil || node.Identifier == "" {
		return fmt.Errorf("node identifier is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[node.Identifier]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, node.Identifier)
	}
	r.nodes[node.Identifier] = node
	return nil
}

// Remove drops the node and destroys its connection. It reports whether the
// node was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	node, ok := r.nodes[id]
	if ok {
		delete(r.nodes, id)
	}
	r.mu.Unlock()

	if ok {
		node.Destroy()
	}
	return ok
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

func (r *Registry) snapshot() []*ManagedNode {
	r.mu.RLock()
	out := make([]*ManagedNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *ManagedNode) int {
		switch {
		case a.Identifier < b.Identifier:
			return -1
		case a.Identifier > b.Identifier:
			return 1
		}
		return 0
	})
	return out
}

// All yields the nodes present when All was called, ordered by identifier.
// The sequence can be ranged over any number of times.
func (r *Registry) All() iter.Seq[*ManagedNode] {
	snap := r.snapshot()
	return func(yield func(*ManagedNode) bool) {
		for _, n := range snap {
			if !yield(n) {
				return
			}
		}
	}
}

func (r *Registry) IDs() map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make(map[string]struct{}, len(r.nodes))
	for id := range r.nodes {
		ids[id] = struct{}{}
	}
	return ids
}

// Clear destroys every managed node.
func (r *Registry) Clear() {
	r.mu.Lock()
	nodes := r.nodes
	r.nodes = make(map[string]*ManagedNode)
	r.mu.Unlock()

	for _, n := range nodes {
		n.Destroy()
	}
}
