package nodes

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(NewManagedNode("n1", "n1:2333", newFakeConn("n1"))))

	err := r.Add(NewManagedNode("n1", "other:2333", newFakeConn("n1")))
	require.ErrorIs(t, err, ErrDuplicateNode)
	assert.Equal(t, 1, r.Size())

	n, ok := r.Get("n1")
	require.True(t, ok)
	assert.Equal(t, "n1:2333", n.Address)
}

func TestRegistryAddRequiresIdentifier(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Add(nil))
	assert.Error(t, r.Add(NewManagedNode("", "x:1", newFakeConn(""))))
	assert.Equal(t, 0, r.Size())
}

func TestRegistryRemoveDestroysOnce(t *testing.T) {
	r := NewRegistry()
	conn := newFakeConn("n1")
	node := NewManagedNode("n1", "n1:2333", conn)
	node.attach(conn.Subscribe(func(NodeEvent) {}))
	require.NoError(t, r.Add(node))
	require.Equal(t, 1, conn.subscribers())

	assert.True(t, r.Remove("n1"))
	assert.False(t, r.Remove("n1"))
	node.Destroy()

	assert.False(t, r.Contains("n1"))
	assert.Equal(t, int32(1), conn.closed.Load())
	assert.Equal(t, 0, conn.subscribers())
}

func TestRegistryRemoveMissingIsNoop(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Remove("ghost"))
	assert.Equal(t, 0, r.Size())
}

func TestRegistryAllIsSnapshot(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, r.Add(NewManagedNode(id, id+":1", newFakeConn(id))))
	}

	seq := r.All()
	r.Remove("a")
	require.NoError(t, r.Add(NewManagedNode("d", "d:1", newFakeConn("d"))))

	collect := func() []string {
		var ids []string
		for n := range seq {
			ids = append(ids, n.Identifier)
		}
		return ids
	}

	assert.Equal(t, []string{"a", "b", "c"}, collect())
	// restartable
	assert.Equal(t, []string{"a", "b", "c"}, collect())

	for n := range seq {
		assert.Equal(t, "a", n.Identifier)
		break
	}
}

func TestRegistryIDsAndClear(t *testing.T) {
	r := NewRegistry()
	conns := make([]*fakeConn, 0, 3)
	for i := range 3 {
		id := fmt.Sprintf("n%d", i)
		conn := newFakeConn(id)
		conns = append(conns, conn)
		require.NoError(t, r.Add(NewManagedNode(id, id+":1", conn)))
	}

	ids := r.IDs()
	assert.Len(t, ids, 3)
	assert.Contains(t, ids, "n1")

	r.Clear()
	assert.Equal(t, 0, r.Size())
	for _, c := range conns {
		assert.Equal(t, int32(1), c.closed.Load())
	}
}

func TestRegistryConcurrentAdds(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.Add(NewManagedNode("same", "same:1", newFakeConn("same")))
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrDuplicateNode)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, r.Size())
}
