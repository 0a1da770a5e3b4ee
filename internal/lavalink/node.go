package lavalink

import (
	"sync"
	"time"

	"github.com/disgoorg/disgolink/v3/disgolink"

	"github.com/cybercade/bot/internal/nodes"
)

// nodeConn is one registered disgolink node. disgolink has no per-node
// lifecycle callbacks, so subscribers are fed from status polling.
type nodeConn struct {
	link disgolink.Client
	node disgolink.Node
	name string
	poll time.Duration

	closeOnce sync.Once
}

func newNodeConn(link disgolink.Client, node disgolink.Node, name string, poll time.Duration) *nodeConn {
	return &nodeConn{link: link, node: node, name: name, poll: poll}
}

func (c *nodeConn) Connected() bool {
	return c.node.Status() == disgolink.StatusConnected
}

func (c *nodeConn) Subscribe(fn func(nodes.NodeEvent)) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.poll)
		defer ticker.Stop()

		last := c.node.Status()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				status := c.node.Status()
				if status == last {
					continue
				}
				last = status
				if ev, ok := statusEvent(status); ok {
					fn(ev)
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}

func statusEvent(status disgolink.Status) (nodes.NodeEvent, bool) {
	switch status {
	case disgolink.StatusConnected:
		return nodes.NodeEvent{Type: nodes.NodeConnected}, true
	case disgolink.StatusDisconnected:
		return nodes.NodeEvent{Type: nodes.NodeDisconnected}, true
	}
	return nodes.NodeEvent{}, false
}

func (c *nodeConn) Close() {
	c.closeOnce.Do(func() {
		c.link.RemoveNode(c.name)
	})
}
