package nodes

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"
)

// NodeLoad is the last load report of a node. Unreported values are -1.
type NodeLoad struct {
	ActiveSessions int     `json:"active_sessions" yaml:"active_sessions"`
	TotalSessions  int     `json:"total_sessions" yaml:"total_sessions"`
	CPULoad        float64 `json:"cpu_load" yaml:"cpu_load"`
	SystemCPULoad  float64 `json:"system_cpu_load" yaml:"system_cpu_load"`
}

// NodeDescriptor is a candidate audio-relay node as reported by the directory.
// Descriptors are built fresh on every fetch and never mutated afterwards.
type NodeDescriptor struct {
	Identifier         string          `json:"identifier" yaml:"identifier"`
	Host               string          `json:"host" yaml:"host"`
	Port               int             `json:"port" yaml:"port"`
	Password           string          `json:"-" yaml:"-"`
	Secure             bool            `json:"secure" yaml:"secure"`
	Online             bool            `json:"online" yaml:"online"`
	Capabilities       map[string]bool `json:"capabilities" yaml:"capabilities"`
	Load               NodeLoad        `json:"load" yaml:"load"`
	MemoryFree         int64           `json:"memory_free" yaml:"memory_free"`
	UptimeSeconds      int64           `json:"uptime_seconds" yaml:"uptime_seconds"`
	LastResponseTimeMs float64         `json:"last_response_time_ms" yaml:"last_response_time_ms"`
}

func (d NodeDescriptor) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

func (d NodeDescriptor) Config() NodeConfig {
	return NodeConfig{
		Identifier: d.Identifier,
		Host:       d.Host,
		Port:       d.Port,
		Password:   d.Password,
		Secure:     d.Secure,
	}
}

// NodeConfig is what the audio client needs to open a node connection.
type NodeConfig struct {
	Identifier string
	Host       string
	Port       int
	Password   string
	Secure     bool
}

func (c NodeConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type NodeEventType string

const (
	NodeConnected    NodeEventType = "connected"
	NodeErrored      NodeEventType = "error"
	NodeDisconnected NodeEventType = "disconnected"
)

type NodeEvent struct {
	Type NodeEventType
	Err  error
}

// Conn is a live audio-client node connection.
type Conn interface {
	Connected() bool
	// Subscribe delivers lifecycle events until the returned func is called.
	Subscribe(fn func(NodeEvent)) (unsubscribe func())
	Close()
}

// Connector registers node connections with the audio client.
type Connector interface {
	Connect(ctx context.Context, cfg NodeConfig) (Conn, error)
}

// ManagedNode is a node this process has committed to using. It owns its
// connection and its event subscription; Destroy releases both exactly once.
type ManagedNode struct {
	Identifier   string
	Address      string
	ManagedSince time.Time

	conn        Conn
	unsubscribe func()
	destroyOnce sync.Once
}

func NewManagedNode(id, address string, conn Conn) *ManagedNode {
	return &ManagedNode{
		Identifier:   id,
		Address:      address,
		ManagedSince: time.Now().UTC(),
		conn:         conn,
	}
}

func (n *ManagedNode) Connected() bool {
	if n == nil || n.conn == nil {
		return false
	}
	return n.conn.Connected()
}

func (n *ManagedNode) attach(unsubscribe func()) {
	n.unsubscribe = unsubscribe
}

func (n *ManagedNode) Destroy() {
	if n == nil {
		return
	}
	n.destroyOnce.Do(func() {
		if n.unsubscribe != nil {
			n.unsubscribe()
		}
		if n.conn != nil {
			n.conn.Close()
		}
	})
}

// NodeStatus is a read-only view of a managed node.
type NodeStatus struct {
	Identifier   string    `json:"identifier" yaml:"identifier"`
	Address      string    `json:"address" yaml:"address"`
	Connected    bool      `json:"connected" yaml:"connected"`
	ManagedSince time.Time `json:"managed_since" yaml:"managed_since"`
}
