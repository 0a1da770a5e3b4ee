package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultCatalogTimeout = 10 * time.Second
	tracerName            = "cybercade/nodes"
)

var DefaultRequiredSources = []string{"youtube", "soundcloud", "spotify"}

// Catalog supplies candidate nodes.
type Catalog interface {
	FetchCandidates(ctx context.Context, excluding map[string]struct{}) ([]NodeDescriptor, error)
}

// HTTPCatalog reads candidates from a node directory service.
type HTTPCatalog struct {
	URL             string
	RequiredSources []string
	HTTPClient      *http.Client
	log             *slog.Logger
}

func NewHTTPCatalog(url string, requiredSources []string, timeout time.Duration, log *slog.Logger) *HTTPCatalog {
	if timeout <= 0 {
		timeout = DefaultCatalogTimeout
	}
	if len(requiredSources) == 0 {
		requiredSources = DefaultRequiredSources
	}
	if log == nil {
		log = slog.Default()
	}
	return &HTTPCatalog{
		URL:             url,
		RequiredSources: requiredSources,
		HTTPClient:      &http.Client{Timeout: timeout},
		log:             log,
	}
}

type directoryResponse struct {
	Nodes  []directoryNode `json:"nodes"`
	Cached bool            `json:"cached"`
}

type directoryNode struct {
	Identifier    string        `json:"identifier"`
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	Password      *string       `json:"password"`
	Secure        *bool         `json:"secure"`
	IsConnected   bool          `json:"isConnected"`
	StatusHistory []statusEntry `json:"statusHistory"`
	Connections   *connections  `json:"connections"`
	CPU           *cpuStats     `json:"cpu"`
	Memory        *memoryStats  `json:"memory"`
	Uptime        *int64        `json:"uptime"`
	Info          *lavalinkInfo `json:"info"`
}

type statusEntry struct {
	Online       bool     `json:"online"`
	ResponseTime *float64 `json:"responseTime"`
}

type connections struct {
	Players        *int `json:"players"`
	PlayingPlayers *int `json:"playingPlayers"`
}

type cpuStats struct {
	SystemLoad   *float64 `json:"systemLoad"`
	LavalinkLoad *float64 `json:"lavalinkLoad"`
}

type memoryStats struct {
	Free int64 `json:"free"`
}

type lavalinkInfo struct {
	SourceManagers []string `json:"sourceManagers"`
}

// Directory fetches and normalizes the whole directory without filtering
// against managed nodes. Malformed entries are dropped.
func (c *HTTPCatalog) Directory(ctx context.Context) ([]NodeDescriptor, bool, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "nodes.catalog.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("catalog.url", c.URL))

	payload, err := c.fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog unavailable")
		return nil, false, err
	}

	out := make([]NodeDescriptor, 0, len(payload.Nodes))
	for _, raw := range payload.Nodes {
		d, ok := normalize(raw)
		if !ok {
			continue
		}
		out = append(out, d)
	}
	span.SetAttributes(
		attribute.Int("catalog.nodes", len(payload.Nodes)),
		attribute.Int("catalog.valid", len(out)),
		attribute.Bool("catalog.cached", payload.Cached),
	)
	return out, payload.Cached, nil
}

func (c *HTTPCatalog) FetchCandidates(ctx context.Context, excluding map[string]struct{}) ([]NodeDescriptor, error) {
	all, cached, err := c.Directory(ctx)
	if err != nil {
		return nil, err
	}

	candidates := FilterCandidates(all, excluding, c.RequiredSources)
	c.log.Info("node catalog fetched",
		"total", len(all),
		"suitable", len(candidates),
		"excluded", len(excluding),
		"cached", cached,
	)
	return candidates, nil
}

func (c *HTTPCatalog) fetch(ctx context.Context) (*directoryResponse, error) {
	if strings.TrimSpace(c.URL) == "" {
		return nil, fmt.Errorf("%w: directory url is not configured", ErrCatalogUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: directory status %d", ErrCatalogUnavailable, resp.StatusCode)
	}

	var payload directoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %w", ErrCatalogUnavailable, err)
	}
	return &payload, nil
}

// FilterCandidates keeps reachable, non-secure nodes that are not excluded and
// support every required source.
func FilterCandidates(all []NodeDescriptor, excluding map[string]struct{}, required []string) []NodeDescriptor {
	out := make([]NodeDescriptor, 0, len(all))
	for _, d := range all {
		if _, skip := excluding[d.Identifier]; skip {
			continue
		}
		if !d.Online || d.Secure {
			continue
		}
		if !supportsAll(d, required) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func supportsAll(d NodeDescriptor, required []string) bool {
	for _, src := range required {
		if !d.Capabilities[strings.ToLower(strings.TrimSpace(src))] {
			return false
		}
	}
	return true
}

func normalize(raw directoryNode) (NodeDescriptor, bool) {
	host := strings.TrimSpace(raw.Host)
	if host == "" || raw.Port <= 0 || raw.Port > 65535 {
		return NodeDescriptor{}, false
	}
	// An empty password is valid for open nodes; only a missing field is not.
	if raw.Password == nil {
		return NodeDescriptor{}, false
	}
	if raw.Secure == nil {
		return NodeDescriptor{}, false
	}

	id := strings.TrimSpace(raw.Identifier)
	if id == "" {
		id = host
	}

	d := NodeDescriptor{
		Identifier: id,
		Host:       host,
		Port:       raw.Port,
		Password:   *raw.Password,
		Secure:     *raw.Secure,
		Online:     raw.IsConnected,
		Load: NodeLoad{
			ActiveSessions: -1,
			TotalSessions:  -1,
			CPULoad:        -1,
			SystemCPULoad:  -1,
		},
		LastResponseTimeMs: -1,
		Capabilities:       make(map[string]bool),
	}

	if n := len(raw.StatusHistory); n > 0 {
		latest := raw.StatusHistory[n-1]
		d.Online = d.Online || latest.Online
		if latest.ResponseTime != nil {
			d.LastResponseTimeMs = *latest.ResponseTime
		}
	}
	if raw.Connections != nil {
		if raw.Connections.PlayingPlayers != nil {
			d.Load.ActiveSessions = *raw.Connections.PlayingPlayers
		}
		if raw.Connections.Players != nil {
			d.Load.TotalSessions = *raw.Connections.Players
		}
	}
	if raw.CPU != nil {
		if raw.CPU.LavalinkLoad != nil {
			d.Load.CPULoad = *raw.CPU.LavalinkLoad
		}
		if raw.CPU.SystemLoad != nil {
			d.Load.SystemCPULoad = *raw.CPU.SystemLoad
		}
	}
	if raw.Memory != nil {
		d.MemoryFree = raw.Memory.Free
	}
	if raw.Uptime != nil {
		d.UptimeSeconds = *raw.Uptime
	}
	if raw.Info != nil {
		for _, src := range raw.Info.SourceManagers {
			d.Capabilities[strings.ToLower(strings.TrimSpace(src))] = true
		}
	}
	return d, true
}
