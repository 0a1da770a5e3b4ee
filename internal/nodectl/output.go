package nodectl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/cybercade/bot/internal/nodes"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))

// NodeView is one directory entry as printed by the CLI.
type NodeView struct {
	Rank     int  `json:"rank,omitempty" yaml:"rank,omitempty"`
	Eligible bool `json:"eligible" yaml:"eligible"`

	nodes.NodeDescriptor `yaml:",inline"`
}

// Formatter renders node views in one output format.
type Formatter interface {
	Format(title string, views []NodeView) (string, error)
}

func NewFormatter(format string) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "table":
		return tableFormatter{}, nil
	case "json":
		return jsonFormatter{}, nil
	case "yaml", "yml":
		return yamlFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

type jsonFormatter struct{}

func (jsonFormatter) Format(_ string, views []NodeView) (string, error) {
	if views == nil {
		views = []NodeView{}
	}
	b, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

type yamlFormatter struct{}

func (yamlFormatter) Format(_ string, views []NodeView) (string, error) {
	b, err := yaml.Marshal(views)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type tableFormatter struct{}

func (tableFormatter) Format(title string, views []NodeView) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(headerStyle.Render(title))
	buf.WriteString("\n")

	if len(views) == 0 {
		buf.WriteString("No nodes found.\n")
		return buf.String(), nil
	}

	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tIDENTIFIER\tADDRESS\tONLINE\tSECURE\tPLAYERS\tCPU\tSOURCES\tELIGIBLE")
	for _, v := range views {
		rank := "-"
		if v.Rank > 0 {
			rank = fmt.Sprint(v.Rank)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%s\t%s\t%s\t%t\n",
			rank,
			v.Identifier,
			v.Address(),
			v.Online,
			v.Secure,
			metric(float64(v.Load.ActiveSessions), "%.0f"),
			metric(v.Load.CPULoad, "%.2f"),
			sources(v.Capabilities),
			v.Eligible,
		)
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func metric(v float64, format string) string {
	if v < 0 {
		return "n/a"
	}
	return fmt.Sprintf(format, v)
}

func sources(caps map[string]bool) string {
	out := make([]string, 0, len(caps))
	for name, ok := range caps {
		if ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}
