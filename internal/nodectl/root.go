package nodectl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cybercade/bot/config"
	"github.com/cybercade/bot/internal/nodes"
)

type options struct {
	url     string
	sources []string
	timeout time.Duration
	output  string
	verbose bool
}

// NewRootCmd builds the nodectl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "nodectl",
		Short: "Inspect the audio node directory the bot draws from",
		Long: `nodectl reads the same node directory as the bot, applies the same
filters and ranking, and prints what the bot would connect to.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := config.DefaultNodeDirectoryURL
	if env := os.Getenv("NODE_DIRECTORY_URL"); env != "" {
		defaultURL = env
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.url, "url", defaultURL, "node directory URL")
	flags.StringSliceVar(&opts.sources, "sources", nodes.DefaultRequiredSources, "source managers a node must support")
	flags.DurationVar(&opts.timeout, "timeout", nodes.DefaultCatalogTimeout, "directory request timeout")
	flags.StringVarP(&opts.output, "output", "o", "table", "output format: table, json, yaml")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log catalog activity to stderr")

	root.AddCommand(newCatalogCmd(opts), newRankCmd(opts))
	return root
}

func (o *options) catalog(errOut io.Writer) *nodes.HTTPCatalog {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
	return nodes.NewHTTPCatalog(o.url, o.sources, o.timeout, log)
}

func (o *options) print(cmd *cobra.Command, title string, views []NodeView) error {
	f, err := NewFormatter(o.output)
	if err != nil {
		return err
	}
	out, err := f.Format(title, views)
	if err != nil {
		return fmt.Errorf("format output: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func newCatalogCmd(opts *options) *cobra.Command {
	var eligibleOnly bool

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List every valid node in the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout+time.Second)
			defer cancel()

			all, cached, err := opts.catalog(cmd.ErrOrStderr()).Directory(ctx)
			if err != nil {
				return err
			}
			eligible := make(map[string]struct{})
			for _, d := range nodes.FilterCandidates(all, nil, opts.sources) {
				eligible[d.Identifier] = struct{}{}
			}

			views := make([]NodeView, 0, len(all))
			for _, d := range all {
				_, ok := eligible[d.Identifier]
				if eligibleOnly && !ok {
					continue
				}
				views = append(views, NodeView{Eligible: ok, NodeDescriptor: d})
			}

			title := fmt.Sprintf("Node directory · %d valid · %d eligible", len(all), len(eligible))
			if cached {
				title += " · cached"
			}
			return opts.print(cmd, title, views)
		},
	}
	cmd.Flags().BoolVar(&eligibleOnly, "eligible", false, "only show nodes the bot could use")
	return cmd
}

func newRankCmd(opts *options) *cobra.Command {
	var (
		count   int
		exclude []string
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Show the nodes the bot would pick, best first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 0 {
				return fmt.Errorf("--count must not be negative")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout+time.Second)
			defer cancel()

			excluding := make(map[string]struct{}, len(exclude))
			for _, id := range exclude {
				if id = strings.TrimSpace(id); id != "" {
					excluding[id] = struct{}{}
				}
			}

			candidates, err := opts.catalog(cmd.ErrOrStderr()).FetchCandidates(ctx, excluding)
			if err != nil {
				return err
			}

			var picked []nodes.NodeDescriptor
			if count == 0 {
				picked = nodes.Rank(candidates)
			} else {
				picked = nodes.Select(candidates, count)
			}

			views := make([]NodeView, 0, len(picked))
			for i, d := range picked {
				views = append(views, NodeView{Rank: i + 1, Eligible: true, NodeDescriptor: d})
			}
			return opts.print(cmd, fmt.Sprintf("Ranking · %d of %d candidates", len(views), len(candidates)), views)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", nodes.DefaultTarget, "how many nodes to pick (0 = all)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "identifiers to treat as already managed")
	return cmd
}
