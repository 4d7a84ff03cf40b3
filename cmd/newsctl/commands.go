package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/samvad-hq/samvad-newsdesk/internal/app"
	"github.com/samvad-hq/samvad-newsdesk/internal/config"
	"github.com/samvad-hq/samvad-newsdesk/internal/domain"
	"github.com/samvad-hq/samvad-newsdesk/internal/logger"
	"github.com/samvad-hq/samvad-newsdesk/pkg/sources"
)

// cli carries state shared by every subcommand.
type cli struct {
	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "newsctl",
		Short:         "Administer the newsdesk article store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, err := logger.Init(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			c.cfg, c.log = cfg, log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Close()
		},
	}

	root.AddCommand(
		c.scrapeCmd(),
		c.statusCmd(),
		c.deleteArticleCmd(),
		c.sourcesCmd(),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command) (*app.Newsdesk, error) {
	nd, err := app.New(cmd.Context(), c.cfg, c.log)
	if err != nil {
		return nil, fmt.Errorf("open newsdesk: %w", err)
	}
	return nd, nil
}

func (c *cli) scrapeCmd() *cobra.Command {
	var (
		source string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run a scrape now for one source or all sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			nd, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer nd.Close()

			resp, err := nd.Gateway().Trigger(cmd.Context(), source, force)
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Source", "Status", "New", "Message"})
			for _, r := range resp.Sources {
				t.AppendRow(table.Row{r.Source, r.Outcome, r.NewArticles, r.Message})
			}
			t.AppendFooter(table.Row{"total", resp.Status, resp.NewArticles, fmt.Sprintf("%d stored", resp.TotalArticles)})
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source id to scrape (default: all)")
	cmd.Flags().BoolVar(&force, "force", false, "ignore the cooldown guard")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show totals and per-source scrape state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			nd, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer nd.Close()

			status, err := nd.Gateway().Status(cmd.Context())
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Source", "Status", "Last scraped", "Articles found", "Error"})
			for _, src := range nd.Sources() {
				st, ok := status.Sources[src.ID]
				if !ok {
					st = domain.NewScrapeState(src.ID)
				}
				t.AppendRow(table.Row{src.ID, st.Status, formatTime(st.LastScrapedAt), st.ArticlesFound, deref(st.ErrorMessage)})
			}
			t.AppendFooter(table.Row{"total", "", "", status.TotalArticles, ""})
			t.Render()
			return nil
		},
	}
}

func (c *cli) deleteArticleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-article <article-id>",
		Short: "Delete an article and its bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nd, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer nd.Close()

			if err := nd.Gateway().DeleteArticle(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List enabled sources from the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := sources.LoadRegistry(c.cfg.SourcesFile)
			if err != nil {
				return fmt.Errorf("load sources registry: %w", err)
			}
			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"ID", "Name", "Type", "Listing URL", "Enrich"})
			for _, s := range reg.Sources() {
				t.AppendRow(table.Row{s.ID, s.Name, s.Type, s.ListingURL, s.Enrich})
			}
			t.Render()
			return nil
		},
	}
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	return t
}

func formatTime(ts *time.Time) string {
	if ts == nil {
		return "never"
	}
	return ts.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
