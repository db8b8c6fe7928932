package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/flitsinc/skyagent/internal/config"
	"github.com/flitsinc/skyagent/internal/cursor"
	"github.com/flitsinc/skyagent/internal/state"
	"github.com/flitsinc/skyagent/internal/stream"
)

var (
	jsonOutput   bool
	resetCursor  bool
	threadsLimit int
)

var cursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "Show the persisted stream cursor",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, cfg config.Config, store *state.Store) error {
			kv := cursor.NewKVStore(store, cursor.DefaultKey)
			if resetCursor {
				if err := kv.Delete(ctx); err != nil {
					return err
				}
				fmt.Println("cursor cleared; the next start follows the live stream")
				return nil
			}
			c, err := kv.Load(ctx)
			if err != nil {
				return err
			}
			if c == nil {
				fmt.Println("no cursor stored")
				return nil
			}
			now := time.Now()
			out := map[string]any{
				"cursor":    *c,
				"time":      time.UnixMicro(*c).UTC(),
				"age":       cursor.Age(*c, now).Round(time.Second).String(),
				"resume_at": stream.ResumePoint(*c, cfg.SafetyMargin),
				"stale":     cursor.Age(*c, now) > cfg.RetentionWindow,
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(out)
			}
			fmt.Printf("cursor:    %d\ntime:      %s\nage:       %s\nresume at: %d\nstale:     %v\n",
				*c, out["time"], out["age"], out["resume_at"], out["stale"])
			return nil
		})
	},
}

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List tracked reply threads",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, _ config.Config, store *state.Store) error {
			items, err := store.ListThreads(ctx, threadsLimit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(items)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ROOT\tLAST ACTIVITY")
			for _, th := range items {
				fmt.Fprintf(w, "%s\t%s\n", th.RootURI, th.LastActivity.Format(time.RFC3339))
			}
			return w.Flush()
		})
	},
}

func init() {
	cursorCmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cursorCmd.Flags().BoolVar(&resetCursor, "reset", false, "delete the stored cursor")
	threadsCmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	threadsCmd.Flags().IntVar(&threadsLimit, "limit", 50, "maximum threads to list")
}

func withStore(ctx context.Context, fn func(context.Context, config.Config, *state.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := state.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	return fn(ctx, cfg, state.NewStore(db))
}
