package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/cache"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/core"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/output"
)

func newCacheCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage cached read data",
	}

	var ttl time.Duration
	setCmd := &cobra.Command{
		Use:   "set <key> <json>",
		Short: "Cache a JSON value",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(opts, false, func(cmd *cobra.Command, a *app, args []string) error {
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("value is not valid JSON")
			}
			if outcome := a.cache.Set(cmd.Context(), args[0], json.RawMessage(args[1]), ttl); outcome != cache.OutcomeOK {
				return fmt.Errorf("cache write %s", outcome)
			}
			return nil
		}),
	}
	setCmd.Flags().DurationVar(&ttl, "ttl", 0, "Expiry (default from config)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List cached keys with their expiry",
			Args:  cobra.NoArgs,
			RunE: withApp(opts, false, func(cmd *cobra.Command, a *app, args []string) error {
				keys, outcome := a.cache.Keys(cmd.Context())
				if outcome != cache.OutcomeOK {
					return fmt.Errorf("cache unavailable")
				}
				entries := make(cacheEntries, 0, len(keys))
				for _, k := range keys {
					if md, ok := a.cache.Metadata(cmd.Context(), k); ok {
						entries = append(entries, md)
					}
				}
				return opts.printer(cmd).Print(entries)
			}),
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print a cached value",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(opts, false, func(cmd *cobra.Command, a *app, args []string) error {
				var raw json.RawMessage
				lookup := a.cache.Get(cmd.Context(), args[0], &raw)
				if !lookup.Found() {
					return fmt.Errorf("%s: %s", args[0], lookup)
				}
				return output.PrintJSON(cmd.OutOrStdout(), raw)
			}),
		},
		&cobra.Command{
			Use:   "meta <key>",
			Short: "Show entry metadata without touching it",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(opts, false, func(cmd *cobra.Command, a *app, args []string) error {
				md, ok := a.cache.Metadata(cmd.Context(), args[0])
				if !ok {
					return fmt.Errorf("%s: not cached", args[0])
				}
				p := opts.printer(cmd)
				if p.JSON() {
					return p.Print(md)
				}
				return output.KeyValues(p.Writer(), [][2]string{
					{"Key", md.Key},
					{"Created", md.CreatedAt.Format(time.RFC3339)},
					{"Expires", md.ExpiresAt.Format(time.RFC3339)},
					{"Age", core.HumanDuration(md.Age)},
					{"Expired", strconv.FormatBool(md.Expired)},
					{"Size", strconv.Itoa(md.Size)},
				})
			}),
		},
		setCmd,
		&cobra.Command{
			Use:   "rm <key>",
			Short: "Remove a cached entry",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(opts, false, func(cmd *cobra.Command, a *app, args []string) error {
				if outcome := a.cache.Remove(cmd.Context(), args[0]); outcome != cache.OutcomeOK {
					return fmt.Errorf("cache remove %s", outcome)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cached entry",
			Args:  cobra.NoArgs,
			RunE: withApp(opts, false, func(cmd *cobra.Command, a *app, args []string) error {
				n, outcome := a.cache.Clear(cmd.Context())
				opts.printer(cmd).Printf("Removed %d entries\n", n)
				if outcome != cache.OutcomeOK {
					return fmt.Errorf("cache clear %s", outcome)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "prune",
			Short: "Delete expired entries",
			Args:  cobra.NoArgs,
			RunE: withApp(opts, false, func(cmd *cobra.Command, a *app, args []string) error {
				n, outcome := a.cache.Prune(cmd.Context())
				opts.printer(cmd).Printf("Pruned %d expired entries\n", n)
				if outcome != cache.OutcomeOK {
					return fmt.Errorf("cache prune %s", outcome)
				}
				return nil
			}),
		},
	)
	return cmd
}

type cacheEntries []cache.Metadata

func (c cacheEntries) Headers() []string {
	return []string{"Key", "Age", "TTL", "Expired", "Size"}
}

func (c cacheEntries) Rows() [][]string {
	rows := make([][]string, 0, len(c))
	for _, md := range c {
		ttl := core.HumanDuration(md.TTL)
		if md.Expired {
			ttl = "-"
		}
		rows = append(rows, []string{
			md.Key,
			core.HumanDuration(md.Age),
			ttl,
			strconv.FormatBool(md.Expired),
			strconv.Itoa(md.Size),
		})
	}
	return rows
}

// withApp opens the components for a command and closes them afterwards.
func withApp(opts *options, withBackend bool, run func(*cobra.Command, *app, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), opts.cfg, withBackend)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}
