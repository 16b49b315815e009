package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/core"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/output"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/queue"
)

func newQueueCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the offline action queue",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List queued actions without their payloads",
			Args:  cobra.NoArgs,
			RunE: withApp(opts, false, func(cmd *cobra.Command, a *app, args []string) error {
				preview, err := a.queue.Preview(cmd.Context())
				if err != nil {
					return err
				}
				p := opts.printer(cmd)
				if p.JSON() {
					return output.StreamJSONSlice(p.Writer(), preview)
				}
				return p.Print(previewTable(preview))
			}),
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Show queue counters",
			Args:  cobra.NoArgs,
			RunE: withApp(opts, false, func(cmd *cobra.Command, a *app, args []string) error {
				stats, err := a.queue.Stats(cmd.Context())
				if err != nil {
					return err
				}
				p := opts.printer(cmd)
				if p.JSON() {
					return p.Print(stats)
				}
				oldest, age := "-", "-"
				if stats.Oldest != "" {
					oldest = stats.Oldest
					if t, err := core.ParseTimestamp(stats.Oldest); err == nil {
						age = core.HumanDuration(time.Since(t))
					}
				}
				return output.KeyValues(p.Writer(), [][2]string{
					{"Total", strconv.Itoa(stats.Total)},
					{"Pending", strconv.Itoa(stats.Pending)},
					{"Failed", strconv.Itoa(stats.Failed)},
					{"Oldest", oldest},
					{"Oldest age", age},
				})
			}),
		},
		&cobra.Command{
			Use:   "add <type> <json>",
			Short: "Queue an action, e.g. add UPDATE_APPLIANCE '{\"id\":\"a1\",\"is_on\":true}'",
			Args:  cobra.ExactArgs(2),
			RunE: withApp(opts, false, func(cmd *cobra.Command, a *app, args []string) error {
				typ, err := queue.ParseActionType(args[0])
				if err != nil {
					return err
				}
				var data map[string]any
				if err := json.Unmarshal([]byte(args[1]), &data); err != nil {
					return fmt.Errorf("action data must be a JSON object: %w", err)
				}
				item, err := a.queue.Add(cmd.Context(), queue.Action{Type: typ, Data: data})
				if err != nil {
					return err
				}
				p := opts.printer(cmd)
				if p.JSON() {
					return p.Print(item)
				}
				p.Println(item.ID)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Remove a queued action",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(opts, false, func(cmd *cobra.Command, a *app, args []string) error {
				return a.queue.Remove(cmd.Context(), args[0])
			}),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Drop every queued action",
			Args:  cobra.NoArgs,
			RunE: withApp(opts, false, func(cmd *cobra.Command, a *app, args []string) error {
				return a.queue.Clear(cmd.Context())
			}),
		},
	)
	return cmd
}

type previewTable []queue.PreviewItem

func (t previewTable) Headers() []string {
	return []string{"ID", "Type", "Queued", "Retries", "Status"}
}

func (t previewTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, it := range t {
		rows = append(rows, []string{
			it.ID,
			string(it.Type),
			it.Timestamp,
			strconv.Itoa(it.RetryCount),
			string(it.Status),
		})
	}
	return rows
}
