package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/core"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/logger"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/metrics"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/output"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/syncer"
)

func (o *options) userID(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if o.cfg.Sync.UserID != "" {
		return o.cfg.Sync.UserID, nil
	}
	return "", fmt.Errorf("no user: pass --user, set sync.user_id or %s", core.UserEnvVar)
}

func newSyncCmd(opts *options) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replay queued actions against the backend once",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, true, func(cmd *cobra.Command, a *app, args []string) error {
			userID, err := opts.userID(user)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := a.sync.ProcessQueue(ctx, userID)
			if perr := printResult(opts.printer(cmd), result); perr != nil {
				return perr
			}
			return err
		}),
	}
	cmd.Flags().StringVar(&user, "user", "", "User the actions belong to")
	return cmd
}

func newWatchCmd(opts *options) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Read online/offline lines from stdin and sync on every reconnect",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, true, func(cmd *cobra.Command, a *app, args []string) error {
			userID, err := opts.userID(user)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := opts.printer(cmd)
			w := &syncer.Watcher{
				Coordinator: a.sync,
				UserID:      userID,
				OnDrain: func(r syncer.Result, err error) {
					_ = printResult(p, r)
				},
			}

			if opts.cfg.Metrics.Enabled {
				go func() {
					if err := metrics.Serve(ctx, opts.cfg.Metrics.Port, a.queueStatus); err != nil {
						logger.Error("Metrics server failed", logger.KeyError, err)
					}
				}()
			}

			// The reader may stay blocked on stdin after ctx is done; it exits
			// with the process.
			signals := make(chan bool)
			go func() {
				defer close(signals)
				if err := readConnectivity(ctx, cmd.InOrStdin(), signals); err != nil {
					logger.Error("Connectivity input failed", logger.KeyError, err)
				}
			}()

			err = w.Run(ctx, signals)
			stop()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}),
	}
	cmd.Flags().StringVar(&user, "user", "", "User the actions belong to")
	return cmd
}

// readConnectivity turns lines on r into connectivity values until r is
// exhausted or ctx is done. Unrecognized lines are logged and skipped.
func readConnectivity(ctx context.Context, r io.Reader, out chan<- bool) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		online, err := parseConnectivity(line)
		if err != nil {
			logger.Warn("Ignoring connectivity line", "line", line, logger.KeyError, err)
			continue
		}
		select {
		case out <- online:
		case <-ctx.Done():
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read connectivity: %w", err)
	}
	return nil
}

func parseConnectivity(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "online", "up", "connected":
		return true, nil
	case "offline", "down", "disconnected":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("unknown connectivity state %q", s)
	}
	return b, nil
}

type resultTable syncer.Result

func (r resultTable) Headers() []string {
	return []string{"Item", "Type", "Retries", "Error"}
}

func (r resultTable) Rows() [][]string {
	rows := make([][]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		rows = append(rows, []string{e.ID, string(e.Type), strconv.Itoa(e.RetryCount), e.Error})
	}
	return rows
}

func printResult(p *output.Printer, r syncer.Result) error {
	if p.JSON() {
		return p.Print(r)
	}
	p.Printf("Synced %d of %d actions, %d failed\n", r.Processed, r.Total, r.Failed)
	if len(r.Errors) == 0 {
		return nil
	}
	p.Println("Dropped after final retry:")
	return p.Print(resultTable(r))
}
