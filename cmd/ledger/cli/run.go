package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Usage lists the subcommands understood by Run.
const Usage = `usage: ledger [serve]
       ledger migrate
       ledger jobs trigger ledger:integrity [tenant-uuid]
       ledger jobs stats`

// Run executes an operator subcommand. It returns false when args name the
// HTTP server instead.
func Run(ctx context.Context, cfg *app.Config, logger *slog.Logger, out io.Writer, args []string) (bool, error) {
	if len(args) == 0 || args[0] == "serve" {
		return false, nil
	}
	switch args[0] {
	case "migrate":
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("odyssey-ledger-migrate")...)
		if err != nil {
			return true, err
		}
		defer pool.Close()
		return true, db.Migrate(ctx, pool, logger)
	case "jobs":
		return true, runJobs(ctx, cfg, out, args[1:])
	default:
		return true, fmt.Errorf("unknown command %q\n%s", args[0], Usage)
	}
}

func runJobs(ctx context.Context, cfg *app.Config, out io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing jobs subcommand\n%s", Usage)
	}
	c, err := NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return fmt.Errorf("missing job name\n%s", Usage)
		}
		arg := ""
		if len(args) > 2 {
			arg = args[2]
		}
		info, err := c.Trigger(ctx, args[1], arg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return nil
	case "stats":
		stats, err := c.InspectQueues(ctx)
		if err != nil {
			return err
		}
		for _, s := range stats {
			fmt.Fprintf(out, "%-8s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
				s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
		}
		return nil
	default:
		return fmt.Errorf("unknown jobs subcommand %q\n%s", args[0], Usage)
	}
}
