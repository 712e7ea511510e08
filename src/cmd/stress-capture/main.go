package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"screen-answer-llm/src/singleinstance"
)

type stressOptions struct {
	n        int
	command  string
	deadline time.Duration
}

// tally counts outcomes across concurrent clients.
type tally struct {
	ok, busy, missing, failed atomic.Int32
}

func (t *tally) String() string {
	return fmt.Sprintf("ok=%d busy=%d no_resident=%d err=%d", t.ok.Load(), t.busy.Load(), t.missing.Load(), t.failed.Load())
}

func main() {
	if err := newRootCmd(&stressOptions{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-capture",
		Short:         "Fire concurrent commands at the resident and count outcomes",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := singleinstance.ParseCommand(opts.command)
			if err != nil {
				return err
			}
			t, elapsed := stress(context.Background(), singleinstance.NewClient(), c, opts.n, opts.deadline)
			report(cmd.OutOrStdout(), opts.n, t, elapsed)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.command, "command", "capture", "capture|status|reset")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

func stress(ctx context.Context, client singleinstance.Client, c singleinstance.Command, n int, deadline time.Duration) (*tally, time.Duration) {
	t := &tally{}
	var g errgroup.Group
	start := time.Now()
	for i := 0; i < n; i++ {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, deadline)
			defer cancel()
			delegated, _, err := client.Send(ctx, c)
			switch {
			case err != nil && strings.Contains(err.Error(), "in flight"):
				t.busy.Add(1)
			case err != nil:
				t.failed.Add(1)
			case !delegated:
				t.missing.Add(1)
			default:
				t.ok.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return t, time.Since(start)
}

func report(w io.Writer, n int, t *tally, elapsed time.Duration) {
	fmt.Fprintf(w, "launched=%d %s elapsed=%s\n", n, t, elapsed.Round(time.Millisecond))
}
