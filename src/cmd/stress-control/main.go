package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"screen-recorder/src/config"
	"screen-recorder/src/messages"
	"screen-recorder/src/singleinstance"
)

type stressOptions struct {
	config   string
	n        int
	command  string
	deadline time.Duration
}

type tally struct {
	ok, rejected, missing, errs int32
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-control",
		Short:         "Stress test command delegation to the resident recorder",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(opts.command)
			if err != nil {
				return err
			}
			cfg, err := config.LoadWithOptions(config.LoadOptions{ConfigPath: opts.config})
			if err != nil {
				return err
			}
			ports := cfg.Ports()
			fmt.Fprintf(os.Stderr, "ports=%s\n", ports)
			t := runClients(opts.n, opts.deadline, kind, func() singleinstance.Client {
				return singleinstance.NewClient(ports)
			})
			fmt.Fprintf(os.Stdout, "launched=%d ok=%d rejected=%d no-resident=%d err=%d\n",
				opts.n, t.ok, t.rejected, t.missing, t.errs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.config, "config", "", "Path to recorder.toml")
	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.command, "command", "status", "status|pause: command each client sends")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

func parseKind(name string) (messages.Kind, error) {
	switch name {
	case "status":
		return messages.Status, nil
	case "pause":
		return messages.TogglePause, nil
	}
	return 0, fmt.Errorf("unsupported command %q (want status or pause)", name)
}

func runClients(n int, deadline time.Duration, kind messages.Kind, newClient func() singleinstance.Client) tally {
	var wg sync.WaitGroup
	var t tally

	start := time.Now()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), deadline)
			defer cancel()
			delegated, reply, err := newClient().Send(ctx, messages.Command{Kind: kind, Source: "stress"})
			switch {
			case err != nil && delegated:
				atomic.AddInt32(&t.rejected, 1)
			case err != nil:
				atomic.AddInt32(&t.errs, 1)
			case !delegated:
				atomic.AddInt32(&t.missing, 1)
			case reply.OK:
				atomic.AddInt32(&t.ok, 1)
			default:
				atomic.AddInt32(&t.rejected, 1)
			}
		}()
	}
	wg.Wait()
	fmt.Fprintf(os.Stderr, "elapsed=%s\n", time.Since(start))
	return t
}
