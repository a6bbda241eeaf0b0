package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"screen-recorder/src/config"
	"screen-recorder/src/logutil"
	"screen-recorder/src/messages"
	"screen-recorder/src/singleinstance"
)

type cliOptions struct {
	configPath string
	verbose    bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"recorder"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "recorder",
		Short:         "Record a screen region to a video file",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(opts.verbose)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to recorder.toml")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")

	cmd.AddCommand(
		newRecordCmd(opts),
		newDevicesCmd(opts),
		newDoctorCmd(opts),
		newStartCmd(opts),
		newControlCmd(opts, "pause", "Pause or resume the resident recorder", messages.TogglePause),
		newControlCmd(opts, "stop", "Stop the resident recorder and save the file", messages.Stop),
		newControlCmd(opts, "status", "Show the resident recorder state", messages.Status),
	)
	return cmd
}

// Configure logging BEFORE any other operations.
func setupLogging(verbose bool) {
	if !verbose {
		log.SetOutput(io.Discard)
		return
	}
	logutil.SetupVerbose()
	fmt.Fprintf(os.Stderr, "[verbose] Starting recorder\n")
}

func newStartCmd(opts *cliOptions) *cobra.Command {
	var region, output string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Ask the resident recorder to start a recording",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := startCommand(region, output)
			if err != nil {
				return err
			}
			client, err := newControlClient(opts)
			if err != nil {
				return err
			}
			return sendCommand(cmd.Context(), client, start, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "Region as x,y,w,h; omit to select interactively on the resident")
	cmd.Flags().StringVar(&output, "output", "", "Output file path")
	return cmd
}

func startCommand(region, output string) (messages.Command, error) {
	cmd := messages.Command{Kind: messages.Start, Source: "cli"}
	if region != "" {
		r, err := parseRegionFlag(region)
		if err != nil {
			return cmd, err
		}
		cmd.Region = &r
	}
	if output != "" {
		abs, err := filepath.Abs(output)
		if err != nil {
			return cmd, fmt.Errorf("resolve output path: %w", err)
		}
		cmd.Output = abs
	}
	return cmd, nil
}

func newControlCmd(opts *cliOptions, use, short string, kind messages.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newControlClient(opts)
			if err != nil {
				return err
			}
			return sendCommand(cmd.Context(), client, messages.Command{Kind: kind, Source: "cli"}, cmd.OutOrStdout())
		},
	}
}

// newControlClient scans the port range from the same configuration the
// resident loads.
func newControlClient(opts *cliOptions) (singleinstance.Client, error) {
	cfg, err := config.LoadWithOptions(loadOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log.Printf("control ports %s", cfg.Ports())
	return singleinstance.NewClient(cfg.Ports()), nil
}

var errNoResident = errors.New("no resident recorder is running")

// sendCommand delivers cmd to the resident and prints its reply.
func sendCommand(ctx context.Context, client singleinstance.Client, cmd messages.Command, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// Stop waits for finalization, which includes the ffmpeg merge.
	timeout := 10 * time.Second
	if cmd.Kind == messages.Stop || (cmd.Kind == messages.Start && cmd.Region == nil) {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delegated, reply, err := client.Send(ctx, cmd)
	if !delegated {
		if err != nil {
			return err
		}
		return errNoResident
	}
	if text := strings.TrimRight(reply.Text, "\n"); text != "" {
		fmt.Fprintln(out, text)
	}
	if err != nil || !reply.OK {
		return fmt.Errorf("%s rejected", strings.ToLower(cmd.Kind.String()))
	}
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func loadOptions(opts *cliOptions) config.LoadOptions {
	return config.LoadOptions{ConfigPath: opts.configPath}
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range legacyFlags {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "--" + arg[1:]
			}
		}
	}

	return normalized
}

var legacyFlags = []string{
	"config", "verbose", "region", "select", "output", "duration",
	"pause-at", "pause-for", "fps", "cursor", "audio", "device",
}
