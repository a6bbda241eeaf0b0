package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"screen-recorder/src/audio"
	"screen-recorder/src/config"
	"screen-recorder/src/deps"
	"screen-recorder/src/runtimeinit"
	"screen-recorder/src/screenshot"
)

func newDevicesCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := audio.InputDevices()
			if err != nil {
				return err
			}
			printDevices(cmd.OutOrStdout(), devices)
			return nil
		},
	}
}

func printDevices(out io.Writer, devices []audio.DeviceInfo) {
	if len(devices) == 0 {
		fmt.Fprintln(out, "No audio input devices found")
		return
	}
	for _, d := range devices {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s (%s, %d ch)\n", marker, d.Name, d.HostAPI, d.InputChannels)
	}
}

func newDoctorCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the encoder, audio input and displays",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithOptions(loadOptions(opts))
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			out := cmd.OutOrStdout()
			if cfg.ConfigFile != "" {
				fmt.Fprintf(out, "Config: %s\n", cfg.ConfigFile)
			}

			cfg.FFmpegPath = deps.ResolveFFmpeg(cfg.FFmpegPath)
			for _, st := range deps.CheckBinaries([]deps.Requirement{runtimeinit.FFmpegRequirement(cfg)}) {
				fmt.Fprintln(out, formatDependency(st))
			}

			devices, err := audio.InputDevices()
			fmt.Fprintln(out, formatDevices(cfg.AudioDevice, devices, err))

			if bounds, err := screenshot.VirtualBounds(); err != nil {
				fmt.Fprintf(out, "[missing] Displays: %v\n", err)
			} else {
				fmt.Fprintf(out, "[ok] Displays: desktop %v\n", bounds)
			}
			return nil
		},
	}
}

func formatDependency(st deps.Status) string {
	if st.Available {
		return fmt.Sprintf("[ok] %s (%s): %s", st.Name, st.Command, st.Description)
	}
	suffix := ""
	if st.Optional {
		suffix = ", recordings with audio will be saved video-only"
	}
	return fmt.Sprintf("[missing] %s: %s%s", st.Name, st.Detail, suffix)
}

func formatDevices(configured string, devices []audio.DeviceInfo, err error) string {
	if err != nil {
		return fmt.Sprintf("[missing] Audio input: %v", err)
	}
	if len(devices) == 0 {
		return "[missing] Audio input: no input devices"
	}
	if configured == "" {
		for _, d := range devices {
			if d.Default {
				return fmt.Sprintf("[ok] Audio input: %d devices, default %s", len(devices), d.Name)
			}
		}
		return fmt.Sprintf("[ok] Audio input: %d devices", len(devices))
	}
	for _, d := range devices {
		if d.Name == configured {
			return fmt.Sprintf("[ok] Audio input: %s", d.Name)
		}
	}
	return fmt.Sprintf("[missing] Audio input: configured device %q not found", configured)
}
