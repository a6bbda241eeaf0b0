package runtimeinit

import (
	"fmt"
	"log"

	"screen-recorder/src/clipboard"
	"screen-recorder/src/config"
	"screen-recorder/src/deps"
	"screen-recorder/src/notification"
)

type Options struct {
	LoadOptions  config.LoadOptions
	// SetupLogging receives the file logging switch and directory.
	SetupLogging func(enableFileLogging bool, dir string)
	// InitClipboard forces clipboard setup even when the config does not ask
	// for path copying.
	InitClipboard bool
}

// Bootstrap loads configuration and prepares the process-wide services.
// Missing optional services are logged, not fatal.
func Bootstrap(opts Options) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging, cfg.LogDir)
	}
	if cfg.ConfigFile != "" {
		log.Printf("runtimeinit: config file %s", cfg.ConfigFile)
	}

	notification.SetEnabled(cfg.Notify)

	cfg.FFmpegPath = deps.ResolveFFmpeg(cfg.FFmpegPath)
	for _, st := range deps.CheckBinaries([]deps.Requirement{FFmpegRequirement(cfg)}) {
		if !st.Available {
			log.Printf("runtimeinit: %s unavailable (%s); recordings with audio will be saved video-only", st.Name, st.Detail)
		}
	}

	if cfg.CopyPathToClipboard || opts.InitClipboard {
		if err := clipboard.Init(); err != nil {
			log.Printf("runtimeinit: clipboard unavailable: %v", err)
			cfg.CopyPathToClipboard = false
		}
	}

	return cfg, nil
}

// FFmpegRequirement describes the encoder used to add audio.
func FFmpegRequirement(cfg *config.Config) deps.Requirement {
	return deps.Requirement{
		Name:        "FFmpeg",
		Command:     cfg.FFmpegPath,
		Description: "Muxes the recorded audio into the final file",
		Optional:    true,
	}
}
