package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"dpxflow/internal/config"
	"dpxflow/internal/fileutil"
	"dpxflow/internal/journal"
	"dpxflow/internal/logging"
	"dpxflow/internal/pipeline"
	"dpxflow/internal/services/mediaconch"
	"dpxflow/internal/services/rawcooked"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.TrimSpace(*c.logLevelFlag)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// pipeline builds a Pipeline backed by the real tools and the journal. The
// returned func closes the journal.
func (c *commandContext) pipeline() (*pipeline.Pipeline, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, nil, err
	}

	cooker, err := rawcooked.New(cfg.RAWcooked.Binary, cfg.RAWcooked.License,
		rawcooked.WithSamples(cfg.RAWcooked.Samples),
		rawcooked.WithFramemd5(cfg.RAWcooked.Framemd5),
		rawcooked.WithTimeouts(cfg.ProbeTimeout(), cfg.CookTimeout()),
	)
	if err != nil {
		return nil, nil, err
	}
	checker, err := mediaconch.New(cfg.MediaConch.Binary, mediaconch.WithTimeout(cfg.PolicyTimeout()))
	if err != nil {
		return nil, nil, err
	}

	rec, err := journal.Open(cfg.JournalPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	closeFn := func() {
		if err := rec.Close(); err != nil {
			logger.Warn("close journal failed", logging.Error(err))
		}
	}

	p, err := pipeline.New(cfg, fileutil.OS{}, pipeline.Tools{
		Prober: cooker,
		Policy: checker,
		Cooker: cooker,
	}, pipeline.WithRecorder(rec), pipeline.WithLogger(logger))
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return p, closeFn, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
