package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/evrstamp/internal/config"
	"github.com/danmuck/evrstamp/internal/observability"
	"github.com/danmuck/evrstamp/internal/pipeline"
	"github.com/danmuck/evrstamp/internal/protocol/trace"
	"github.com/danmuck/evrstamp/internal/server"
	"github.com/danmuck/evrstamp/internal/stream"
	"github.com/google/uuid"
	"github.com/pkg/profile"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n", os.Args[0])
		flag.PrintDefaults()
	}
	configPath := flag.String("config", "cmd/evrctl/config.toml", "service config `path` (skipped if missing)")
	pipelinePath := flag.String("pipeline", "", "pipeline config `path` (overrides the service file)")
	ticks := flag.Uint64("ticks", 0, "run n consumer ticks, print the register map, and exit")
	record := flag.String("record", "", "record the input stream to a trace `file`")
	profileMode := flag.String("profile", "", "write a cpu or mem profile to the working directory")
	flag.Parse()

	observability.InitLogger("evrctl")

	if err := run(*configPath, *pipelinePath, *ticks, *record, *profileMode); err != nil {
		log.Error().Err(err).Msg("evrctl failed")
		os.Exit(1)
	}
}

func run(configPath, pipelinePath string, ticks uint64, record, profileMode string) error {
	switch strings.ToLower(strings.TrimSpace(profileMode)) {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	default:
		return fmt.Errorf("unknown profile mode: %q", profileMode)
	}

	svc := defaultServiceConfig()
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := loadServiceConfig(configPath)
		if err != nil {
			return err
		}
		svc = loaded
		log.Info().Str("path", configPath).Msg("loaded service config")
	}
	if pipelinePath == "" {
		pipelinePath = svc.PipelinePath
	}

	pcfg := config.Default()
	if pipelinePath != "" {
		loaded, err := config.Load(pipelinePath)
		if err != nil {
			return err
		}
		pcfg = loaded
		log.Info().Str("path", pipelinePath).Msg("loaded pipeline config")
	}
	cfg, err := pcfg.Pipeline()
	if err != nil {
		return err
	}
	if cfg.RunID == uuid.Nil {
		cfg.RunID = uuid.New()
	}
	cfg.PaceInterval = svc.PaceInterval
	cfg.TicksPerPace = svc.TicksPerPace
	cfg.HeartbeatInterval = svc.HeartbeatInterval

	src, err := pcfg.OpenSource()
	if err != nil {
		return err
	}
	var recorder *trace.Recorder
	if record != "" {
		f, err := os.Create(record)
		if err != nil {
			return fmt.Errorf("create trace: %w", err)
		}
		defer f.Close()
		recorder = trace.NewRecorder(src, trace.NewWriter(f, cfg.RunID, trace.DefaultBatch))
		src = recorder
		log.Info().Str("path", record).Msg("recording input stream")
	}

	p, err := newPipeline(cfg, src, svc)
	if err != nil {
		return err
	}

	if ticks > 0 {
		err = runBounded(p, ticks)
	} else {
		err = serve(p, svc)
	}
	if recorder != nil {
		if cerr := recorder.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close trace: %w", cerr)
		}
	}
	return err
}

func newPipeline(cfg pipeline.Config, src stream.Source, svc serviceConfig) (*pipeline.Pipeline, error) {
	var sampler zerolog.Sampler
	if svc.HealthLogBurst > 0 {
		sampler = &zerolog.BurstSampler{Burst: svc.HealthLogBurst, Period: svc.HealthLogPeriod}
	}
	return pipeline.New(cfg, src,
		observability.NewPipelineObserver(cfg.Name),
		pipeline.NewLogObserver(log.Logger, sampler),
	)
}

func runBounded(p *pipeline.Pipeline, ticks uint64) error {
	p.RunTicks(ticks)
	st := p.Status()
	out := struct {
		Status pipeline.Status `json:"status"`
		Slots  []string        `json:"slots"`
	}{Status: st}
	for _, v := range p.Slots() {
		out.Slots = append(out.Slots, fmt.Sprintf("0x%016x", v))
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func serve(p *pipeline.Pipeline, svc serviceConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() {
		runErr <- p.Run(ctx)
	}()

	srv := server.New(svc.ID, svc.Addr, svc.CorsOrigins, p)
	log.Info().
		Str("id", srv.ID).
		Str("addr", srv.Addr).
		Str("pipeline", p.Name()).
		Str("run_id", p.RunID().String()).
		Msg("evrctl started")
	serveErr := srv.Serve(ctx)
	stop()
	if err := <-runErr; err != nil {
		return err
	}
	return serveErr
}
