package main

import (
	"flag"
	"log"

	"github.com/danmuck/evrstamp/internal/config"
)

func defaultPath(kind string) string {
	switch kind {
	case config.KindPipeline:
		return "cmd/evrctl/pipeline.toml"
	case config.KindService:
		return "cmd/evrctl/config.toml"
	default:
		log.Fatalf("unknown kind: %s", kind)
		return ""
	}
}

func main() {
	kind := flag.String("kind", config.KindPipeline, "config kind: pipeline|service")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing pipeline config file")
	input := flag.String("input", "", "config path for validation (defaults to cmd/evrctl/pipeline.toml)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(config.KindPipeline)
		}
		cfg, err := config.Load(path)
		if err != nil {
			log.Fatal(err)
		}
		pc, err := cfg.Pipeline()
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated pipeline config %q at %s (latch=%s, stages=%d)", cfg.Name, path, pc.Policy, pc.Crossing.SyncStages)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
