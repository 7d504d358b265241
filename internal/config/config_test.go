package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/evrstamp/internal/crossing"
	"github.com/danmuck/evrstamp/internal/extract"
	"github.com/danmuck/evrstamp/internal/pipeline"
	"github.com/danmuck/evrstamp/internal/stream"
	"github.com/danmuck/evrstamp/internal/testutil/testlog"
	"github.com/danmuck/evrstamp/internal/triple"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTemplateLoadsAndMatchesDefault(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "pipeline.toml")
	if err := WriteTemplate(path, KindPipeline, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, KindPipeline, false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	got, err := cfg.Pipeline()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	want := pipeline.DefaultConfig()
	if got.Fields != want.Fields || got.Clock != want.Clock || got.Crossing != want.Crossing {
		t.Fatalf("template layout differs from default: got=%+v want=%+v", got, want)
	}
	if got.Policy != triple.LatchLast || !got.Trigger {
		t.Fatalf("unexpected policy/trigger: %v %v", got.Policy, got.Trigger)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
name = "lab"
run_id = "6f1c2d3e-4a5b-4c6d-8e7f-901234567890"
policy = "any"

[crossing]
sync_stages = 1

[fields.seconds]
offset = 20
length = 4
big_endian = false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	pc, err := cfg.Pipeline()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if pc.Name != "lab" || pc.Policy != triple.LatchAny || pc.Crossing.SyncStages != 1 {
		t.Fatalf("overrides not applied: %+v", pc)
	}
	if pc.RunID.String() != "6f1c2d3e-4a5b-4c6d-8e7f-901234567890" {
		t.Fatalf("run id=%s", pc.RunID)
	}
	want := extract.Config{Offset: 20, Length: 4}
	if pc.Fields[triple.Seconds].Extract != want {
		t.Fatalf("seconds field=%+v want=%+v", pc.Fields[triple.Seconds].Extract, want)
	}
	if pc.Fields[triple.PulseID].Extract.Offset != 4 || pc.Fields[triple.PulseID].WatchdogPeriod != 10_000 {
		t.Fatalf("pulse id default lost: %+v", pc.Fields[triple.PulseID])
	}

	gen, err := cfg.Generator()
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	if gen.Seconds != (stream.Placement{Offset: 20, Length: 4}) {
		t.Fatalf("generator placement not derived from fields: %+v", gen.Seconds)
	}
}

func TestValidateRejects(t *testing.T) {
	testlog.Start(t)

	cfg := Default()
	cfg.Crossing.SyncStages = 0
	if err := Validate(cfg); !errors.Is(err, crossing.ErrInvalidStages) {
		t.Fatalf("expected ErrInvalidStages without unsafe flag, got %v", err)
	}
	cfg.Crossing.SameClockDomainUnsafe = true
	if err := Validate(cfg); err != nil {
		t.Fatalf("unsafe zero-stage config rejected: %v", err)
	}

	cfg = Default()
	cfg.Fields.Seconds.Length = 9
	if err := Validate(cfg); !errors.Is(err, extract.ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}

	cfg = Default()
	cfg.Fields.Nanoseconds.Offset = 14
	if err := Validate(cfg); !errors.Is(err, pipeline.ErrFieldOverlap) {
		t.Fatalf("expected ErrFieldOverlap, got %v", err)
	}

	cfg = Default()
	cfg.Policy = "first"
	if err := Validate(cfg); !errors.Is(err, triple.ErrUnknownPolicy) {
		t.Fatalf("expected ErrUnknownPolicy, got %v", err)
	}

	cfg = Default()
	cfg.RunID = "run-1"
	if err := Validate(cfg); !errors.Is(err, ErrInvalidRunID) {
		t.Fatalf("expected ErrInvalidRunID, got %v", err)
	}

	cfg = Default()
	cfg.Clock.ConsumerPeriod = "fast"
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "clock.consumer_period") {
		t.Fatalf("expected duration error, got %v", err)
	}

	cfg = Default()
	cfg.Source.Kind = SourceTrace
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected missing trace_path error")
	}

	cfg = Default()
	cfg.Source.Generator.FrameLength = 16
	if err := Validate(cfg); !errors.Is(err, stream.ErrPlacementOverflow) {
		t.Fatalf("expected ErrPlacementOverflow, got %v", err)
	}
}

func TestLoadParseError(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, "name = \n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config parse failed") {
		t.Fatalf("expected parse error, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	testlog.Start(t)
	in := Default()
	in.Name = "encoded"
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := writeConfig(t, string(data))
	out, err := Load(path)
	if err != nil {
		t.Fatalf("load encoded: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got=%+v want=%+v", out, in)
	}
}

func TestOpenGeneratorSource(t *testing.T) {
	testlog.Start(t)
	src, err := Default().OpenSource()
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	if _, ok := src.(*stream.Generator); !ok {
		t.Fatalf("expected generator source, got %T", src)
	}
	if _, err := Template("mirage"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
