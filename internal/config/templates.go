package config

import (
	"fmt"
	"os"
	"strings"
)

// Template kinds.
const (
	KindPipeline = "pipeline"
	KindService  = "service"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindPipeline:
		return pipelineTemplate, nil
	case KindService:
		return serviceTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const pipelineTemplate = `name = "evr0"
# fixed run id for reproducible traces and snapshots; empty picks a random one per run
run_id = ""
# last: latch on the field with the highest offset; any: latch on every field edge
policy = "last"
trigger = true
allow_overlap = false

[clock]
producer_period = "8ns"
consumer_period = "10ns"
producer_phase = "0s"
consumer_phase = "0s"

[crossing]
sync_stages = 2
# only for producer and consumer on the same clock
same_clock_domain_unsafe = false

[fields.pulse_id]
offset = 4
length = 8
big_endian = true
sequence_check = true
watchdog_period = 10000

[fields.seconds]
offset = 12
length = 4
big_endian = true

[fields.nanoseconds]
offset = 16
length = 4
big_endian = true

[source]
kind = "generator"
trace_path = ""
loop = false

[source.generator]
frame_length = 32
hold_ticks = 2
gap_ticks = 8
start_pulse_id = 1
start = "2023-11-14T22:13:20Z"
frame_period = "10ms"
drop_rate = 0.0
skip_rate = 0.0
seed = 1
`

const serviceTemplate = `id = "evrctl"
addr = ":9200"
cors_origins = ["http://localhost:3000"]
pipeline = "cmd/evrctl/pipeline.toml"
pace_interval = "1ms"
ticks_per_pace = 1000
heartbeat_interval = "5s"
health_log_burst = 10
health_log_period = "1s"
`
