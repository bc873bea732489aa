package sop

import (
	"fmt"
	"time"

	"github.com/magiconair/properties"
)

// CommitLogBackend names a pluggable commit log implementation selectable
// at startup.
type CommitLogBackend string

const (
	FileBackend      CommitLogBackend = "file"
	RedisBackend     CommitLogBackend = "redis"
	CassandraBackend CommitLogBackend = "cassandra"
	PostgresBackend  CommitLogBackend = "postgres"
	KafkaBackend     CommitLogBackend = "kafka"
)

// WheelConfig carries the hierarchical timing wheel's constant parameters
// and the tick interval its scheduler advances on.
type WheelConfig struct {
	N0   int
	N    int
	L    int
	Tick time.Duration
}

// APIConfig toggles and configures the optional REST/WebSocket/GraphQL
// front door.
type APIConfig struct {
	Enabled    bool
	Addr       string
	OktaDomain string
}

// Configuration holds the coordinator's startup settings: per-source
// admission limits, commit log backend selection and connection
// parameters, timing wheel constants, and the optional API surface.
type Configuration struct {
	SourceLimits     map[Source]int64
	CommitLog        CommitLogBackend
	CommitLogPath    string
	CommitLogAddr    string
	CommitLogDB      string
	AdmissionPolicy  string
	Wheel            WheelConfig
	API              APIConfig
	LogLevel         string
}

// LoadConfiguration reads a magiconair/properties file and resolves it into
// a Configuration. Unlike the legacy JSON loader this replaces, every value
// is parsed into its Go type here so the rest of the coordinator only ever
// sees resolved Go values, never raw property strings. Only
// commitlog.backend is validated; numeric values such as the wheel
// parameters are not range-checked.
func LoadConfiguration(filename string) (Configuration, error) {
	p, err := properties.LoadFile(filename, properties.UTF8)
	if err != nil {
		return Configuration{}, fmt.Errorf("loading configuration %q: %w", filename, err)
	}

	c := Configuration{
		SourceLimits:  map[Source]int64{},
		CommitLog:     CommitLogBackend(p.GetString("commitlog.backend", string(FileBackend))),
		CommitLogPath: p.GetString("commitlog.path", "./coordinator.wal"),
		CommitLogAddr: p.GetString("commitlog.addr", ""),
		CommitLogDB:   p.GetString("commitlog.db", ""),
		AdmissionPolicy: p.GetString("admission.policy", ""),
		Wheel: WheelConfig{
			N0:   p.GetInt("wheel.n0", 10),
			N:    p.GetInt("wheel.n", 3),
			L:    p.GetInt("wheel.l", 2),
			Tick: p.GetParsedDuration("wheel.tick", 100*time.Millisecond),
		},
		API: APIConfig{
			Enabled:    p.GetBool("api.enabled", false),
			Addr:       p.GetString("api.addr", ":8080"),
			OktaDomain: p.GetString("api.okta.domain", ""),
		},
		LogLevel: p.GetString("log.level", "INFO"),
	}

	for _, key := range p.Keys() {
		const prefix = "admission."
		const suffix = ".limit"
		if len(key) <= len(prefix)+len(suffix) || key[:len(prefix)] != prefix {
			continue
		}
		if key[len(key)-len(suffix):] != suffix {
			continue
		}
		source := key[len(prefix) : len(key)-len(suffix)]
		c.SourceLimits[Source(source)] = p.GetInt64(key, -1)
	}

	switch c.CommitLog {
	case FileBackend, RedisBackend, CassandraBackend, PostgresBackend, KafkaBackend:
	default:
		return Configuration{}, fmt.Errorf("unknown commitlog.backend %q", c.CommitLog)
	}

	return c, nil
}
