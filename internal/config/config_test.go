package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// viper treats empty variables as unset
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("ARCHIVE_BACKEND", "")
	t.Setenv("EVENTS_BACKEND", "")
	t.Setenv("START_CONFLICT_POLICY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLMProvider != "mock" || cfg.ArchiveBackend != "memory" || cfg.EventsBackend != "none" {
		t.Fatalf("unexpected backends %+v", cfg)
	}
	if cfg.NudgeInterval != 3*time.Second || cfg.NudgeThrottle != 2500*time.Millisecond || cfg.NudgeCooldown != time.Minute {
		t.Fatalf("unexpected nudge timings %v %v %v", cfg.NudgeInterval, cfg.NudgeThrottle, cfg.NudgeCooldown)
	}
	if cfg.LLMTimeout != 12*time.Second || cfg.StartConflictPolicy != "reject" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("START_CONFLICT_POLICY", "Replace")
	t.Setenv("NUDGE_INTERVAL", "500ms")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StartConflictPolicy != "replace" || cfg.NudgeInterval != 500*time.Millisecond {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if got := cfg.KafkaBrokerList(); len(got) != 2 || got[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
}

func TestValidate(t *testing.T) {
	base := Config{LLMProvider: "mock", ArchiveBackend: "memory", EventsBackend: "none", StartConflictPolicy: "reject"}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid config: %v", err)
	}
	bad := []Config{
		{LLMProvider: "gpt", ArchiveBackend: "memory", EventsBackend: "none", StartConflictPolicy: "reject"},
		{LLMProvider: "openai", ArchiveBackend: "memory", EventsBackend: "none", StartConflictPolicy: "reject"},
		{LLMProvider: "mock", ArchiveBackend: "postgres", EventsBackend: "none", StartConflictPolicy: "reject"},
		{LLMProvider: "mock", ArchiveBackend: "memory", EventsBackend: "sqs", StartConflictPolicy: "reject"},
		{LLMProvider: "mock", ArchiveBackend: "memory", EventsBackend: "none", StartConflictPolicy: "queue"},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Fatalf("expected error for %+v", c)
		}
	}
}
