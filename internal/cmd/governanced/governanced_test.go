package governanced

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("governanced", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.MetricsPort != 9181 {
		t.Fatalf("expected default metrics port 9181, got %d", cfg.MetricsPort)
	}
	if cfg.DBPath != "data/governance.db" {
		t.Fatalf("unexpected default db path %q", cfg.DBPath)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("ALPHASIGNAL_GOVERNANCE_METRICS_PORT", "9280")

	fs := flag.NewFlagSet("governanced", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-metrics-port", "9281"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.MetricsPort != 9281 {
		t.Fatalf("expected flag override 9281, got %d", cfg.MetricsPort)
	}
}
