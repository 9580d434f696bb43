package config_test

import (
	"strings"
	"testing"
	"time"

	"raggrader/internal/config"
)

func TestLoadMinimal(t *testing.T) {
	cfg, err := config.Load("../../testdata/minimal.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Sandbox.Image != "python:3.11-slim" {
		t.Errorf("expected overridden image, got %q", cfg.Sandbox.Image)
	}
	if cfg.Sandbox.TimeoutSeconds != 30 {
		t.Errorf("expected timeout 30, got %d", cfg.Sandbox.TimeoutSeconds)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Sandbox.MemoryLimitMB != 1024 {
		t.Errorf("expected default memory limit, got %d", cfg.Sandbox.MemoryLimitMB)
	}
	if cfg.MaxConcurrency != 4 {
		t.Errorf("expected default concurrency 4, got %d", cfg.MaxConcurrency)
	}
	if len(cfg.Rubric) != 1 {
		t.Fatalf("expected rubric replaced by file, got %d criteria", len(cfg.Rubric))
	}
	if cfg.Rubric[0].MaxScore != 100 {
		t.Errorf("expected default max_score 100, got %f", cfg.Rubric[0].MaxScore)
	}
	if len(cfg.GradeThresholds) != 5 {
		t.Errorf("expected default thresholds, got %d", len(cfg.GradeThresholds))
	}
}

func TestLoadFull(t *testing.T) {
	cfg, err := config.Load("../../testdata/full.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Rubric) != 3 {
		t.Fatalf("expected 3 criteria, got %d", len(cfg.Rubric))
	}
	if cfg.Rubric[0].Kind != config.KindFunctional {
		t.Errorf("expected functional-test first, got %q", cfg.Rubric[0].Kind)
	}
	if cfg.Rubric[1].Retrieval == nil || cfg.Rubric[1].Retrieval.K != 3 {
		t.Error("expected retrieval k=3")
	}
	if cfg.Rubric[2].Kind != config.KindStatic || len(cfg.Rubric[2].Checks) != 3 {
		t.Error("expected static criterion with 3 checks")
	}
	if cfg.BatchTimeoutSeconds != 1800 {
		t.Errorf("expected batch timeout 1800, got %d", cfg.BatchTimeoutSeconds)
	}
	if cfg.Results.Dir != "grading-results" {
		t.Errorf("expected results dir override, got %q", cfg.Results.Dir)
	}
	if got := len(cfg.GradeThresholds); got != 4 {
		t.Errorf("expected 4 thresholds from file, got %d", got)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := config.Load("nonexistent.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalid(t *testing.T) {
	_, err := config.Load("../../testdata/invalid.yaml")
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadZeroWeight(t *testing.T) {
	_, err := config.Load("../../testdata/zeroweight.yaml")
	if err == nil {
		t.Fatal("expected error for zero total weight")
	}
	if !strings.Contains(err.Error(), "zero total weight") {
		t.Errorf("expected zero-weight error, got: %v", err)
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := config.Default()
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if len(cfg.Rubric) != 3 {
		t.Errorf("expected 3 default criteria, got %d", len(cfg.Rubric))
	}
}

func TestValidateRejectsBadRubric(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "duplicate id",
			mutate: func(c *config.Config) { c.Rubric[1].ID = c.Rubric[0].ID },
			want:   "duplicate id",
		},
		{
			name:   "negative weight",
			mutate: func(c *config.Config) { c.Rubric[0].Weight = -1 },
			want:   "weight",
		},
		{
			name:   "unknown kind",
			mutate: func(c *config.Config) { c.Rubric[0].Kind = "vibes" },
			want:   "unknown kind",
		},
		{
			name:   "missing command",
			mutate: func(c *config.Config) { c.Rubric[0].Command = "" },
			want:   "command is required",
		},
		{
			name:   "unbalanced quotes",
			mutate: func(c *config.Config) { c.Rubric[0].Command = `python -c "print(` },
			want:   "splitting command",
		},
		{
			name: "unknown metric",
			mutate: func(c *config.Config) {
				c.Rubric[1].Retrieval.Metric = "vibes@k"
			},
			want: "unknown retrieval metric",
		},
		{
			name: "query references unknown doc",
			mutate: func(c *config.Config) {
				c.Rubric[1].Retrieval.Metric = config.MetricPrecisionAtK
				c.Rubric[1].Retrieval.Queries[0].RelevantDocs = []string{"nope"}
			},
			want: "unknown document",
		},
		{
			name: "bad regex",
			mutate: func(c *config.Config) {
				c.Rubric[2].Checks[0] = config.StaticCheck{
					Name: "broken", Kind: config.CheckSourceRegex, Patterns: []string{"("},
				}
			},
			want: "bad pattern",
		},
		{
			name: "thresholds not decreasing",
			mutate: func(c *config.Config) {
				c.GradeThresholds = []config.Threshold{
					{Score: 80, Letter: "B"},
					{Score: 90, Letter: "A"},
				}
			},
			want: "strictly decrease",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got: %v", tc.want, err)
			}
		})
	}
}

func TestCriterionArgv(t *testing.T) {
	c := config.Criterion{
		ID:      "retrieval",
		Command: `python {main_file} --probe /fixtures/queries.json --lang "{language}"`,
	}
	argv, err := c.Argv("app.py", "python")
	if err != nil {
		t.Fatalf("Argv failed: %v", err)
	}
	want := []string{"python", "app.py", "--probe", "/fixtures/queries.json", "--lang", "python"}
	if len(argv) != len(want) {
		t.Fatalf("argv length: got %d, want %d (%v)", len(argv), len(want), argv)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("argv[%d]: got %q, want %q", i, argv[i], want[i])
		}
	}
}

func TestCriterionTimeoutFallback(t *testing.T) {
	c := config.Criterion{}
	if got := c.Timeout(45 * time.Second); got != 45*time.Second {
		t.Errorf("expected fallback timeout, got %v", got)
	}
	c.TimeoutSeconds = 10
	if got := c.Timeout(45 * time.Second); got != 10*time.Second {
		t.Errorf("expected 10s, got %v", got)
	}
}
