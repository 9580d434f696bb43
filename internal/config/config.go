package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// Kind selects how a rubric criterion is evaluated.
type Kind string

const (
	KindFunctional Kind = "functional-test"
	KindRetrieval  Kind = "retrieval-metric"
	KindStatic     Kind = "static-check"
)

// Retrieval metric names accepted in criterion config.
const (
	MetricPrecisionAtK   = "precision@k"
	MetricRecallAtK      = "recall@k"
	MetricMRR            = "mrr"
	MetricKeywordOverlap = "keyword-overlap"
)

// Static check kinds.
const (
	CheckFileExists     = "file-exists"
	CheckSourceContains = "source-contains"
	CheckSourceRegex    = "source-regex"
)

type Config struct {
	Sandbox             Sandbox     `yaml:"sandbox"`
	Acquisition         Acquisition `yaml:"acquisition"`
	MaxConcurrency      int         `yaml:"max_concurrency"`
	BatchTimeoutSeconds int         `yaml:"batch_timeout_seconds"`
	Results             Results     `yaml:"results"`
	Rubric              []Criterion `yaml:"rubric"`
	GradeThresholds     []Threshold `yaml:"grade_thresholds"`
}

// Sandbox holds per-execution limits shared by all criteria unless a
// criterion overrides them.
type Sandbox struct {
	Image          string  `yaml:"image"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MemoryLimitMB  int64   `yaml:"memory_limit_mb"`
	CPULimit       float64 `yaml:"cpu_limit"`
	PidsLimit      int64   `yaml:"pids_limit"`
	OutputLimitKB  int     `yaml:"output_limit_kb"`
	Network        bool    `yaml:"network"`
}

func (s Sandbox) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (s Sandbox) MemoryBytes() int64 { return s.MemoryLimitMB * 1024 * 1024 }

func (s Sandbox) OutputLimitBytes() int { return s.OutputLimitKB * 1024 }

type Acquisition struct {
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	ClonesPerMinute int    `yaml:"clones_per_minute"`
	WorkspaceRoot   string `yaml:"workspace_root"`
}

func (a Acquisition) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

type Results struct {
	Dir string `yaml:"dir"`
}

// Criterion is one scored dimension of the rubric. Weight is relative:
// weights are normalized when scores are aggregated, so they need not sum
// to 100. A zero TimeoutSeconds falls back to the sandbox default.
type Criterion struct {
	ID             string            `yaml:"id"`
	Name           string            `yaml:"name"`
	Kind           Kind              `yaml:"kind"`
	Weight         float64           `yaml:"weight"`
	MaxScore       float64           `yaml:"max_score"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Command        string            `yaml:"command"`
	Image          string            `yaml:"image"`
	HarnessDir     string            `yaml:"harness_dir"`
	Env            map[string]string `yaml:"env"`
	Retrieval      *Retrieval        `yaml:"retrieval"`
	Checks         []StaticCheck     `yaml:"checks"`
}

func (c Criterion) Timeout(fallback time.Duration) time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	return fallback
}

// Argv splits the configured command into an exec-ready argument vector,
// expanding {main_file} and {language} placeholders from the acquired
// workspace before shell-style tokenization.
func (c Criterion) Argv(mainFile, language string) ([]string, error) {
	cmd := expandPlaceholders(c.Command, mainFile, language)
	argv, err := shlex.Split(cmd)
	if err != nil {
		return nil, fmt.Errorf("criterion %q: splitting command: %w", c.ID, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("criterion %q: empty command", c.ID)
	}
	return argv, nil
}

func expandPlaceholders(cmd, mainFile, language string) string {
	r := strings.NewReplacer("{main_file}", mainFile, "{language}", language)
	return r.Replace(cmd)
}

// Retrieval configures the fixture set and metric for a retrieval-metric
// criterion. Documents are staged as files and queries as queries.json in a
// read-only fixture mount visible to the probe command.
type Retrieval struct {
	Metric    string     `yaml:"metric"`
	K         int        `yaml:"k"`
	Documents []Document `yaml:"documents"`
	Queries   []Query    `yaml:"queries"`
}

type Document struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Content string `yaml:"content"`
}

type Query struct {
	ID               string   `yaml:"id"`
	Text             string   `yaml:"text"`
	RelevantDocs     []string `yaml:"relevant_docs"`
	ExpectedKeywords []string `yaml:"expected_keywords"`
}

// StaticCheck is one pass/fail inspection of the workspace source tree.
type StaticCheck struct {
	Name       string   `yaml:"name"`
	Kind       string   `yaml:"kind"`
	Paths      []string `yaml:"paths"`
	Patterns   []string `yaml:"patterns"`
	Extensions []string `yaml:"extensions"`
}

// Threshold maps a minimum total score to a letter grade. Thresholds are
// ordered by descending score; the first one the total meets wins.
type Threshold struct {
	Score  float64 `yaml:"score"`
	Letter string  `yaml:"letter"`
}

// Load reads a YAML config file over the built-in defaults and validates
// the result. Fields absent from the file keep their default values; a
// rubric or threshold list in the file replaces the default list entirely.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config and fills per-entry defaults. Rubric and
// threshold mistakes are caught here, before any grading starts.
func Validate(cfg *Config) error {
	if cfg.Sandbox.Image == "" {
		cfg.Sandbox.Image = defaultSandboxImage
	}
	if cfg.Sandbox.TimeoutSeconds <= 0 {
		cfg.Sandbox.TimeoutSeconds = defaultSandboxTimeoutS
	}
	if cfg.Sandbox.MemoryLimitMB <= 0 {
		cfg.Sandbox.MemoryLimitMB = defaultMemoryLimitMB
	}
	if cfg.Sandbox.CPULimit <= 0 {
		cfg.Sandbox.CPULimit = defaultCPULimit
	}
	if cfg.Sandbox.PidsLimit <= 0 {
		cfg.Sandbox.PidsLimit = defaultPidsLimit
	}
	if cfg.Sandbox.OutputLimitKB <= 0 {
		cfg.Sandbox.OutputLimitKB = defaultOutputLimitKB
	}
	if cfg.Acquisition.TimeoutSeconds <= 0 {
		cfg.Acquisition.TimeoutSeconds = defaultAcquireTimeoutS
	}
	if cfg.Acquisition.ClonesPerMinute <= 0 {
		cfg.Acquisition.ClonesPerMinute = defaultClonesPerMinute
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	if cfg.BatchTimeoutSeconds < 0 {
		return fmt.Errorf("batch_timeout_seconds must not be negative")
	}

	if len(cfg.Rubric) == 0 {
		return fmt.Errorf("no rubric criteria defined")
	}
	seen := make(map[string]bool, len(cfg.Rubric))
	totalWeight := 0.0
	for i := range cfg.Rubric {
		c := &cfg.Rubric[i]
		if c.ID == "" {
			return fmt.Errorf("rubric[%d]: id is required", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("rubric[%d]: duplicate id %q", i, c.ID)
		}
		seen[c.ID] = true
		if c.Name == "" {
			c.Name = c.ID
		}
		if c.Weight < 0 {
			return fmt.Errorf("rubric %q: weight must not be negative", c.ID)
		}
		totalWeight += c.Weight
		if c.MaxScore == 0 {
			c.MaxScore = defaultMaxScore
		}
		if c.MaxScore < 0 {
			return fmt.Errorf("rubric %q: max_score must be positive", c.ID)
		}
		if err := validateCriterion(c); err != nil {
			return err
		}
	}
	if totalWeight <= 0 {
		return fmt.Errorf("rubric has zero total weight")
	}

	if len(cfg.GradeThresholds) == 0 {
		cfg.GradeThresholds = defaultThresholds()
	}
	for i, th := range cfg.GradeThresholds {
		if th.Letter == "" {
			return fmt.Errorf("grade_thresholds[%d]: letter is required", i)
		}
		if th.Score < 0 || th.Score > 100 {
			return fmt.Errorf("grade_thresholds[%d]: score %.1f out of range", i, th.Score)
		}
		if i > 0 && th.Score >= cfg.GradeThresholds[i-1].Score {
			return fmt.Errorf("grade_thresholds[%d]: scores must strictly decrease", i)
		}
	}
	return nil
}

func validateCriterion(c *Criterion) error {
	switch c.Kind {
	case KindFunctional:
		if c.Command == "" {
			return fmt.Errorf("rubric %q: command is required for functional-test", c.ID)
		}
		if _, err := c.Argv("main.py", "python"); err != nil {
			return err
		}
	case KindRetrieval:
		if c.Command == "" {
			return fmt.Errorf("rubric %q: command is required for retrieval-metric", c.ID)
		}
		if _, err := c.Argv("main.py", "python"); err != nil {
			return err
		}
		r := c.Retrieval
		if r == nil || len(r.Queries) == 0 {
			return fmt.Errorf("rubric %q: retrieval queries are required", c.ID)
		}
		if r.K <= 0 {
			r.K = defaultRetrievalK
		}
		switch r.Metric {
		case "":
			r.Metric = MetricPrecisionAtK
		case MetricPrecisionAtK, MetricRecallAtK, MetricMRR, MetricKeywordOverlap:
		default:
			return fmt.Errorf("rubric %q: unknown retrieval metric %q", c.ID, r.Metric)
		}
		docs := make(map[string]bool, len(r.Documents))
		for _, d := range r.Documents {
			docs[d.ID] = true
		}
		for _, q := range r.Queries {
			if q.ID == "" {
				return fmt.Errorf("rubric %q: every retrieval query needs an id", c.ID)
			}
			if r.Metric == MetricKeywordOverlap {
				if len(q.ExpectedKeywords) == 0 {
					return fmt.Errorf("rubric %q: query %q needs expected_keywords", c.ID, q.ID)
				}
				continue
			}
			if len(q.RelevantDocs) == 0 {
				return fmt.Errorf("rubric %q: query %q needs relevant_docs", c.ID, q.ID)
			}
			for _, id := range q.RelevantDocs {
				if !docs[id] {
					return fmt.Errorf("rubric %q: query %q references unknown document %q", c.ID, q.ID, id)
				}
			}
		}
	case KindStatic:
		if len(c.Checks) == 0 {
			return fmt.Errorf("rubric %q: checks are required for static-check", c.ID)
		}
		for i := range c.Checks {
			ch := &c.Checks[i]
			if ch.Name == "" {
				return fmt.Errorf("rubric %q: checks[%d]: name is required", c.ID, i)
			}
			switch ch.Kind {
			case CheckFileExists:
				if len(ch.Paths) == 0 {
					return fmt.Errorf("rubric %q: check %q: paths are required", c.ID, ch.Name)
				}
			case CheckSourceContains:
				if len(ch.Patterns) == 0 {
					return fmt.Errorf("rubric %q: check %q: patterns are required", c.ID, ch.Name)
				}
			case CheckSourceRegex:
				if len(ch.Patterns) == 0 {
					return fmt.Errorf("rubric %q: check %q: patterns are required", c.ID, ch.Name)
				}
				for _, p := range ch.Patterns {
					if _, err := regexp.Compile(p); err != nil {
						return fmt.Errorf("rubric %q: check %q: bad pattern: %w", c.ID, ch.Name, err)
					}
				}
			default:
				return fmt.Errorf("rubric %q: check %q: unknown kind %q", c.ID, ch.Name, ch.Kind)
			}
		}
	default:
		return fmt.Errorf("rubric %q: unknown kind %q", c.ID, c.Kind)
	}
	return nil
}
