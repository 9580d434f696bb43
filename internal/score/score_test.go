package score_test

import (
	"testing"

	"raggrader/internal/config"
	"raggrader/internal/result"
	"raggrader/internal/score"
)

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func rubric() []config.Criterion {
	return []config.Criterion{
		{ID: "functional", Weight: 40, MaxScore: 100},
		{ID: "retrieval", Weight: 30, MaxScore: 100},
		{ID: "static", Weight: 30, MaxScore: 100},
	}
}

func entries(raws ...float64) []result.ScoreEntry {
	ids := []string{"functional", "retrieval", "static"}
	out := make([]result.ScoreEntry, len(raws))
	for i, r := range raws {
		out[i] = result.ScoreEntry{CriterionID: ids[i], Raw: r, Max: 100}
	}
	return out
}

func TestAggregateWorkedExample(t *testing.T) {
	total := score.Aggregate(entries(90, 80, 100), rubric())
	if absf(total-90.0) > 1e-9 {
		t.Errorf("total: got %v, want 90.0", total)
	}
	thresholds := config.Default().GradeThresholds
	if grade := score.Letter(total, thresholds); grade != "A" {
		t.Errorf("grade: got %q, want A", grade)
	}
}

func TestAggregateAllZero(t *testing.T) {
	total := score.Aggregate(entries(0, 0, 0), rubric())
	if total != 0 {
		t.Errorf("total: got %v, want 0", total)
	}
	if grade := score.Letter(total, config.Default().GradeThresholds); grade != "F" {
		t.Errorf("grade: got %q, want F", grade)
	}
}

func TestAggregateRange(t *testing.T) {
	cases := []struct {
		name     string
		entries  []result.ScoreEntry
		criteria []config.Criterion
	}{
		{"normal", entries(50, 75, 25), rubric()},
		{"raw above max is clamped", entries(500, 100, 100), rubric()},
		{"negative raw is clamped", entries(-50, 0, 0), rubric()},
		{"missing entries contribute zero", entries(100), rubric()},
		{"no entries", nil, rubric()},
		{
			"uneven weights and maxes",
			[]result.ScoreEntry{
				{CriterionID: "a", Raw: 3, Max: 5},
				{CriterionID: "b", Raw: 7, Max: 10},
			},
			[]config.Criterion{
				{ID: "a", Weight: 1, MaxScore: 5},
				{ID: "b", Weight: 9, MaxScore: 10},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			total := score.Aggregate(tc.entries, tc.criteria)
			if total < 0 || total > 100 {
				t.Errorf("total %v out of [0,100]", total)
			}
		})
	}
}

func TestAggregateClampsPerEntry(t *testing.T) {
	total := score.Aggregate(entries(500, 0, 0), rubric())
	// 500 clamps to 100, so only the functional 40% can be earned.
	if absf(total-40.0) > 1e-9 {
		t.Errorf("total: got %v, want 40.0", total)
	}
}

func TestAggregateRounding(t *testing.T) {
	criteria := []config.Criterion{
		{ID: "only", Weight: 3, MaxScore: 3},
	}
	in := []result.ScoreEntry{{CriterionID: "only", Raw: 2, Max: 3}}
	total := score.Aggregate(in, criteria)
	if absf(total-66.7) > 1e-9 {
		t.Errorf("total: got %v, want 66.7", total)
	}
}

func TestAggregateDeterministic(t *testing.T) {
	e := entries(88.5, 42.25, 100)
	r := rubric()
	a := score.Aggregate(e, r)
	b := score.Aggregate(e, r)
	if a != b {
		t.Errorf("same inputs produced %v and %v", a, b)
	}
}

func TestAggregateNormalizesWeights(t *testing.T) {
	// Doubling every weight must not change the total.
	doubled := rubric()
	for i := range doubled {
		doubled[i].Weight *= 2
	}
	e := entries(90, 80, 100)
	if a, b := score.Aggregate(e, rubric()), score.Aggregate(e, doubled); a != b {
		t.Errorf("weights not normalized: %v vs %v", a, b)
	}
}

func TestLetterBoundaries(t *testing.T) {
	thresholds := config.Default().GradeThresholds
	cases := []struct {
		total float64
		want  string
	}{
		{100, "A"},
		{90, "A"},
		{89.9, "B"},
		{80, "B"},
		{70, "C"},
		{60, "D"},
		{59.9, "F"},
		{0, "F"},
	}
	for _, tc := range cases {
		if got := score.Letter(tc.total, thresholds); got != tc.want {
			t.Errorf("Letter(%v): got %q, want %q", tc.total, got, tc.want)
		}
	}
}

func TestLetterFallsBackToLast(t *testing.T) {
	thresholds := []config.Threshold{
		{Score: 90, Letter: "pass"},
		{Score: 50, Letter: "retry"},
	}
	if got := score.Letter(10, thresholds); got != "retry" {
		t.Errorf("got %q", got)
	}
	if got := score.Letter(10, nil); got != "F" {
		t.Errorf("empty thresholds: got %q", got)
	}
}
