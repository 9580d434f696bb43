package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"raggrader/internal/acquire"
	"raggrader/internal/config"
	"raggrader/internal/sandbox"
)

// rankingsFileName is the structured results file a retrieval probe may
// write under /out. It takes priority over rankings printed to stdout.
const rankingsFileName = "rankings.json"

// docsDirName is the subdirectory of /fixtures holding the staged corpus.
const docsDirName = "docs"

type rankingsFile struct {
	Results []probeResult `json:"results"`
}

// probeResult is one query's answer from the submission: ranked document
// ids for the ranking metrics, or a generated answer for keyword-overlap.
type probeResult struct {
	QueryID    string   `json:"query_id"`
	RankedDocs []string `json:"ranked_docs"`
	Answer     string   `json:"answer"`
}

// probeQuery is what the submission gets to see: the query id and text,
// never the answer key.
type probeQuery struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (ev *Evaluator) evalRetrieval(ctx context.Context, ws *acquire.Workspace, c config.Criterion) (evalOutput, error) {
	argv, err := c.Argv(ws.MainFile, ws.Language)
	if err != nil {
		return evalOutput{}, fmt.Errorf("building command: %w", err)
	}
	outDir, err := os.MkdirTemp("", "raggrader-out-*")
	if err != nil {
		return evalOutput{}, &sandbox.InfraError{Op: "allocating results dir", Err: err}
	}
	defer os.RemoveAll(outDir)

	fixDir, err := stageFixtures(c.Retrieval)
	if err != nil {
		return evalOutput{}, &sandbox.InfraError{Op: "staging retrieval fixtures", Err: err}
	}
	defer os.RemoveAll(fixDir)

	mounts := []sandbox.Mount{{Source: fixDir, Target: fixturesPath, ReadOnly: true}}
	outcome, err := ev.runner.Run(ctx, ev.runSpec(ws, c, argv, outDir, mounts))
	if err != nil {
		return evalOutput{}, err
	}
	if outcome.TimedOut {
		return evalOutput{
			rationale: fmt.Sprintf("retrieval probe timed out after %s", c.Timeout(ev.box.Timeout())),
			truncated: outcome.Truncated,
		}, nil
	}

	results, ok := readRankings(outDir, outcome.Stdout)
	if !ok {
		rationale := "probe produced no parseable rankings"
		if outcome.ExitCode != 0 {
			rationale = fmt.Sprintf("probe exited with code %d without rankings", outcome.ExitCode)
		}
		if tail := logTail(outcome); tail != "" {
			rationale += ": " + tail
		}
		return evalOutput{rationale: rationale, truncated: outcome.Truncated}, nil
	}

	mean, answered := scoreQueries(c.Retrieval, results)
	return evalOutput{
		raw: mean * c.MaxScore,
		rationale: fmt.Sprintf("%s %.3f over %d queries (%d answered)",
			c.Retrieval.Metric, mean, len(c.Retrieval.Queries), answered),
		truncated: outcome.Truncated,
	}, nil
}

// stageFixtures lays out the probe's input in a fresh directory: the corpus
// under docs/ and the queries (id and text only) in queries.json.
func stageFixtures(r *config.Retrieval) (string, error) {
	dir, err := os.MkdirTemp("", "raggrader-fixtures-*")
	if err != nil {
		return "", err
	}
	docsDir := filepath.Join(dir, docsDirName)
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	for _, d := range r.Documents {
		name := d.Name
		if name == "" {
			name = d.ID + ".txt"
		}
		if err := os.WriteFile(filepath.Join(docsDir, filepath.Base(name)), []byte(d.Content), 0o644); err != nil {
			os.RemoveAll(dir)
			return "", err
		}
	}
	queries := make([]probeQuery, len(r.Queries))
	for i, q := range r.Queries {
		queries[i] = probeQuery{ID: q.ID, Text: q.Text}
	}
	data, err := json.MarshalIndent(queries, "", "  ")
	if err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "queries.json"), data, 0o644); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}

// readRankings looks for structured probe output: the /out results file
// first, then stdout. Stdout may carry log noise around the JSON document,
// so a whole-output parse is followed by a line-by-line scan.
func readRankings(outDir, stdout string) (map[string]probeResult, bool) {
	if data, err := os.ReadFile(filepath.Join(outDir, rankingsFileName)); err == nil {
		if results, ok := parseRankings(data); ok {
			return results, true
		}
	}
	if results, ok := parseRankings([]byte(strings.TrimSpace(stdout))); ok {
		return results, true
	}
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		if results, ok := parseRankings([]byte(line)); ok {
			return results, true
		}
	}
	return nil, false
}

func parseRankings(data []byte) (map[string]probeResult, bool) {
	var rf rankingsFile
	if err := json.Unmarshal(data, &rf); err != nil || len(rf.Results) == 0 {
		return nil, false
	}
	results := make(map[string]probeResult, len(rf.Results))
	for _, r := range rf.Results {
		if r.QueryID == "" {
			continue
		}
		results[r.QueryID] = r
	}
	return results, len(results) > 0
}

// scoreQueries computes the mean metric over every configured query. A
// query the probe did not answer scores 0 but still counts toward the mean.
func scoreQueries(r *config.Retrieval, results map[string]probeResult) (mean float64, answered int) {
	if len(r.Queries) == 0 {
		return 0, 0
	}
	var sum float64
	for _, q := range r.Queries {
		res, ok := results[q.ID]
		if !ok {
			continue
		}
		answered++
		switch r.Metric {
		case config.MetricPrecisionAtK:
			sum += precisionAtK(res.RankedDocs, q.RelevantDocs, r.K)
		case config.MetricRecallAtK:
			sum += recallAtK(res.RankedDocs, q.RelevantDocs, r.K)
		case config.MetricMRR:
			sum += reciprocalRank(res.RankedDocs, q.RelevantDocs)
		case config.MetricKeywordOverlap:
			sum += keywordOverlap(res.Answer, q.ExpectedKeywords)
		}
	}
	return sum / float64(len(r.Queries)), answered
}

// precisionAtK is the fraction of returned documents, capped at k, that are
// relevant. Dividing by the returned count rather than a flat k keeps a
// perfect score reachable when fewer than k documents are relevant.
func precisionAtK(ranked, relevant []string, k int) float64 {
	top := topK(ranked, k)
	if len(top) == 0 {
		return 0
	}
	return float64(countHits(top, relevant)) / float64(len(top))
}

// recallAtK is the fraction of relevant documents that appear in the top k.
func recallAtK(ranked, relevant []string, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	return float64(countHits(topK(ranked, k), relevant)) / float64(len(relevant))
}

// reciprocalRank is 1/rank of the first relevant document in the full
// ranking, 0 when none appears.
func reciprocalRank(ranked, relevant []string) float64 {
	rel := toSet(relevant)
	for i, id := range ranked {
		if rel[id] {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// keywordOverlap is the fraction of expected keywords present in the
// answer, compared case-insensitively.
func keywordOverlap(answer string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(answer)
	found := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			found++
		}
	}
	return float64(found) / float64(len(keywords))
}

func topK(ranked []string, k int) []string {
	if k > 0 && len(ranked) > k {
		return ranked[:k]
	}
	return ranked
}

func countHits(ranked, relevant []string) int {
	rel := toSet(relevant)
	hits := 0
	for _, id := range ranked {
		if rel[id] {
			hits++
		}
	}
	return hits
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
