// Package compare runs two sanitization configurations over the same
// input log and reports how much they agree — grounded in the shadow/
// production divergence pattern the teacher applied to its heuristics
// engine, retargeted at comparing two PRETSA runs the way
// original_source/runDiffPretsa.py compares a baseline run against a
// DP-enabled one.
package compare

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/eventlog-pretsa/internal/engine"
	"github.com/rawblock/eventlog-pretsa/internal/metrics"
)

// Report is the outcome of comparing two engine runs over one input.
type Report struct {
	Left           engine.ModeParams `json:"left"`
	Right          engine.ModeParams `json:"right"`
	AdjustedRand   float64           `json:"adjustedRandIndex"`
	VariationOfInf float64           `json:"variationOfInformation"`
	CasesDiverged  int               `json:"casesDiverged"`
	CasesTotal     int               `json:"casesTotal"`
}

// Run executes left and right independently over the same records (each
// against a freshly seeded engine so the comparison isn't polluted by one
// run's RNG draws consuming the other's), then measures how much their
// case-to-final-trace partitions agree using the generic ARI/VI metrics.
func Run(records []engine.EventRecordLike, hasHolder bool, seed int64, left, right engine.ModeParams) (*Report, error) {
	leftResult, err := engine.NewSeeded(seed).Run(records, hasHolder, left.K, left.T, left.Mode, left.DPEnabled, left.Epsilon, nil)
	if err != nil {
		return nil, err
	}
	rightResult, err := engine.NewSeeded(seed).Run(records, hasHolder, right.K, right.T, right.Mode, right.DPEnabled, right.Epsilon, nil)
	if err != nil {
		return nil, err
	}

	leftSeq := caseSequences(leftResult.Events)
	rightSeq := caseSequences(rightResult.Events)

	caseIDs := make([]string, 0, len(leftSeq))
	for c := range leftSeq {
		if _, ok := rightSeq[c]; ok {
			caseIDs = append(caseIDs, c)
		}
	}
	sort.Strings(caseIDs)

	leftLabels, rightLabels := labelPartitions(caseIDs, leftSeq, rightSeq)

	var diverged int
	for _, c := range caseIDs {
		if leftSeq[c] != rightSeq[c] {
			diverged++
		}
	}

	return &Report{
		Left:           left,
		Right:          right,
		AdjustedRand:   metrics.AdjustedRandIndex(leftLabels, rightLabels),
		VariationOfInf: metrics.VariationOfInformation(leftLabels, rightLabels),
		CasesDiverged:  diverged,
		CasesTotal:     len(caseIDs),
	}, nil
}

// caseSequences reconstructs each case's final emitted trace by grouping
// its events in Event_Nr order and joining their activity names.
func caseSequences(events []engine.EmittedEvent) map[string]string {
	byCase := make(map[string][]engine.EmittedEvent)
	for _, ev := range events {
		byCase[ev.CaseID] = append(byCase[ev.CaseID], ev)
	}
	out := make(map[string]string, len(byCase))
	for c, evs := range byCase {
		sort.Slice(evs, func(i, j int) bool { return evs[i].EventNr < evs[j].EventNr })
		seq := ""
		for _, ev := range evs {
			seq += "@" + ev.Activity
		}
		out[c] = seq
	}
	return out
}

// labelPartitions assigns each distinct sequence string an integer label,
// independently per side, so metrics.AdjustedRandIndex/VariationOfInformation
// (which compare []int label slices) can operate on them.
func labelPartitions(caseIDs []string, left, right map[string]string) ([]int, []int) {
	leftIDs := internLabels(caseIDs, left)
	rightIDs := internLabels(caseIDs, right)
	return leftIDs, rightIDs
}

func internLabels(caseIDs []string, seqOf map[string]string) []int {
	labels := make(map[string]int)
	out := make([]int, len(caseIDs))
	for i, c := range caseIDs {
		s := seqOf[c]
		id, ok := labels[s]
		if !ok {
			id = len(labels)
			labels[s] = id
		}
		out[i] = id
	}
	return out
}

// Store persists comparison reports for later audit, grounded on the
// teacher's shadow_results persistence/drift-report pair.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an existing pool; pass nil to disable persistence.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Save writes a comparison report to the compare_reports table.
func (s *Store) Save(ctx context.Context, seed int64, report *Report) error {
	if s.pool == nil {
		return nil
	}
	sql := `INSERT INTO compare_reports
		(seed, left_k, left_t, right_k, right_t, adjusted_rand, variation_of_information, cases_diverged, cases_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.pool.Exec(ctx, sql,
		seed, report.Left.K, report.Left.T, report.Right.K, report.Right.T,
		report.AdjustedRand, report.VariationOfInf, report.CasesDiverged, report.CasesTotal,
	)
	return err
}

// DriftSummary aggregates how much comparison reports have diverged over
// time, mirroring the teacher's GenerateDriftReport query.
func (s *Store) DriftSummary(ctx context.Context) (totalRuns int, avgARI float64, avgDiverged float64, err error) {
	sql := `SELECT COUNT(*), COALESCE(AVG(adjusted_rand), 1), COALESCE(AVG(cases_diverged), 0)
		FROM compare_reports`
	row := s.pool.QueryRow(ctx, sql)
	err = row.Scan(&totalRuns, &avgARI, &avgDiverged)
	return
}
