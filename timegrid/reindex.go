// Package timegrid aligns possibly-gappy score sequences onto the uniform
// time grid implied by a nominal frame rate. Dropped frames show up as gaps
// between consecutive timestamps; reindexing pads them with NaN rows so that
// downstream consumers can index scores by wall-clock position.
package timegrid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// gapTolerance is the slack allowed over the nominal inter-frame interval
// before a gap is considered a dropped frame.
const gapTolerance = 1.5

// Result is a padded score matrix plus a marker distinguishing real rows
// from inserted ones. Marker[i] is the original row index for real rows and
// NaN for inserted rows; removing NaN-marked rows in order reproduces the
// input exactly.
type Result struct {
	Scores     *mat.Dense
	Marker     []float64
	Timestamps []float64 // NaN at inserted rows
}

// Reindex walks consecutive timestamp gaps and inserts all-NaN rows wherever
// a gap exceeds the expected interval by more than the tolerance, so the
// output length matches the span implied by the nominal rate. Real rows are
// never reordered or dropped.
func Reindex(scores *mat.Dense, timestamps []float64, fps float64) (*Result, error) {
	n, d := scores.Dims()
	if len(timestamps) != n {
		return nil, fmt.Errorf("%d timestamps for %d score rows", len(timestamps), n)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %v", fps)
	}

	interval := 1.0 / fps

	// Count inserted rows first so the output is allocated once.
	inserted := 0
	for i := 1; i < n; i++ {
		inserted += missingBefore(timestamps[i]-timestamps[i-1], interval)
	}

	total := n + inserted
	out := mat.NewDense(total, d, nil)
	marker := make([]float64, total)
	stamps := make([]float64, total)

	row := 0
	for i := 0; i < n; i++ {
		if i > 0 {
			for k := 0; k < missingBefore(timestamps[i]-timestamps[i-1], interval); k++ {
				fill := out.RawRowView(row)
				for j := range fill {
					fill[j] = math.NaN()
				}
				marker[row] = math.NaN()
				stamps[row] = math.NaN()
				row++
			}
		}
		out.SetRow(row, scores.RawRowView(i))
		marker[row] = float64(i)
		stamps[row] = timestamps[i]
		row++
	}

	return &Result{Scores: out, Marker: marker, Timestamps: stamps}, nil
}

// missingBefore returns how many all-NaN rows to insert for a gap of the
// given length. A gap at or below tolerance*interval inserts nothing.
func missingBefore(gap, interval float64) int {
	if gap <= gapTolerance*interval {
		return 0
	}
	missing := int(math.Round(gap/interval)) - 1
	if missing < 1 {
		missing = 1
	}
	return missing
}

// RemoveInserted strips NaN-marked rows, reproducing the original scores and
// timestamps in their original order.
func RemoveInserted(r *Result) (*mat.Dense, []float64) {
	_, d := r.Scores.Dims()

	real := 0
	for _, m := range r.Marker {
		if !math.IsNaN(m) {
			real++
		}
	}

	scores := mat.NewDense(real, d, nil)
	stamps := make([]float64, 0, real)
	row := 0
	for i, m := range r.Marker {
		if math.IsNaN(m) {
			continue
		}
		scores.SetRow(row, r.Scores.RawRowView(i))
		stamps = append(stamps, r.Timestamps[i])
		row++
	}

	return scores, stamps
}
