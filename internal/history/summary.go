package history

import (
	"math"
	"time"

	"github.com/compilin/latgraph/internal/probe"
)

// Summary aggregates a snapshot for display: latency extremes, average,
// standard deviation and loss, mirroring the per-hop statistics an mtr-like
// view shows for a single target.
type Summary struct {
	Samples int
	Lost    int
	Stale   int

	Min  time.Duration
	Max  time.Duration
	Avg  time.Duration
	Last time.Duration

	StdDev  float64 // microseconds
	LossPct float64
}

// Summarize computes aggregate statistics over a snapshot. Stale outcomes
// are counted but do not contribute latency values.
func Summarize(outcomes []probe.Outcome) Summary {
	var sum Summary
	var usSum, usSumSquares int64

	for _, o := range outcomes {
		switch o.Kind {
		case probe.KindSample:
			sum.Samples++
			sum.Last = o.Latency
			if sum.Min == 0 || o.Latency < sum.Min {
				sum.Min = o.Latency
			}
			if o.Latency > sum.Max {
				sum.Max = o.Latency
			}
			us := o.Latency.Microseconds()
			usSum += us
			usSumSquares += us * us
		case probe.KindLost:
			sum.Lost++
		case probe.KindStale:
			sum.Stale++
		}
	}

	if sum.Samples > 0 {
		sum.Avg = time.Duration(usSum/int64(sum.Samples)) * time.Microsecond
		sum.StdDev = calculateStdev(usSum, usSumSquares, uint(sum.Samples))
	}
	sum.LossPct = calculateLossPct(uint(sum.Lost), uint(sum.Samples))

	return sum
}

func calculateStdev(sum int64, sumSquares int64, n uint) float64 {
	mean := float64(sum) / float64(n)
	variance := float64(sumSquares)/float64(n) - mean*mean
	if variance < 0 {
		variance = 0 // Prevent negative due to floating point errors
	}
	return math.Sqrt(variance)
}

func calculateLossPct(lost uint, received uint) float64 {
	total := lost + received
	if total == 0 {
		return 0
	}
	return float64(lost) / float64(total) * 100
}
