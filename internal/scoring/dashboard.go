package scoring

import (
	"context"
	"math"
	"strings"
)

// AllClasses is the class filter the dashboard treats as "no filter", next to
// the empty string and "all".
const AllClasses = "Semua kelas"

const noStudent = "N/A"

// Dashboard aggregates the roster, optionally restricted to one class.
func (s *Service) Dashboard(ctx context.Context, class string) (Dashboard, error) {
	rows, err := s.rosterRows(ctx, normalizeClass(class))
	if err != nil {
		return Dashboard{}, err
	}
	return summarize(rows), nil
}

func normalizeClass(class string) string {
	class = strings.TrimSpace(class)
	if strings.EqualFold(class, "all") || strings.EqualFold(class, AllClasses) {
		return ""
	}
	return class
}

// summarize computes per-slot average, highest and lowest over rows. A
// missing score counts as 0 everywhere, averages are rounded to the nearest
// integer and ties keep the earliest student in row order.
func summarize(rows []RosterRow) Dashboard {
	const slots = QuizSlots + 1
	var sum [slots]int
	var high, low [slots]SlotStat
	for i := range high {
		high[i] = SlotStat{Student: noStudent}
		low[i] = SlotStat{Student: noStudent}
	}

	d := Dashboard{TotalStudents: len(rows)}
	for i, r := range rows {
		if r.Progress >= MaxProgress {
			d.CompletedStudents++
		}
		vals := [slots]int{r.Quiz[0], r.Quiz[1], r.Quiz[2], r.Quiz[3], r.Eval}
		for k, v := range vals {
			sum[k] += v
			if i == 0 || v > high[k].Score {
				high[k] = SlotStat{Student: r.FullName, Score: v}
			}
			if i == 0 || v < low[k].Score {
				low[k] = SlotStat{Student: r.FullName, Score: v}
			}
		}
	}

	var avg [slots]int
	if len(rows) > 0 {
		for k := range sum {
			avg[k] = int(math.Round(float64(sum[k]) / float64(len(rows))))
		}
	}
	d.AverageScores = SlotAverages{Quiz1: avg[0], Quiz2: avg[1], Quiz3: avg[2], Quiz4: avg[3], Eval: avg[4]}
	d.HighestScores = SlotExtremes{Quiz1: high[0], Quiz2: high[1], Quiz3: high[2], Quiz4: high[3], Eval: high[4]}
	d.LowestScores = SlotExtremes{Quiz1: low[0], Quiz2: low[1], Quiz3: low[2], Quiz4: low[3], Eval: low[4]}
	return d
}
