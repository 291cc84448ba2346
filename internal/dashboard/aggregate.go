package dashboard

import (
	"sort"
	"time"

	"github.com/jaam8/lingua_bot/internal/models"
)

type Summary struct {
	Total   float64              `json:"total"`
	Daily   []models.DailyCost   `json:"daily"`
	Models  []models.ModelCost   `json:"models"`
	Records []models.UsageRecord `json:"records"`
}

// Summarize sorts records by time and sums cost per calendar day (ascending) and
// per model (descending cost, ties by name).
func Summarize(records []models.UsageRecord) Summary {
	sorted := make([]models.UsageRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	s := Summary{Records: sorted, Daily: []models.DailyCost{}, Models: []models.ModelCost{}}
	byModel := make(map[string]float64)
	for _, r := range sorted {
		s.Total += r.Cost
		day := time.Date(r.Timestamp.Year(), r.Timestamp.Month(), r.Timestamp.Day(), 0, 0, 0, 0, r.Timestamp.Location())
		if n := len(s.Daily); n > 0 && s.Daily[n-1].Day.Equal(day) {
			s.Daily[n-1].Cost += r.Cost
		} else {
			s.Daily = append(s.Daily, models.DailyCost{Day: day, Cost: r.Cost})
		}
		byModel[r.Model] += r.Cost
	}
	for m, c := range byModel {
		s.Models = append(s.Models, models.ModelCost{Model: m, Cost: c})
	}
	sort.Slice(s.Models, func(i, j int) bool {
		if s.Models[i].Cost != s.Models[j].Cost {
			return s.Models[i].Cost > s.Models[j].Cost
		}
		return s.Models[i].Model < s.Models[j].Model
	})
	return s
}
