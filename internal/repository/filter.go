package repository

import (
	"fmt"
	"sort"
	"time"

	"EpiPulse/internal/domain/models"
)

// FilterCases keeps the rows of one country and disease within [from, to]
// and sorts them by date. The disease filter only applies when the rows
// carry disease labels. Zero from/to leave that side open.
func FilterCases(rows []models.CasePoint, country, disease string, from, to time.Time) ([]models.CasePoint, error) {
	byCountry := make([]models.CasePoint, 0, len(rows))
	labelled := false
	for _, r := range rows {
		if r.Country != country {
			continue
		}
		byCountry = append(byCountry, r)
		if r.Disease != "" {
			labelled = true
		}
	}
	if len(byCountry) == 0 {
		return nil, fmt.Errorf("%w for country: %s", models.ErrNoData, country)
	}

	out := byCountry
	if disease != "" && labelled {
		out = make([]models.CasePoint, 0, len(byCountry))
		for _, r := range byCountry {
			if r.Disease == disease {
				out = append(out, r)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w for disease: %s", models.ErrNoData, disease)
		}
	}

	if !from.IsZero() || !to.IsZero() {
		ranged := out[:0:0]
		for _, r := range out {
			if !from.IsZero() && r.Date.Time.Before(from) {
				continue
			}
			if !to.IsZero() && r.Date.Time.After(to) {
				continue
			}
			ranged = append(ranged, r)
		}
		out = ranged
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Countries returns the sorted distinct countries of rows.
func Countries(rows []models.CasePoint) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		if r.Country != "" {
			seen[r.Country] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
