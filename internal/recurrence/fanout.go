package recurrence

import "github.com/tazhate/strata/internal/domain"

// NeedsFanOut reports whether a template addressed to the whole strata has
// to be materialized per unit.
func NeedsFanOut(template domain.ReminderSeries) bool {
	return template.Kind == domain.KindStrataFee && template.UnitID == nil
}

// FanOut expands a template into the series that will actually be stored.
// A strata fee without a unit becomes one series per unit, everything else is
// returned as a single series. The caller assigns GroupID.
func FanOut(template domain.ReminderSeries, unitIDs []int64) ([]domain.ReminderSeries, error) {
	if !NeedsFanOut(template) {
		s, err := NewSeries(template)
		if err != nil {
			return nil, err
		}
		return []domain.ReminderSeries{*s}, nil
	}

	series := make([]domain.ReminderSeries, 0, len(unitIDs))
	for _, id := range unitIDs {
		t := template
		t.UnitID = &id
		s, err := NewSeries(t)
		if err != nil {
			return nil, err
		}
		series = append(series, *s)
	}
	return series, nil
}
