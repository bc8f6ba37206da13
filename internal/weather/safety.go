package weather

import (
	"fmt"
	"strconv"

	"github.com/Domenick1991/bushcharter/internal/domain"
)

// SafetyRules are the VFR minimums a leg has to meet.
type SafetyRules struct {
	MinCeilingFt    int     `yaml:"min_ceiling_ft" json:"min_ceiling_ft"`
	MinVisibilitySM float64 `yaml:"min_visibility_miles" json:"min_visibility_miles"`
	MaxWindKts      int     `yaml:"max_wind_kts" json:"max_wind_kts"`
}

func DefaultSafetyRules() SafetyRules {
	return SafetyRules{
		MinCeilingFt:    1000,
		MinVisibilitySM: 3,
		MaxWindKts:      25,
	}
}

// Evaluate applies rules to f. Rules are checked independently in the order
// ceiling, visibility, wind; a nil field never produces a violation.
func Evaluate(f domain.WeatherFields, rules SafetyRules) domain.Determination {
	reasons := make([]string, 0, 3)

	if f.CeilingFt != nil && *f.CeilingFt < rules.MinCeilingFt {
		reasons = append(reasons, fmt.Sprintf("Ceiling too low: %dft (min %dft)", *f.CeilingFt, rules.MinCeilingFt))
	}

	if f.VisibilitySM != nil && *f.VisibilitySM < rules.MinVisibilitySM {
		reasons = append(reasons, fmt.Sprintf("Visibility too low: %smi (min %smi)",
			formatMiles(*f.VisibilitySM), formatMiles(rules.MinVisibilitySM)))
	}

	if wind, ok := peakWind(f); ok && wind > rules.MaxWindKts {
		reasons = append(reasons, fmt.Sprintf("Wind too high: %dkts (max %dkts)", wind, rules.MaxWindKts))
	}

	return domain.Determination{
		WeatherFields:  f,
		IsSafe:         len(reasons) == 0,
		BlockedReasons: reasons,
	}
}

func peakWind(f domain.WeatherFields) (int, bool) {
	switch {
	case f.WindKts != nil && f.GustKts != nil:
		return max(*f.WindKts, *f.GustKts), true
	case f.GustKts != nil:
		return *f.GustKts, true
	case f.WindKts != nil:
		return *f.WindKts, true
	}
	return 0, false
}

func formatMiles(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
