package weather

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Domenick1991/bushcharter/internal/domain"
)

var (
	ceilingRe     = regexp.MustCompile(`\b(?:BKN|OVC)(\d{3})`)
	visibilityRe  = regexp.MustCompile(`(?:^|\s)([PM])?(?:(\d+)\s+)?(\d+)(?:/(\d+))?SM\b`)
	windRe        = regexp.MustCompile(`\b(?:\d{3}|VRB)(\d{2,3})(?:G(\d{2,3}))?KT\b`)
	temperatureRe = regexp.MustCompile(`(?:^|\s)(M?\d{2})/(?:M?\d{2})?(?:\s|$)`)
)

// ParseMETAR extracts ceiling, visibility, wind and temperature from a raw
// METAR. Each field is parsed on its own; a group that is missing or
// malformed leaves only that field nil.
func ParseMETAR(raw string) domain.WeatherFields {
	body := raw
	if i := strings.Index(body, " RMK"); i >= 0 {
		body = body[:i]
	}

	var f domain.WeatherFields
	f.CeilingFt = parseCeiling(body)
	f.VisibilitySM = parseVisibility(body)
	f.WindKts, f.GustKts = parseWind(body)
	f.TemperatureC = parseTemperature(body)
	return f
}

func parseCeiling(s string) *int {
	m := ceilingRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	hundreds, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	ft := hundreds * 100
	return &ft
}

func parseVisibility(s string) *float64 {
	m := visibilityRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	whole, num, den := m[2], m[3], m[4]

	n, err := strconv.Atoi(num)
	if err != nil {
		return nil
	}
	v := float64(n)
	if den != "" {
		d, err := strconv.Atoi(den)
		if err != nil || d == 0 {
			return nil
		}
		v = float64(n) / float64(d)
		if whole != "" {
			w, err := strconv.Atoi(whole)
			if err != nil {
				return nil
			}
			v += float64(w)
		}
	}
	return &v
}

func parseWind(s string) (speed, gust *int) {
	m := windRe.FindStringSubmatch(s)
	if m == nil {
		return nil, nil
	}
	kts, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, nil
	}
	speed = &kts
	if m[2] != "" {
		if g, err := strconv.Atoi(m[2]); err == nil {
			gust = &g
		}
	}
	return speed, gust
}

func parseTemperature(s string) *int {
	m := temperatureRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	raw := m[1]
	negative := strings.HasPrefix(raw, "M")
	v, err := strconv.Atoi(strings.TrimPrefix(raw, "M"))
	if err != nil {
		return nil
	}
	if negative {
		v = -v
	}
	return &v
}
