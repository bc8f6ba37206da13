package domain

import (
	"strings"
	"time"
)

// WeatherReport is the raw text published for one airport.
type WeatherReport struct {
	Airport   string    `json:"airport"`
	METAR     string    `json:"metar"`
	TAF       string    `json:"taf"`
	FetchedAt time.Time `json:"fetched_at"`
}

// WeatherFields holds values parsed from a METAR. A nil field was not
// reported: unlimited ceiling, unrestricted visibility, calm wind.
type WeatherFields struct {
	CeilingFt    *int     `json:"ceiling_ft"`
	VisibilitySM *float64 `json:"visibility_miles"`
	WindKts      *int     `json:"wind_speed_kts"`
	GustKts      *int     `json:"wind_gust_kts"`
	TemperatureC *int     `json:"temperature_c"`
}

type Determination struct {
	WeatherFields
	Airport        string   `json:"airport"`
	METAR          string   `json:"metar"`
	TAF            string   `json:"taf"`
	IsSafe         bool     `json:"is_safe"`
	BlockedReasons []string `json:"blocked_reasons"`
}

func (d Determination) BlockedReason() string {
	return strings.Join(d.BlockedReasons, "; ")
}

type RouteCheck struct {
	Departure Determination `json:"departure"`
	Arrival   Determination `json:"arrival"`
	Safe      bool          `json:"safe"`
}

// BlockedReason returns the reasons of both legs, departure first.
func (r RouteCheck) BlockedReason() string {
	var parts []string
	if reason := r.Departure.BlockedReason(); reason != "" {
		parts = append(parts, r.Departure.Airport+": "+reason)
	}
	if reason := r.Arrival.BlockedReason(); reason != "" {
		parts = append(parts, r.Arrival.Airport+": "+reason)
	}
	return strings.Join(parts, "; ")
}

type Airport struct {
	Code      string
	Name      string
	Latitude  float64
	Longitude float64
}
