package models

// GeocodingLocation is a single candidate returned by the geocoding API.
type GeocodingLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
}

// GeocodingResult is the geocoding API response for a city-name query.
// Results is omitted by the upstream when nothing matched.
type GeocodingResult struct {
	Results []GeocodingLocation `json:"results,omitempty"`
}

// CurrentConditions holds the current block of a forecast response.
type CurrentConditions struct {
	Temperature2m float64 `json:"temperature_2m"`
	Precipitation float64 `json:"precipitation"`
	IsDay         int     `json:"is_day"`
	Rain          float64 `json:"rain"`
}

// WeatherSnapshot is returned to callers exactly as the forecast API produced it.
type WeatherSnapshot struct {
	Latitude  float64           `json:"latitude"`
	Longitude float64           `json:"longitude"`
	Timezone  string            `json:"timezone"`
	Current   CurrentConditions `json:"current"`
}

// CacheEntry wraps a cached payload with the unix-millis instant it was written.
type CacheEntry[T any] struct {
	Data      T     `json:"data"`
	Timestamp int64 `json:"timestamp"`
}
