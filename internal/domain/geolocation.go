package domain

import (
	"encoding/json"
	"errors"
)

// Geolocation is the browser position optionally attached to a request.
type Geolocation struct {
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Accuracy         float64  `json:"accuracy"`
	Altitude         *float64 `json:"altitude"`
	AltitudeAccuracy *float64 `json:"altitudeAccuracy"`
	Heading          *float64 `json:"heading"`
	Speed            *float64 `json:"speed"`
}

// ParseGeolocation decodes a JSON object. A literal null yields nil.
func ParseGeolocation(raw string) (*Geolocation, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, err
	}
	if probe == nil {
		return nil, nil
	}
	for _, key := range []string{"latitude", "longitude"} {
		if v, ok := probe[key]; !ok || string(v) == "null" {
			return nil, errors.New("missing " + key)
		}
	}
	var g Geolocation
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return nil, err
	}
	return &g, nil
}
