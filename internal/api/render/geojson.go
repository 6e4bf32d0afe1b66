package render

import (
	"encoding/json"
	"fmt"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
)

// FeatureCollection is a GeoJSON feature collection of facilities
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one facility as a GeoJSON point feature
type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties properties `json:"properties"`
}

// Geometry is a GeoJSON point. Coordinates are longitude first.
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type properties struct {
	ID string `json:"id"`
	attributesV0
}

// GeoJSON renders facilities as a FeatureCollection
func GeoJSON(facilities []*entities.Facility) ([]byte, error) {
	fc := FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(facilities))}
	for _, f := range facilities {
		fc.Features = append(fc.Features, Feature{
			Type:       "Feature",
			Geometry:   Geometry{Type: "Point", Coordinates: [2]float64{f.Longitude, f.Latitude}},
			Properties: properties{ID: f.ID, attributesV0: toAttributesV0(f)},
		})
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode feature collection: %w", err)
	}
	return data, nil
}

// DecodeGeoJSON reads a FeatureCollection written by GeoJSON. The geometry is
// authoritative for the coordinates.
func DecodeGeoJSON(data []byte) ([]*entities.Facility, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to decode feature collection: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("unexpected GeoJSON type %q", fc.Type)
	}
	out := make([]*entities.Facility, 0, len(fc.Features))
	for _, feature := range fc.Features {
		f := feature.Properties.attributesV0.facility(feature.Properties.ID)
		f.Longitude = feature.Geometry.Coordinates[0]
		f.Latitude = feature.Geometry.Coordinates[1]
		out = append(out, f)
	}
	return out, nil
}
