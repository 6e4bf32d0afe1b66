package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/providers"
)

// bandFeatureCollection is the GeoJSON layout of a drive-time band export.
// Each feature carries facility_id, min and max properties and a Polygon or
// MultiPolygon geometry.
type bandFeatureCollection struct {
	Type     string        `json:"type"`
	Features []bandFeature `json:"features"`
}

type bandFeature struct {
	Properties struct {
		FacilityID string `json:"facility_id"`
		Min        *int   `json:"min"`
		Max        *int   `json:"max"`
	} `json:"properties"`
	Geometry struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
}

// LoadDriveTimeBands reads a band export from the reference source and tags
// every band with version. A malformed feature fails the whole load.
func LoadDriveTimeBands(ctx context.Context, source providers.ReferenceSource, name, version string) ([]*entities.DriveTimeBand, error) {
	data, err := readReference(ctx, source, name)
	if err != nil {
		return nil, err
	}

	var fc bandFeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("%s: invalid GeoJSON: %w", name, err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("%s: expected FeatureCollection, got %q", name, fc.Type)
	}

	bands := make([]*entities.DriveTimeBand, 0, len(fc.Features))
	for i, feature := range fc.Features {
		band, err := feature.band(version)
		if err != nil {
			return nil, fmt.Errorf("%s: feature %d: %w", name, i, err)
		}
		bands = append(bands, band)
	}
	return bands, nil
}

func (f bandFeature) band(version string) (*entities.DriveTimeBand, error) {
	p := f.Properties
	id := strings.TrimSpace(p.FacilityID)
	if id == "" {
		return nil, fmt.Errorf("missing facility_id")
	}
	if _, _, err := entities.SplitFacilityID(id); err != nil {
		return nil, err
	}
	if p.Min == nil || p.Max == nil {
		return nil, fmt.Errorf("%s: missing min or max", id)
	}
	if *p.Min < 0 || *p.Max <= *p.Min {
		return nil, fmt.Errorf("%s: invalid range %d-%d", id, *p.Min, *p.Max)
	}

	var rings [][]entities.Point
	switch f.Geometry.Type {
	case "Polygon":
		if err := json.Unmarshal(f.Geometry.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("%s: invalid polygon: %w", id, err)
		}
	case "MultiPolygon":
		var polygons [][][]entities.Point
		if err := json.Unmarshal(f.Geometry.Coordinates, &polygons); err != nil {
			return nil, fmt.Errorf("%s: invalid multipolygon: %w", id, err)
		}
		for _, polygon := range polygons {
			rings = append(rings, polygon...)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported geometry %q", id, f.Geometry.Type)
	}
	if len(rings) == 0 {
		return nil, fmt.Errorf("%s: empty geometry", id)
	}

	band := &entities.DriveTimeBand{
		ID:         fmt.Sprintf("%s_%d_%d", strings.ToLower(id), *p.Min, *p.Max),
		FacilityID: id,
		MinMinutes: *p.Min,
		MaxMinutes: *p.Max,
		Rings:      rings,
		Version:    version,
	}
	band.ComputeBounds()
	return band, nil
}
