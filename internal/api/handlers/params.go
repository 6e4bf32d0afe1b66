package handlers

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/zatekoja/facilitydirectory/internal/application/services"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

// listParam collects a list parameter given as repeated "name[]" or "name"
// values, each of which may be comma separated.
func listParam(values url.Values, name string) []string {
	var out []string
	for _, key := range []string{name + "[]", name} {
		for _, v := range values[key] {
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
		}
	}
	return out
}

func floatParam(values url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("%s must be a number", name))
	}
	return &v, nil
}

func intParam(values url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError(fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}

func boolParam(values url.Values, name string) (*bool, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("%s must be true or false", name))
	}
	return &v, nil
}

// parseSearchQuery reads the public search parameters. Combination rules are
// checked by the search itself.
func parseSearchQuery(values url.Values) (*services.SearchQuery, error) {
	q := &services.SearchQuery{
		State:    strings.TrimSpace(values.Get("state")),
		Visn:     strings.TrimSpace(values.Get("visn")),
		Zip:      strings.TrimSpace(values.Get("zip")),
		IDs:      listParam(values, "ids"),
		Type:     strings.TrimSpace(values.Get("type")),
		Services: listParam(values, "services"),
	}

	for _, raw := range listParam(values, "bbox") {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, apperrors.NewValidationError("bbox values must be numbers")
		}
		q.BBox = append(q.BBox, v)
	}

	var err error
	if q.Lat, err = floatParam(values, "lat"); err != nil {
		return nil, err
	}
	if q.Long, err = floatParam(values, "long"); err != nil {
		return nil, err
	}
	if q.Radius, err = floatParam(values, "radius"); err != nil {
		return nil, err
	}
	if q.Mobile, err = boolParam(values, "mobile"); err != nil {
		return nil, err
	}
	if q.Page, err = intParam(values, "page", services.DefaultPage); err != nil {
		return nil, err
	}
	if q.PerPage, err = intParam(values, "per_page", services.DefaultPerPage); err != nil {
		return nil, err
	}
	return q, nil
}

// parseNearbyQuery reads the drive-time parameters. lat and long are required.
func parseNearbyQuery(values url.Values) (services.NearbyQuery, error) {
	lat, err := floatParam(values, "lat")
	if err != nil {
		return services.NearbyQuery{}, err
	}
	long, err := floatParam(values, "long")
	if err != nil {
		return services.NearbyQuery{}, err
	}
	if lat == nil || long == nil {
		return services.NearbyQuery{}, apperrors.NewValidationError("lat and long are required")
	}
	driveTime, err := intParam(values, "drive_time", services.DefaultDriveTime)
	if err != nil {
		return services.NearbyQuery{}, err
	}
	return services.NearbyQuery{
		Lat:       *lat,
		Long:      *long,
		DriveTime: driveTime,
		Type:      strings.TrimSpace(values.Get("type")),
	}, nil
}
