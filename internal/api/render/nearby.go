package render

import (
	"encoding/json"
	"net/url"

	"github.com/zatekoja/facilitydirectory/internal/application/services"
)

// NearbyResourceType is the JSON API type of a nearby result
const NearbyResourceType = "nearby_facility"

// NearbyResource is one reachable facility with its drive-time band
type NearbyResource struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Attributes    NearbyAttrs     `json:"attributes"`
	Relationships NearbyRelations `json:"relationships"`
}

// NearbyAttrs holds the drive-time band in minutes
type NearbyAttrs struct {
	MinTime int `json:"min_time"`
	MaxTime int `json:"max_time"`
}

// NearbyRelations links a nearby result to its facility
type NearbyRelations struct {
	Facility struct {
		Links struct {
			Related string `json:"related"`
		} `json:"links"`
	} `json:"va_facility"`
}

// NearbyDocument is the body of a nearby response
type NearbyDocument struct {
	Data []NearbyResource `json:"data"`
	Meta struct {
		BandVersion string `json:"band_version,omitempty"`
	} `json:"meta"`
}

// Nearby renders a drive-time query result
func (r *Renderer) Nearby(result *services.NearbyResult) ([]byte, error) {
	doc := NearbyDocument{Data: make([]NearbyResource, 0, len(result.Facilities))}
	doc.Meta.BandVersion = result.BandVersion
	for _, f := range result.Facilities {
		res := NearbyResource{
			ID:         f.ID,
			Type:       NearbyResourceType,
			Attributes: NearbyAttrs{MinTime: f.MinMinutes, MaxTime: f.MaxMinutes},
		}
		res.Relationships.Facility.Links.Related = r.BaseURL + "/v1/facilities/" + url.PathEscape(f.ID)
		doc.Data = append(doc.Data, res)
	}
	return json.Marshal(doc)
}
