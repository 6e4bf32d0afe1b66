// Package render turns merged facilities into the public wire formats: JSON
// API documents for v0 and v1, GeoJSON and CSV.
package render

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/zatekoja/facilitydirectory/internal/application/services"
	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
)

// Content types
const (
	ContentTypeJSON    = "application/json"
	ContentTypeGeoJSON = "application/vnd.geo+json"
	ContentTypeCSV     = "text/csv"
)

// ResourceType is the JSON API type of a facility resource
const ResourceType = "va_facilities"

// Version selects the presentation of a JSON API document
type Version int

const (
	V0 Version = iota
	V1
)

func (v Version) String() string {
	if v == V1 {
		return "v1"
	}
	return "v0"
}

// Renderer builds documents whose links point at BaseURL
type Renderer struct {
	BaseURL string
}

// New creates a renderer. baseURL is the public root of the API.
func New(baseURL string) *Renderer {
	return &Renderer{BaseURL: strings.TrimRight(baseURL, "/")}
}

// Resource is one JSON API resource object
type Resource struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Attributes json.RawMessage `json:"attributes"`
	Links      *ResourceLinks  `json:"links,omitempty"`
}

// ResourceLinks points at the canonical location of a resource
type ResourceLinks struct {
	Self string `json:"self"`
}

// PageLinks are the pagination links of a collection document. Prev and Next
// are null at the ends.
type PageLinks struct {
	Self  string  `json:"self"`
	First string  `json:"first"`
	Prev  *string `json:"prev"`
	Next  *string `json:"next"`
	Last  string  `json:"last"`
}

// Pagination describes the page a collection document holds
type Pagination struct {
	CurrentPage  int `json:"current_page"`
	PerPage      int `json:"per_page"`
	TotalPages   int `json:"total_pages"`
	TotalEntries int `json:"total_entries"`
}

// Distance is the distance in miles from the query point to one result
type Distance struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
}

// Meta carries pagination and, for located searches, per-result distances
type Meta struct {
	Pagination Pagination `json:"pagination"`
	Distances  []Distance `json:"distances,omitempty"`
}

// CollectionDocument is a page of search results
type CollectionDocument struct {
	Data  []Resource `json:"data"`
	Links PageLinks  `json:"links"`
	Meta  Meta       `json:"meta"`
}

// SingleDocument holds one facility
type SingleDocument struct {
	Data Resource `json:"data"`
}

// attributesV0 carries every public field of a merged facility
type attributesV0 struct {
	Name                                string                     `json:"name"`
	FacilityType                        entities.FacilityType      `json:"facility_type"`
	Classification                      string                     `json:"classification,omitempty"`
	Website                             string                     `json:"website,omitempty"`
	Lat                                 float64                    `json:"lat"`
	Long                                float64                    `json:"long"`
	TimeZone                            string                     `json:"time_zone,omitempty"`
	Address                             entities.Addresses         `json:"address"`
	Phone                               entities.Phone             `json:"phone"`
	Hours                               entities.Hours             `json:"hours"`
	OperationalHoursSpecialInstructions []string                   `json:"operational_hours_special_instructions,omitempty"`
	OperatingStatus                     *entities.OperatingStatus  `json:"operating_status,omitempty"`
	Services                            entities.Services          `json:"services"`
	DetailedServices                    []entities.DetailedService `json:"detailed_services,omitempty"`
	Satisfaction                        *entities.Satisfaction     `json:"satisfaction,omitempty"`
	WaitTimes                           *entities.WaitTimes        `json:"wait_times,omitempty"`
	Mobile                              *bool                      `json:"mobile,omitempty"`
	ActiveStatus                        string                     `json:"active_status,omitempty"`
	Visn                                string                     `json:"visn,omitempty"`
}

// serviceRef names one service and links to its details
type serviceRef struct {
	Name      string `json:"name"`
	ServiceID string `json:"serviceId"`
	Link      string `json:"link"`
}

type servicesV1 struct {
	Health      []serviceRef `json:"health,omitempty"`
	Benefits    []serviceRef `json:"benefits,omitempty"`
	Other       []serviceRef `json:"other,omitempty"`
	Link        string       `json:"link"`
	LastUpdated string       `json:"lastUpdated,omitempty"`
}

// attributesV1 replaces the inline detailed services with links
type attributesV1 struct {
	Name                                string                    `json:"name"`
	FacilityType                        entities.FacilityType     `json:"facilityType"`
	Classification                      string                    `json:"classification,omitempty"`
	Website                             string                    `json:"website,omitempty"`
	Lat                                 float64                   `json:"lat"`
	Long                                float64                   `json:"long"`
	TimeZone                            string                    `json:"timeZone,omitempty"`
	Address                             entities.Addresses        `json:"address"`
	Phone                               entities.Phone            `json:"phone"`
	Hours                               entities.Hours            `json:"hours"`
	OperationalHoursSpecialInstructions []string                  `json:"operationalHoursSpecialInstructions,omitempty"`
	OperatingStatus                     *entities.OperatingStatus `json:"operatingStatus,omitempty"`
	Services                            servicesV1                `json:"services"`
	Satisfaction                        *entities.Satisfaction    `json:"satisfaction,omitempty"`
	WaitTimes                           *entities.WaitTimes       `json:"waitTimes,omitempty"`
	Mobile                              *bool                     `json:"mobile,omitempty"`
	Visn                                string                    `json:"visn,omitempty"`
}

func toAttributesV0(f *entities.Facility) attributesV0 {
	return attributesV0{
		Name:                                f.Name,
		FacilityType:                        f.FacilityType,
		Classification:                      f.Classification,
		Website:                             f.Website,
		Lat:                                 f.Latitude,
		Long:                                f.Longitude,
		TimeZone:                            f.TimeZone,
		Address:                             f.Address,
		Phone:                               f.Phone,
		Hours:                               f.Hours,
		OperationalHoursSpecialInstructions: f.OperationalHoursSpecialInstructions,
		OperatingStatus:                     f.OperatingStatus,
		Services:                            f.Services,
		DetailedServices:                    f.DetailedServices,
		Satisfaction:                        f.Satisfaction,
		WaitTimes:                           f.WaitTimes,
		Mobile:                              f.Mobile,
		ActiveStatus:                        f.ActiveStatus,
		Visn:                                f.Visn,
	}
}

func (a attributesV0) facility(id string) *entities.Facility {
	return &entities.Facility{
		ID:                                  id,
		Name:                                a.Name,
		FacilityType:                        a.FacilityType,
		Classification:                      a.Classification,
		Website:                             a.Website,
		Latitude:                            a.Lat,
		Longitude:                           a.Long,
		TimeZone:                            a.TimeZone,
		Address:                             a.Address,
		Phone:                               a.Phone,
		Hours:                               a.Hours,
		OperationalHoursSpecialInstructions: a.OperationalHoursSpecialInstructions,
		OperatingStatus:                     a.OperatingStatus,
		Services:                            a.Services,
		DetailedServices:                    a.DetailedServices,
		Satisfaction:                        a.Satisfaction,
		WaitTimes:                           a.WaitTimes,
		Mobile:                              a.Mobile,
		ActiveStatus:                        a.ActiveStatus,
		Visn:                                a.Visn,
	}
}

func (r *Renderer) toAttributesV1(f *entities.Facility) attributesV1 {
	names := make(map[string]string, len(f.DetailedServices))
	for _, svc := range f.DetailedServices {
		names[svc.CanonicalID()] = svc.Name
	}
	refs := func(ids []string) []serviceRef {
		if len(ids) == 0 {
			return nil
		}
		out := make([]serviceRef, 0, len(ids))
		for _, id := range ids {
			name := names[id]
			if name == "" {
				name = id
			}
			out = append(out, serviceRef{
				Name:      name,
				ServiceID: id,
				Link:      services.ServiceLink(r.BaseURL, f.ID, id),
			})
		}
		return out
	}

	return attributesV1{
		Name:                                f.Name,
		FacilityType:                        f.FacilityType,
		Classification:                      f.Classification,
		Website:                             f.Website,
		Lat:                                 f.Latitude,
		Long:                                f.Longitude,
		TimeZone:                            f.TimeZone,
		Address:                             f.Address,
		Phone:                               f.Phone,
		Hours:                               f.Hours,
		OperationalHoursSpecialInstructions: f.OperationalHoursSpecialInstructions,
		OperatingStatus:                     f.OperatingStatus,
		Services: servicesV1{
			Health:      refs(f.Services.Health),
			Benefits:    refs(f.Services.Benefits),
			Other:       refs(f.Services.Other),
			Link:        r.BaseURL + "/v1/facilities/" + url.PathEscape(f.ID) + "/services",
			LastUpdated: f.Services.LastUpdated,
		},
		Satisfaction: f.Satisfaction,
		WaitTimes:    f.WaitTimes,
		Mobile:       f.Mobile,
		Visn:         f.Visn,
	}
}

func (r *Renderer) resource(f *entities.Facility, v Version) (Resource, error) {
	var attrs interface{}
	if v == V1 {
		attrs = r.toAttributesV1(f)
	} else {
		attrs = toAttributesV0(f)
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return Resource{}, fmt.Errorf("failed to encode facility %s: %w", f.ID, err)
	}
	return Resource{
		ID:         f.ID,
		Type:       ResourceType,
		Attributes: data,
		Links:      &ResourceLinks{Self: r.BaseURL + "/" + v.String() + "/facilities/" + url.PathEscape(f.ID)},
	}, nil
}

// Facility renders a single facility document
func (r *Renderer) Facility(f *entities.Facility, v Version) ([]byte, error) {
	res, err := r.resource(f, v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(SingleDocument{Data: res})
}

// Search renders one page of search results. path and params describe the
// request so the pagination links can repeat it.
func (r *Renderer) Search(result *services.SearchResult, v Version, path string, params url.Values) ([]byte, error) {
	doc := CollectionDocument{
		Data: make([]Resource, 0, len(result.Facilities)),
		Links: r.pageLinks(path, params, result),
		Meta: Meta{Pagination: Pagination{
			CurrentPage:  result.Page,
			PerPage:      result.PerPage,
			TotalPages:   result.TotalPages,
			TotalEntries: result.TotalEntries,
		}},
	}
	for i, f := range result.Facilities {
		res, err := r.resource(f, v)
		if err != nil {
			return nil, err
		}
		doc.Data = append(doc.Data, res)
		if result.Distances != nil {
			doc.Meta.Distances = append(doc.Meta.Distances, Distance{ID: f.ID, Distance: result.Distances[i]})
		}
	}
	if result.Distances != nil && doc.Meta.Distances == nil {
		doc.Meta.Distances = []Distance{}
	}
	return json.Marshal(doc)
}

func (r *Renderer) pageLinks(path string, params url.Values, result *services.SearchResult) PageLinks {
	link := func(page int) string {
		q := url.Values{}
		for k, vs := range params {
			q[k] = append([]string(nil), vs...)
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(result.PerPage))
		return r.BaseURL + path + "?" + q.Encode()
	}

	last := max(result.TotalPages, 1)
	links := PageLinks{
		Self:  link(result.Page),
		First: link(1),
		Last:  link(last),
	}
	if result.Page > 1 && result.Page <= last {
		prev := link(result.Page - 1)
		links.Prev = &prev
	}
	if result.Page < result.TotalPages {
		next := link(result.Page + 1)
		links.Next = &next
	}
	return links
}

// DecodeFacility reads a v0 single facility document back into a facility
func DecodeFacility(data []byte) (*entities.Facility, error) {
	var doc SingleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode facility document: %w", err)
	}
	var attrs attributesV0
	if err := json.Unmarshal(doc.Data.Attributes, &attrs); err != nil {
		return nil, fmt.Errorf("failed to decode facility attributes: %w", err)
	}
	return attrs.facility(doc.Data.ID), nil
}
