package services

import (
	"net/url"
	"sort"
	"strings"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
)

// MergeFacility combines a collected facility with its overlay into the
// served representation. Neither input is modified and equal inputs always
// give equal output.
//
// An overlay operating status replaces the collected one wholesale. When the
// overlay carries detailed services, its active entries become the facility's
// detailed services and, for each service category the overlay mentions, the
// active entries replace the collected service ids.
func MergeFacility(facility *entities.Facility, overlay *entities.Overlay, linksBaseURL string) *entities.Facility {
	merged := facility.Clone()
	if overlay == nil {
		return merged
	}

	if overlay.OperatingStatus != nil {
		status := *overlay.OperatingStatus
		merged.OperatingStatus = &status
	}

	if !overlay.HasDetailedServices() {
		return merged
	}

	active := make([]entities.DetailedService, 0, len(overlay.DetailedServices))
	mentioned := make(map[entities.ServiceCategory]bool)
	byCategory := make(map[entities.ServiceCategory][]string)
	for i := range overlay.DetailedServices {
		svc := overlay.DetailedServices[i]
		id := svc.CanonicalID()
		category, _, known := entities.ResolveService(id)
		if known {
			mentioned[category] = true
		}
		if !svc.Active {
			continue
		}

		out := svc.Clone()
		out.Link = ServiceLink(linksBaseURL, facility.ID, id)
		active = append(active, out)
		if known {
			byCategory[category] = appendUnique(byCategory[category], id)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].CanonicalID() < active[j].CanonicalID()
	})
	merged.DetailedServices = active

	for category := range mentioned {
		ids := byCategory[category]
		sort.Strings(ids)
		switch category {
		case entities.ServiceCategoryHealth:
			merged.Services.Health = ids
		case entities.ServiceCategoryBenefits:
			merged.Services.Benefits = ids
		case entities.ServiceCategoryOther:
			merged.Services.Other = ids
		}
	}
	return merged
}

// ServiceLink is the public address of one detailed service of a facility
func ServiceLink(baseURL, facilityID, serviceID string) string {
	return strings.TrimRight(baseURL, "/") + "/v1/facilities/" + url.PathEscape(facilityID) + "/services/" + url.PathEscape(serviceID)
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
