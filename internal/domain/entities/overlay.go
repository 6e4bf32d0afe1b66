package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/zatekoja/facilitydirectory/pkg/utils"
)

// MaxAdditionalInfoLength bounds the free text of an operating status
const MaxAdditionalInfoLength = 300

// OperatingStatusCode is the editorial status of a facility
type OperatingStatusCode string

const (
	OperatingStatusNormal  OperatingStatusCode = "NORMAL"
	OperatingStatusNotice  OperatingStatusCode = "NOTICE"
	OperatingStatusLimited OperatingStatusCode = "LIMITED"
	OperatingStatusClosed  OperatingStatusCode = "CLOSED"
)

// OperatingStatus is a status code plus optional free text
type OperatingStatus struct {
	Code           OperatingStatusCode `json:"code"`
	AdditionalInfo string              `json:"additional_info,omitempty"`
}

// Validate checks the code and the additional info length
func (s *OperatingStatus) Validate() error {
	switch s.Code {
	case OperatingStatusNormal, OperatingStatusNotice, OperatingStatusLimited, OperatingStatusClosed:
	default:
		return fmt.Errorf("unknown operating status code %q", s.Code)
	}
	if len([]rune(s.AdditionalInfo)) > MaxAdditionalInfoLength {
		return fmt.Errorf("operating status additional info exceeds %d characters", MaxAdditionalInfoLength)
	}
	return nil
}

// Overlay is the CMS-supplied correction for one facility. It lives and dies
// independently of the collected Facility record.
type Overlay struct {
	ID               string            `json:"id"`
	OperatingStatus  *OperatingStatus  `json:"operating_status,omitempty"`
	DetailedServices []DetailedService `json:"detailed_services,omitempty"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// HasDetailedServices reports whether the overlay overrides the service list
func (o *Overlay) HasDetailedServices() bool {
	return o != nil && len(o.DetailedServices) > 0
}

// Validate checks every part of an uploaded overlay
func (o *Overlay) Validate() error {
	if o.OperatingStatus != nil {
		if err := o.OperatingStatus.Validate(); err != nil {
			return err
		}
	}
	for i := range o.DetailedServices {
		if strings.TrimSpace(o.DetailedServices[i].Name) == "" && strings.TrimSpace(o.DetailedServices[i].ServiceID) == "" {
			return fmt.Errorf("detailed service %d has neither name nor service id", i)
		}
	}
	return nil
}

// Clone returns a deep copy
func (o *Overlay) Clone() *Overlay {
	if o == nil {
		return nil
	}
	c := *o
	if o.OperatingStatus != nil {
		status := *o.OperatingStatus
		c.OperatingStatus = &status
	}
	if o.DetailedServices != nil {
		c.DetailedServices = make([]DetailedService, len(o.DetailedServices))
		for i := range o.DetailedServices {
			c.DetailedServices[i] = o.DetailedServices[i].Clone()
		}
	}
	return &c
}

// DetailedService is a named service offering with its own contact, hours and
// location metadata. Only active services are published.
type DetailedService struct {
	Name                      string             `json:"name"`
	ServiceID                 string             `json:"service_id,omitempty"`
	Active                    bool               `json:"active"`
	DescriptionFacility       string             `json:"description_facility,omitempty"`
	AppointmentLeadIn         string             `json:"appointment_leadin,omitempty"`
	OnlineSchedulingAvailable string             `json:"online_scheduling_available,omitempty"`
	ReferralRequired          string             `json:"referral_required,omitempty"`
	WalkInsAccepted           string             `json:"walk_ins_accepted,omitempty"`
	AppointmentPhones         []AppointmentPhone `json:"appointment_phones,omitempty"`
	ServiceLocations          []ServiceLocation  `json:"service_locations,omitempty"`
	Path                      string             `json:"path,omitempty"`
	Link                      string             `json:"link,omitempty"`
}

// AppointmentPhone is a phone contact attached to a service
type AppointmentPhone struct {
	Type      string `json:"type,omitempty"`
	Label     string `json:"label,omitempty"`
	Number    string `json:"number,omitempty"`
	Extension string `json:"extension,omitempty"`
}

// ServiceEmail is an email contact attached to a service location
type ServiceEmail struct {
	Address     string `json:"email_address,omitempty"`
	Description string `json:"email_label,omitempty"`
}

// ServiceLocation is one place a detailed service is offered
type ServiceLocation struct {
	OfficeName          string             `json:"office_name,omitempty"`
	Address             *Address           `json:"service_location_address,omitempty"`
	Phones              []AppointmentPhone `json:"appointment_phones,omitempty"`
	Emails              []ServiceEmail     `json:"email_contacts,omitempty"`
	Hours               *Hours             `json:"facility_service_hours,omitempty"`
	AdditionalHoursInfo string             `json:"additional_hours_info,omitempty"`
}

// Clone returns a deep copy
func (d DetailedService) Clone() DetailedService {
	c := d
	if d.AppointmentPhones != nil {
		c.AppointmentPhones = append([]AppointmentPhone(nil), d.AppointmentPhones...)
	}
	if d.ServiceLocations != nil {
		c.ServiceLocations = make([]ServiceLocation, len(d.ServiceLocations))
		for i, loc := range d.ServiceLocations {
			lc := loc
			lc.Address = loc.Address.clone()
			if loc.Hours != nil {
				h := *loc.Hours
				lc.Hours = &h
			}
			if loc.Phones != nil {
				lc.Phones = append([]AppointmentPhone(nil), loc.Phones...)
			}
			if loc.Emails != nil {
				lc.Emails = append([]ServiceEmail(nil), loc.Emails...)
			}
			c.ServiceLocations[i] = lc
		}
	}
	return c
}

// CanonicalID resolves the service's canonical identifier, falling back to the
// lower-camel form of its name when the catalog does not know it.
func (d DetailedService) CanonicalID() string {
	for _, candidate := range []string{d.ServiceID, d.Name} {
		if _, id, ok := ResolveService(candidate); ok {
			return id
		}
	}
	if d.ServiceID != "" {
		return utils.LowerCamel(d.ServiceID)
	}
	return utils.LowerCamel(d.Name)
}
