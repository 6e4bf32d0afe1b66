package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// FacilityType classifies a facility by the administration that runs it
type FacilityType string

const (
	FacilityTypeHealth    FacilityType = "va_health_facility"
	FacilityTypeBenefits  FacilityType = "va_benefits_facility"
	FacilityTypeCemetery  FacilityType = "va_cemetery"
	FacilityTypeVetCenter FacilityType = "vet_center"
)

// ParseFacilityType accepts the public spellings of a facility type
func ParseFacilityType(s string) (FacilityType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "health", string(FacilityTypeHealth):
		return FacilityTypeHealth, true
	case "benefits", string(FacilityTypeBenefits):
		return FacilityTypeBenefits, true
	case "cemetery", string(FacilityTypeCemetery):
		return FacilityTypeCemetery, true
	case "vet_center":
		return FacilityTypeVetCenter, true
	}
	return "", false
}

// Facility id prefixes
const (
	PrefixHealth        = "vha"
	PrefixBenefits      = "vba"
	PrefixCemetery      = "nca"
	PrefixStateCemetery = "nca_s"
	PrefixVetCenter     = "vc"
)

// FacilityID builds the public id "<prefix>_<station>"
func FacilityID(prefix, station string) string {
	return prefix + "_" + strings.TrimSpace(station)
}

// SplitFacilityID returns the prefix and station number of a facility id.
// "nca_s_802" splits into ("nca_s", "802").
func SplitFacilityID(id string) (prefix, station string, err error) {
	lower := strings.ToLower(id)
	for _, p := range []string{PrefixStateCemetery, PrefixHealth, PrefixBenefits, PrefixCemetery, PrefixVetCenter} {
		if strings.HasPrefix(lower, p+"_") && len(id) > len(p)+1 {
			return p, id[len(p)+1:], nil
		}
	}
	return "", "", fmt.Errorf("invalid facility id %q", id)
}

// Facility is the normalized, version-agnostic record of one physical facility
// as collected from upstream. Presentation layers map it to v0/v1 shapes.
type Facility struct {
	ID                                  string            `json:"id"`
	Name                                string            `json:"name"`
	FacilityType                        FacilityType      `json:"facility_type"`
	Classification                      string            `json:"classification,omitempty"`
	Website                             string            `json:"website,omitempty"`
	Latitude                            float64           `json:"lat"`
	Longitude                           float64           `json:"long"`
	TimeZone                            string            `json:"time_zone,omitempty"`
	Address                             Addresses         `json:"address"`
	Phone                               Phone             `json:"phone"`
	Hours                               Hours             `json:"hours"`
	OperationalHoursSpecialInstructions []string          `json:"operational_hours_special_instructions,omitempty"`
	OperatingStatus                     *OperatingStatus  `json:"operating_status,omitempty"`
	Services                            Services          `json:"services"`
	DetailedServices                    []DetailedService `json:"detailed_services,omitempty"`
	Satisfaction                        *Satisfaction     `json:"satisfaction,omitempty"`
	WaitTimes                           *WaitTimes        `json:"wait_times,omitempty"`
	Mobile                              *bool             `json:"mobile,omitempty"`
	ActiveStatus                        string            `json:"active_status,omitempty"`
	Visn                                string            `json:"visn,omitempty"`
}

// Addresses holds the physical and mailing addresses
type Addresses struct {
	Physical *Address `json:"physical,omitempty"`
	Mailing  *Address `json:"mailing,omitempty"`
}

// Address represents a postal address
type Address struct {
	Address1 string `json:"address_1,omitempty"`
	Address2 string `json:"address_2,omitempty"`
	Address3 string `json:"address_3,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Zip      string `json:"zip,omitempty"`
}

// Phone holds the facility's published phone numbers
type Phone struct {
	Main                  string `json:"main,omitempty"`
	Fax                   string `json:"fax,omitempty"`
	Pharmacy              string `json:"pharmacy,omitempty"`
	AfterHours            string `json:"after_hours,omitempty"`
	PatientAdvocate       string `json:"patient_advocate,omitempty"`
	MentalHealthClinic    string `json:"mental_health_clinic,omitempty"`
	EnrollmentCoordinator string `json:"enrollment_coordinator,omitempty"`
	HealthConnect         string `json:"health_connect,omitempty"`
}

// Hours holds the weekly hours of operation
type Hours struct {
	Monday    string `json:"monday,omitempty"`
	Tuesday   string `json:"tuesday,omitempty"`
	Wednesday string `json:"wednesday,omitempty"`
	Thursday  string `json:"thursday,omitempty"`
	Friday    string `json:"friday,omitempty"`
	Saturday  string `json:"saturday,omitempty"`
	Sunday    string `json:"sunday,omitempty"`
}

// Services lists canonical service ids by category
type Services struct {
	Health      []string `json:"health,omitempty"`
	Benefits    []string `json:"benefits,omitempty"`
	Other       []string `json:"other,omitempty"`
	LastUpdated string   `json:"last_updated,omitempty"`
}

// All returns every service id regardless of category
func (s Services) All() []string {
	all := make([]string, 0, len(s.Health)+len(s.Benefits)+len(s.Other))
	all = append(all, s.Health...)
	all = append(all, s.Benefits...)
	return append(all, s.Other...)
}

// Satisfaction holds patient satisfaction scores keyed by survey question
type Satisfaction struct {
	Health        map[string]float64 `json:"health,omitempty"`
	EffectiveDate string             `json:"effective_date,omitempty"`
}

// WaitTimes holds published appointment wait times
type WaitTimes struct {
	Health        []PatientWaitTime `json:"health,omitempty"`
	EffectiveDate string            `json:"effective_date,omitempty"`
}

// PatientWaitTime is the wait in days for one service
type PatientWaitTime struct {
	Service     string   `json:"service"`
	New         *float64 `json:"new,omitempty"`
	Established *float64 `json:"established,omitempty"`
}

// Clone returns a deep copy so callers can derive views without touching the
// stored record.
func (f *Facility) Clone() *Facility {
	if f == nil {
		return nil
	}
	c := *f
	c.Address = Addresses{Physical: f.Address.Physical.clone(), Mailing: f.Address.Mailing.clone()}
	c.OperationalHoursSpecialInstructions = cloneStrings(f.OperationalHoursSpecialInstructions)
	if f.OperatingStatus != nil {
		status := *f.OperatingStatus
		c.OperatingStatus = &status
	}
	c.Services = Services{
		Health:      cloneStrings(f.Services.Health),
		Benefits:    cloneStrings(f.Services.Benefits),
		Other:       cloneStrings(f.Services.Other),
		LastUpdated: f.Services.LastUpdated,
	}
	if f.DetailedServices != nil {
		c.DetailedServices = make([]DetailedService, len(f.DetailedServices))
		for i := range f.DetailedServices {
			c.DetailedServices[i] = f.DetailedServices[i].Clone()
		}
	}
	if f.Satisfaction != nil {
		sat := Satisfaction{EffectiveDate: f.Satisfaction.EffectiveDate}
		if f.Satisfaction.Health != nil {
			sat.Health = make(map[string]float64, len(f.Satisfaction.Health))
			for k, v := range f.Satisfaction.Health {
				sat.Health[k] = v
			}
		}
		c.Satisfaction = &sat
	}
	if f.WaitTimes != nil {
		wt := WaitTimes{EffectiveDate: f.WaitTimes.EffectiveDate}
		for _, w := range f.WaitTimes.Health {
			wt.Health = append(wt.Health, PatientWaitTime{
				Service:     w.Service,
				New:         cloneFloat(w.New),
				Established: cloneFloat(w.Established),
			})
		}
		c.WaitTimes = &wt
	}
	if f.Mobile != nil {
		mobile := *f.Mobile
		c.Mobile = &mobile
	}
	return &c
}

// IsMobile reports whether the facility is a mobile unit
func (f *Facility) IsMobile() bool {
	return f.Mobile != nil && *f.Mobile
}

// PhysicalAddress returns the physical address or an empty one
func (f *Facility) PhysicalAddress() Address {
	if f.Address.Physical == nil {
		return Address{}
	}
	return *f.Address.Physical
}

// ContentHash fingerprints the record. Two records with equal hashes carry the
// same content, which is how reloads tell updates from no-op rewrites.
func (f *Facility) ContentHash() (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("failed to marshal facility %s: %w", f.ID, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (a *Address) clone() *Address {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
