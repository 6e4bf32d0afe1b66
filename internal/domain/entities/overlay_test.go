package entities

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperatingStatus_Validate(t *testing.T) {
	assert.NoError(t, (&OperatingStatus{Code: OperatingStatusLimited, AdditionalInfo: "Reduced hours"}).Validate())
	assert.Error(t, (&OperatingStatus{Code: "OPEN"}).Validate())

	long := &OperatingStatus{Code: OperatingStatusNotice, AdditionalInfo: strings.Repeat("a", MaxAdditionalInfoLength+1)}
	assert.Error(t, long.Validate())

	exact := &OperatingStatus{Code: OperatingStatusNotice, AdditionalInfo: strings.Repeat("é", MaxAdditionalInfoLength)}
	assert.NoError(t, exact.Validate())
}

func TestOverlay_Validate(t *testing.T) {
	o := &Overlay{
		ID:               "vha_402",
		OperatingStatus:  &OperatingStatus{Code: OperatingStatusClosed},
		DetailedServices: []DetailedService{{Name: "COVID-19 vaccines", Active: true}},
	}
	assert.NoError(t, o.Validate())

	o.DetailedServices = append(o.DetailedServices, DetailedService{Active: true})
	assert.Error(t, o.Validate())
}

func TestOverlay_CloneIsDeep(t *testing.T) {
	o := &Overlay{
		ID:              "vha_402",
		OperatingStatus: &OperatingStatus{Code: OperatingStatusNotice},
		DetailedServices: []DetailedService{{
			Name:   "Audiology",
			Active: true,
			ServiceLocations: []ServiceLocation{{
				Address: &Address{City: "Augusta"},
				Hours:   &Hours{Monday: "8AM-4PM"},
				Phones:  []AppointmentPhone{{Number: "207-623-8411"}},
			}},
		}},
	}
	c := o.Clone()
	assert.Equal(t, o, c)

	c.OperatingStatus.Code = OperatingStatusClosed
	c.DetailedServices[0].ServiceLocations[0].Address.City = "Bangor"
	c.DetailedServices[0].ServiceLocations[0].Hours.Monday = "Closed"
	c.DetailedServices[0].ServiceLocations[0].Phones[0].Number = "000"

	loc := o.DetailedServices[0].ServiceLocations[0]
	assert.Equal(t, OperatingStatusNotice, o.OperatingStatus.Code)
	assert.Equal(t, "Augusta", loc.Address.City)
	assert.Equal(t, "8AM-4PM", loc.Hours.Monday)
	assert.Equal(t, "207-623-8411", loc.Phones[0].Number)
}

func TestDetailedService_CanonicalID(t *testing.T) {
	assert.Equal(t, ServiceCovid19Vaccine, DetailedService{Name: "COVID-19 vaccines"}.CanonicalID())
	assert.Equal(t, "mentalHealth", DetailedService{ServiceID: "MentalHealthCare"}.CanonicalID())
	assert.Equal(t, "chaplainServices", DetailedService{Name: "Chaplain Services"}.CanonicalID())
}
