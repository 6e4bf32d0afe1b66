package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
)

const testLinksBase = "https://api.example.gov/facilities"

func overlayFixture() *entities.Overlay {
	return &entities.Overlay{
		ID: "vha_688",
		OperatingStatus: &entities.OperatingStatus{
			Code:           entities.OperatingStatusLimited,
			AdditionalInfo: "Pharmacy closed for renovation",
		},
		DetailedServices: []entities.DetailedService{
			{Name: "Primary Care", Active: true, AppointmentLeadIn: "Call us"},
			{Name: "Dental Services", Active: false},
			{Name: "Chaplain Services", Active: true},
		},
	}
}

func TestMergeFacility_NoOverlayReturnsCollectedData(t *testing.T) {
	base := facility("vha_688", 38.9, -77.0)
	base.Services.Health = []string{"dental", "urgentCare"}

	merged := MergeFacility(base, nil, testLinksBase)

	assert.Equal(t, base, merged)
	assert.NotSame(t, base, merged)
}

func TestMergeFacility_OverlayStatusTakesPrecedence(t *testing.T) {
	base := facility("vha_688", 38.9, -77.0)

	merged := MergeFacility(base, overlayFixture(), testLinksBase)

	require.NotNil(t, merged.OperatingStatus)
	assert.Equal(t, entities.OperatingStatusLimited, merged.OperatingStatus.Code)
	assert.Equal(t, "Pharmacy closed for renovation", merged.OperatingStatus.AdditionalInfo)
	assert.Equal(t, entities.OperatingStatusNormal, base.OperatingStatus.Code)
}

func TestMergeFacility_StatusOnlyOverlayKeepsServices(t *testing.T) {
	base := facility("vha_688", 38.9, -77.0)
	base.Services.Health = []string{"dental"}
	overlay := &entities.Overlay{ID: "vha_688", OperatingStatus: &entities.OperatingStatus{Code: entities.OperatingStatusClosed}}

	merged := MergeFacility(base, overlay, testLinksBase)

	assert.Equal(t, entities.OperatingStatusClosed, merged.OperatingStatus.Code)
	assert.Equal(t, []string{"dental"}, merged.Services.Health)
	assert.Empty(t, merged.DetailedServices)
}

func TestMergeFacility_OnlyActiveDetailedServices(t *testing.T) {
	base := facility("vha_688", 38.9, -77.0)
	base.Services.Health = []string{"dental", "urgentCare"}
	base.Services.Benefits = []string{"pensions"}

	merged := MergeFacility(base, overlayFixture(), testLinksBase)

	require.Len(t, merged.DetailedServices, 2)
	assert.Equal(t, "Chaplain Services", merged.DetailedServices[0].Name)
	assert.Equal(t, "Primary Care", merged.DetailedServices[1].Name)
	assert.Equal(t, testLinksBase+"/v1/facilities/vha_688/services/primaryCare", merged.DetailedServices[1].Link)
	assert.Equal(t, testLinksBase+"/v1/facilities/vha_688/services/chaplainServices", merged.DetailedServices[0].Link)

	assert.Equal(t, []string{"primaryCare"}, merged.Services.Health)
	assert.Equal(t, []string{"pensions"}, merged.Services.Benefits)
}

func TestMergeFacility_DoesNotMutateInputs(t *testing.T) {
	base := facility("vha_688", 38.9, -77.0)
	base.Services.Health = []string{"dental"}
	overlay := overlayFixture()
	baseBefore, _ := json.Marshal(base)
	overlayBefore, _ := json.Marshal(overlay)

	_ = MergeFacility(base, overlay, testLinksBase)

	baseAfter, _ := json.Marshal(base)
	overlayAfter, _ := json.Marshal(overlay)
	assert.JSONEq(t, string(baseBefore), string(baseAfter))
	assert.JSONEq(t, string(overlayBefore), string(overlayAfter))
	assert.Empty(t, overlay.DetailedServices[0].Link)
}

func TestMergeFacility_Idempotent(t *testing.T) {
	base := facility("vha_688", 38.9, -77.0)
	base.Services.Health = []string{"dental"}
	overlay := overlayFixture()

	first, err := json.Marshal(MergeFacility(base, overlay, testLinksBase))
	require.NoError(t, err)
	second, err := json.Marshal(MergeFacility(base, overlay, testLinksBase))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestServiceLink_TrimsTrailingSlash(t *testing.T) {
	assert.Equal(t, "https://x.test/v1/facilities/vc_0101V/services/covid19Vaccine",
		ServiceLink("https://x.test/", "vc_0101V", entities.ServiceCovid19Vaccine))
}
