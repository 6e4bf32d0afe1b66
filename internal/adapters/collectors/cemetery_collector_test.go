package collectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
)

const cemeteriesXML = `<?xml version="1.0" encoding="UTF-8"?>
<cems>
  <cem>
    <station>907</station>
    <cem_name>Arlington  National Cemetery</cem_name>
    <cem_url>https://www.cem.va.gov/cems/nchp/arlington.asp</cem_url>
    <address_line1>1 Memorial Ave</address_line1>
    <city>Arlington</city>
    <state>va</state>
    <zip>22211</zip>
    <mail_line1>PO Box 1</mail_line1>
    <mail_city>Arlington</mail_city>
    <mail_state>VA</mail_state>
    <mail_zip>22211</mail_zip>
    <phone>877-907-8585</phone>
    <lat>38.8783</lat>
    <long>-77.0687</long>
    <hours_weekday>8:00am - 5:00pm</hours_weekday>
    <hours_weekend>closed</hours_weekend>
  </cem>
  <cem>
    <station>908</station>
    <cem_name>No Coordinates Cemetery</cem_name>
  </cem>
</cems>`

func TestCemeteryCollector_Collect(t *testing.T) {
	src := &fakeSource{files: map[string]string{CemeteriesFile: cemeteriesXML}}

	collection, err := NewCemeteryCollector(src).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, collection.Facilities, 1)
	require.Len(t, collection.Problems, 1)

	f := collection.Facilities[0]
	assert.Equal(t, "nca_907", f.ID)
	assert.Equal(t, "Arlington National Cemetery", f.Name)
	assert.Equal(t, entities.FacilityTypeCemetery, f.FacilityType)
	assert.Equal(t, "National Cemetery", f.Classification)
	assert.Equal(t, "VA", f.Address.Physical.State)
	require.NotNil(t, f.Address.Mailing)
	assert.Equal(t, "PO Box 1", f.Address.Mailing.Address1)
	assert.Equal(t, "8:00AM-5:00PM", f.Hours.Friday)
	assert.Equal(t, "Closed", f.Hours.Sunday)

	assert.Equal(t, "nca_908", collection.Problems[0].FacilityID)
	assert.Equal(t, "cemetery", collection.Problems[0].Collector)
}

func TestStateCemeteryCollector_UsesStatePrefix(t *testing.T) {
	src := &fakeSource{files: map[string]string{StateCemeteriesFile: cemeteriesXML}}

	collection, err := NewStateCemeteryCollector(src).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "nca_s_907", collection.Facilities[0].ID)
}

func TestCemeteryCollector_MalformedFeed(t *testing.T) {
	src := &fakeSource{files: map[string]string{CemeteriesFile: "<cems><cem>"}}

	_, err := NewCemeteryCollector(src).Collect(context.Background())
	assert.ErrorContains(t, err, "malformed")
}

func TestCemeteryCollector_EmptyFeed(t *testing.T) {
	src := &fakeSource{files: map[string]string{CemeteriesFile: "<cems></cems>"}}

	_, err := NewCemeteryCollector(src).Collect(context.Background())
	assert.ErrorIs(t, err, ErrNoEntries)
}
