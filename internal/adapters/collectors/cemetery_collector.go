package collectors

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/providers"
	"github.com/zatekoja/facilitydirectory/pkg/utils"
)

// CemeteryCollector reads cemeteries from an XML feed. National and state
// cemeteries share the feed layout and differ by file and id prefix.
type CemeteryCollector struct {
	source         providers.ReferenceSource
	name           string
	file           string
	prefix         string
	classification string
}

// NewCemeteryCollector creates the collector for nca_ facilities
func NewCemeteryCollector(source providers.ReferenceSource) providers.FacilityCollector {
	return &CemeteryCollector{
		source:         source,
		name:           "cemetery",
		file:           CemeteriesFile,
		prefix:         entities.PrefixCemetery,
		classification: "National Cemetery",
	}
}

// NewStateCemeteryCollector creates the collector for nca_s_ facilities
func NewStateCemeteryCollector(source providers.ReferenceSource) providers.FacilityCollector {
	return &CemeteryCollector{
		source:         source,
		name:           "state_cemetery",
		file:           StateCemeteriesFile,
		prefix:         entities.PrefixStateCemetery,
		classification: "State Cemetery",
	}
}

// Name implements FacilityCollector
func (c *CemeteryCollector) Name() string {
	return c.name
}

type cemeteryFeed struct {
	XMLName    xml.Name      `xml:"cems"`
	Cemeteries []cemeteryXML `xml:"cem"`
}

type cemeteryXML struct {
	Station      string `xml:"station"`
	Name         string `xml:"cem_name"`
	Type         string `xml:"cem_type"`
	URL          string `xml:"cem_url"`
	Address1     string `xml:"address_line1"`
	Address2     string `xml:"address_line2"`
	Address3     string `xml:"address_line3"`
	City         string `xml:"city"`
	State        string `xml:"state"`
	Zip          string `xml:"zip"`
	MailAddress1 string `xml:"mail_line1"`
	MailAddress2 string `xml:"mail_line2"`
	MailCity     string `xml:"mail_city"`
	MailState    string `xml:"mail_state"`
	MailZip      string `xml:"mail_zip"`
	Phone        string `xml:"phone"`
	Fax          string `xml:"fax"`
	Lat          string `xml:"lat"`
	Long         string `xml:"long"`
	HoursWeekday string `xml:"hours_weekday"`
	HoursWeekend string `xml:"hours_weekend"`
}

// Collect implements FacilityCollector
func (c *CemeteryCollector) Collect(ctx context.Context) (*providers.Collection, error) {
	data, err := readReference(ctx, c.source, c.file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}

	var feed cemeteryFeed
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("%s: malformed %s: %w", c.Name(), c.file, err)
	}

	collection := &providers.Collection{}
	for i := range feed.Cemeteries {
		cem := &feed.Cemeteries[i]
		facility, desc := c.toFacility(cem)
		if desc != "" {
			id := ""
			if station := strings.TrimSpace(cem.Station); station != "" {
				id = entities.FacilityID(c.prefix, station)
			}
			collection.Problems = append(collection.Problems, problem(c.Name(), id, desc, cem.Name))
			continue
		}
		collection.Facilities = append(collection.Facilities, facility)
	}

	log.Info().
		Str("collector", c.Name()).
		Int("facilities", len(collection.Facilities)).
		Int("problems", len(collection.Problems)).
		Msg("Collected cemeteries")

	return finish(c.Name(), collection)
}

func (c *CemeteryCollector) toFacility(cem *cemeteryXML) (*entities.Facility, string) {
	station := strings.TrimSpace(cem.Station)
	if station == "" {
		return nil, "station number is blank"
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(cem.Lat), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(cem.Long), 64)
	if errLat != nil || errLon != nil {
		return nil, "missing coordinates"
	}

	weekday := utils.NormalizeHours(cem.HoursWeekday)
	weekend := utils.NormalizeHours(cem.HoursWeekend)
	mobile := false

	facility := &entities.Facility{
		ID:             entities.FacilityID(c.prefix, station),
		Name:           utils.CollapseSpaces(cem.Name),
		FacilityType:   entities.FacilityTypeCemetery,
		Classification: utils.FirstNonBlank(cem.Type, c.classification),
		Website:        strings.TrimSpace(cem.URL),
		Latitude:       utils.RoundCoordinate(lat),
		Longitude:      utils.RoundCoordinate(lon),
		Address: entities.Addresses{
			Physical: &entities.Address{
				Address1: utils.CollapseSpaces(cem.Address1),
				Address2: utils.CollapseSpaces(cem.Address2),
				Address3: utils.CollapseSpaces(cem.Address3),
				City:     utils.CollapseSpaces(cem.City),
				State:    strings.ToUpper(strings.TrimSpace(cem.State)),
				Zip:      strings.TrimSpace(cem.Zip),
			},
		},
		Phone: entities.Phone{
			Main: utils.PhoneTrim(cem.Phone),
			Fax:  utils.PhoneTrim(cem.Fax),
		},
		Hours: entities.Hours{
			Monday:    weekday,
			Tuesday:   weekday,
			Wednesday: weekday,
			Thursday:  weekday,
			Friday:    weekday,
			Saturday:  weekend,
			Sunday:    weekend,
		},
		OperatingStatus: &entities.OperatingStatus{Code: entities.OperatingStatusNormal},
		Mobile:          &mobile,
	}

	if !utils.IsBlank(cem.MailAddress1) {
		facility.Address.Mailing = &entities.Address{
			Address1: utils.CollapseSpaces(cem.MailAddress1),
			Address2: utils.CollapseSpaces(cem.MailAddress2),
			City:     utils.CollapseSpaces(cem.MailCity),
			State:    strings.ToUpper(strings.TrimSpace(cem.MailState)),
			Zip:      strings.TrimSpace(cem.MailZip),
		}
	}

	return facility, ""
}
