package collectors

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/providers"
	"github.com/zatekoja/facilitydirectory/pkg/utils"
)

// BenefitsCollector reads regional benefits offices from a CSV reference file.
// Columns are located by header name. Any column whose header names a
// benefits service is treated as a YES/NO flag for that service.
type BenefitsCollector struct {
	source providers.ReferenceSource
	file   string
}

// NewBenefitsCollector creates the collector for vba_ facilities
func NewBenefitsCollector(source providers.ReferenceSource) providers.FacilityCollector {
	return &BenefitsCollector{source: source, file: BenefitsFile}
}

// Name implements FacilityCollector
func (c *BenefitsCollector) Name() string {
	return "benefits"
}

type benefitsRecord struct {
	header map[string]int
	fields []string
}

func (r benefitsRecord) get(column string) string {
	i, ok := r.header[column]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// Collect implements FacilityCollector
func (c *BenefitsCollector) Collect(ctx context.Context) (*providers.Collection, error) {
	data, err := readReference(ctx, c.source, c.file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headerRow, err := reader.Read()
	if err == io.EOF {
		return finish(c.Name(), &providers.Collection{})
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read header: %w", c.Name(), err)
	}

	header := make(map[string]int, len(headerRow))
	serviceColumns := make(map[int]string)
	for i, h := range headerRow {
		key := utils.NormalizeKey(h)
		header[key] = i
		if category, id, ok := entities.ResolveService(h); ok && category == entities.ServiceCategoryBenefits {
			serviceColumns[i] = id
		}
	}

	collection := &providers.Collection{}
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			collection.Problems = append(collection.Problems, problem(c.Name(), "", "unreadable CSV row", err.Error()))
			continue
		}

		rec := benefitsRecord{header: header, fields: fields}
		facility, desc := c.toFacility(rec, serviceColumns)
		if desc != "" {
			id := ""
			if station := rec.get("facilitynumber"); station != "" {
				id = entities.FacilityID(entities.PrefixBenefits, station)
			}
			collection.Problems = append(collection.Problems, problem(c.Name(), id, desc, strings.Join(fields, ",")))
			continue
		}
		collection.Facilities = append(collection.Facilities, facility)
	}

	log.Info().
		Str("collector", c.Name()).
		Int("facilities", len(collection.Facilities)).
		Int("problems", len(collection.Problems)).
		Msg("Collected benefits offices")

	return finish(c.Name(), collection)
}

func (c *BenefitsCollector) toFacility(rec benefitsRecord, serviceColumns map[int]string) (*entities.Facility, string) {
	station := rec.get("facilitynumber")
	if station == "" {
		return nil, "facility number is blank"
	}
	lat, errLat := strconv.ParseFloat(rec.get("lat"), 64)
	lon, errLon := strconv.ParseFloat(rec.get("long"), 64)
	if errLat != nil || errLon != nil {
		return nil, "missing coordinates"
	}

	mobile := false
	facility := &entities.Facility{
		ID:             entities.FacilityID(entities.PrefixBenefits, station),
		Name:           utils.CollapseSpaces(rec.get("facilityname")),
		FacilityType:   entities.FacilityTypeBenefits,
		Classification: utils.CollapseSpaces(rec.get("facilitytype")),
		Website:        rec.get("website"),
		Latitude:       utils.RoundCoordinate(lat),
		Longitude:      utils.RoundCoordinate(lon),
		Address: entities.Addresses{
			Physical: &entities.Address{
				Address1: utils.CollapseSpaces(rec.get("address1")),
				Address2: utils.CollapseSpaces(rec.get("address2")),
				City:     utils.CollapseSpaces(rec.get("city")),
				State:    strings.ToUpper(rec.get("state")),
				Zip:      rec.get("zip"),
			},
		},
		Phone: entities.Phone{
			Main: utils.PhoneTrim(rec.get("phone")),
			Fax:  utils.PhoneTrim(rec.get("fax")),
		},
		Hours: entities.Hours{
			Monday:    utils.NormalizeHours(rec.get("monday")),
			Tuesday:   utils.NormalizeHours(rec.get("tuesday")),
			Wednesday: utils.NormalizeHours(rec.get("wednesday")),
			Thursday:  utils.NormalizeHours(rec.get("thursday")),
			Friday:    utils.NormalizeHours(rec.get("friday")),
			Saturday:  utils.NormalizeHours(rec.get("saturday")),
			Sunday:    utils.NormalizeHours(rec.get("sunday")),
		},
		OperatingStatus: &entities.OperatingStatus{Code: entities.OperatingStatusNormal},
		Mobile:          &mobile,
	}

	for i, id := range serviceColumns {
		if i < len(rec.fields) && isYes(rec.fields[i]) {
			facility.Services.AddService(id)
		}
	}
	sort.Strings(facility.Services.Benefits)

	return facility, ""
}

func isYes(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "YES", "Y", "TRUE", "1":
		return true
	}
	return false
}
