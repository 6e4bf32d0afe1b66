package collectors

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/providers"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/facilitydirectory/pkg/utils"
)

// VastKind selects one family of stations from the VAST extract
type VastKind struct {
	Name         string
	Prefix       string
	FacilityType entities.FacilityType
	Kinds        []string
	MobileKinds  []string
}

var (
	// HealthKind covers medical centers and outpatient clinics
	HealthKind = VastKind{
		Name:         "health",
		Prefix:       entities.PrefixHealth,
		FacilityType: entities.FacilityTypeHealth,
		Kinds:        []string{"VAMC", "CBOC", "HCC", "OOS", "MVS"},
		MobileKinds:  []string{"MVS"},
	}

	// VetCenterKind covers vet centers and mobile vet centers
	VetCenterKind = VastKind{
		Name:         "vet_center",
		Prefix:       entities.PrefixVetCenter,
		FacilityType: entities.FacilityTypeVetCenter,
		Kinds:        []string{"VC", "MVC"},
		MobileKinds:  []string{"MVC"},
	}
)

// VastCollector reads stations from the upstream VAST relational extract
type VastCollector struct {
	client *postgres.Client
	db     *goqu.Database
	kind   VastKind
}

// NewHealthCollector creates the collector for vha_ facilities
func NewHealthCollector(client *postgres.Client) providers.FacilityCollector {
	return NewVastCollector(client, HealthKind)
}

// NewVetCenterCollector creates the collector for vc_ facilities
func NewVetCenterCollector(client *postgres.Client) providers.FacilityCollector {
	return NewVastCollector(client, VetCenterKind)
}

// NewVastCollector creates a collector for one station family
func NewVastCollector(client *postgres.Client, kind VastKind) *VastCollector {
	return &VastCollector{
		client: client,
		db:     goqu.New("postgres", client.DB()),
		kind:   kind,
	}
}

// Name implements FacilityCollector
func (c *VastCollector) Name() string {
	return c.kind.Name
}

var vastColumns = []interface{}{
	"station_number", "facility_kind", "name", "classification", "website",
	"latitude", "longitude", "time_zone",
	"address_1", "address_2", "address_3", "city", "state", "zip",
	"phone_main", "phone_fax", "phone_pharmacy", "phone_after_hours",
	"phone_patient_advocate", "phone_mental_health", "phone_enrollment",
	"hours_monday", "hours_tuesday", "hours_wednesday", "hours_thursday",
	"hours_friday", "hours_saturday", "hours_sunday",
	"visn", "active_status",
}

type vastRow struct {
	station, kind, name, classification, website      sql.NullString
	lat, lon                                          sql.NullFloat64
	timeZone                                          sql.NullString
	address1, address2, address3, city, state, zip    sql.NullString
	phoneMain, phoneFax, phonePharmacy, phoneAfter    sql.NullString
	phoneAdvocate, phoneMentalHealth, phoneEnrollment sql.NullString
	hours                                             [7]sql.NullString
	visn, activeStatus                                sql.NullString
}

func (r *vastRow) targets() []interface{} {
	return []interface{}{
		&r.station, &r.kind, &r.name, &r.classification, &r.website,
		&r.lat, &r.lon, &r.timeZone,
		&r.address1, &r.address2, &r.address3, &r.city, &r.state, &r.zip,
		&r.phoneMain, &r.phoneFax, &r.phonePharmacy, &r.phoneAfter,
		&r.phoneAdvocate, &r.phoneMentalHealth, &r.phoneEnrollment,
		&r.hours[0], &r.hours[1], &r.hours[2], &r.hours[3],
		&r.hours[4], &r.hours[5], &r.hours[6],
		&r.visn, &r.activeStatus,
	}
}

// Collect implements FacilityCollector
func (c *VastCollector) Collect(ctx context.Context) (*providers.Collection, error) {
	collection := &providers.Collection{}

	query, args, err := c.db.Select(vastColumns...).
		From("vast_facilities").
		Where(goqu.C("facility_kind").In(c.kind.Kinds)).
		Order(goqu.I("station_number").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", c.Name(), err)
	}

	rows, err := c.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query stations: %w", c.Name(), err)
	}
	defer rows.Close()

	byStation := make(map[string]*entities.Facility)
	for rows.Next() {
		var row vastRow
		if err := rows.Scan(row.targets()...); err != nil {
			return nil, fmt.Errorf("%s: failed to scan station: %w", c.Name(), err)
		}

		station := strings.TrimSpace(row.station.String)
		if station == "" {
			collection.Problems = append(collection.Problems,
				problem(c.Name(), "", "station number is blank", row.name.String))
			continue
		}
		id := entities.FacilityID(c.kind.Prefix, station)
		if !row.lat.Valid || !row.lon.Valid {
			collection.Problems = append(collection.Problems,
				problem(c.Name(), id, "missing coordinates", row.name.String))
			continue
		}

		facility := c.toFacility(id, &row)
		byStation[strings.ToLower(station)] = facility
		collection.Facilities = append(collection.Facilities, facility)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to iterate stations: %w", c.Name(), err)
	}

	if len(byStation) > 0 {
		if err := c.attachServices(ctx, byStation); err != nil {
			return nil, err
		}
		if err := c.attachWaitTimes(ctx, byStation); err != nil {
			return nil, err
		}
		if err := c.attachSatisfaction(ctx, byStation); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("collector", c.Name()).
		Int("facilities", len(collection.Facilities)).
		Int("problems", len(collection.Problems)).
		Msg("Collected VAST stations")

	return finish(c.Name(), collection)
}

func (c *VastCollector) toFacility(id string, row *vastRow) *entities.Facility {
	mobile := false
	for _, k := range c.kind.MobileKinds {
		if strings.EqualFold(row.kind.String, k) {
			mobile = true
		}
	}

	facility := &entities.Facility{
		ID:             id,
		Name:           utils.CollapseSpaces(row.name.String),
		FacilityType:   c.kind.FacilityType,
		Classification: utils.CollapseSpaces(row.classification.String),
		Website:        strings.TrimSpace(row.website.String),
		Latitude:       utils.RoundCoordinate(row.lat.Float64),
		Longitude:      utils.RoundCoordinate(row.lon.Float64),
		TimeZone:       strings.TrimSpace(row.timeZone.String),
		Address: entities.Addresses{
			Physical: &entities.Address{
				Address1: utils.CollapseSpaces(row.address1.String),
				Address2: utils.CollapseSpaces(row.address2.String),
				Address3: utils.CollapseSpaces(row.address3.String),
				City:     utils.CollapseSpaces(row.city.String),
				State:    strings.ToUpper(strings.TrimSpace(row.state.String)),
				Zip:      strings.TrimSpace(row.zip.String),
			},
		},
		Phone: entities.Phone{
			Main:                  utils.PhoneTrim(row.phoneMain.String),
			Fax:                   utils.PhoneTrim(row.phoneFax.String),
			Pharmacy:              utils.PhoneTrim(row.phonePharmacy.String),
			AfterHours:            utils.PhoneTrim(row.phoneAfter.String),
			PatientAdvocate:       utils.PhoneTrim(row.phoneAdvocate.String),
			MentalHealthClinic:    utils.PhoneTrim(row.phoneMentalHealth.String),
			EnrollmentCoordinator: utils.PhoneTrim(row.phoneEnrollment.String),
		},
		Hours: entities.Hours{
			Monday:    utils.NormalizeHours(row.hours[0].String),
			Tuesday:   utils.NormalizeHours(row.hours[1].String),
			Wednesday: utils.NormalizeHours(row.hours[2].String),
			Thursday:  utils.NormalizeHours(row.hours[3].String),
			Friday:    utils.NormalizeHours(row.hours[4].String),
			Saturday:  utils.NormalizeHours(row.hours[5].String),
			Sunday:    utils.NormalizeHours(row.hours[6].String),
		},
		Mobile:       &mobile,
		ActiveStatus: strings.ToUpper(strings.TrimSpace(row.activeStatus.String)),
		Visn:         strings.TrimSpace(row.visn.String),
	}
	if facility.ActiveStatus == "T" {
		facility.OperatingStatus = &entities.OperatingStatus{Code: entities.OperatingStatusClosed}
	} else {
		facility.OperatingStatus = &entities.OperatingStatus{Code: entities.OperatingStatusNormal}
	}
	return facility
}

func (c *VastCollector) attachServices(ctx context.Context, byStation map[string]*entities.Facility) error {
	query, args, err := c.db.Select("station_number", "service_name").
		From("vast_services").
		Order(goqu.I("station_number").Asc(), goqu.I("service_name").Asc()).
		ToSQL()
	if err != nil {
		return fmt.Errorf("%s: failed to build services query: %w", c.Name(), err)
	}

	rows, err := c.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: failed to query services: %w", c.Name(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var station, service string
		if err := rows.Scan(&station, &service); err != nil {
			return fmt.Errorf("%s: failed to scan service: %w", c.Name(), err)
		}
		facility, ok := byStation[strings.ToLower(strings.TrimSpace(station))]
		if !ok {
			continue
		}
		if !facility.Services.AddService(service) {
			log.Debug().Str("facility_id", facility.ID).Str("service", service).Msg("Ignoring unknown service")
		}
	}
	return rows.Err()
}

func (c *VastCollector) attachWaitTimes(ctx context.Context, byStation map[string]*entities.Facility) error {
	query, args, err := c.db.Select("station_number", "service_name", "new_wait", "established_wait", "effective_date").
		From("vast_wait_times").
		Order(goqu.I("station_number").Asc(), goqu.I("service_name").Asc()).
		ToSQL()
	if err != nil {
		return fmt.Errorf("%s: failed to build wait times query: %w", c.Name(), err)
	}

	rows, err := c.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: failed to query wait times: %w", c.Name(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			station, service string
			newWait, estWait sql.NullFloat64
			effective        sql.NullString
		)
		if err := rows.Scan(&station, &service, &newWait, &estWait, &effective); err != nil {
			return fmt.Errorf("%s: failed to scan wait time: %w", c.Name(), err)
		}
		facility, ok := byStation[strings.ToLower(strings.TrimSpace(station))]
		if !ok {
			continue
		}
		_, id, known := entities.ResolveService(service)
		if !known {
			continue
		}
		if facility.WaitTimes == nil {
			facility.WaitTimes = &entities.WaitTimes{}
		}
		facility.WaitTimes.Health = append(facility.WaitTimes.Health, entities.PatientWaitTime{
			Service:     id,
			New:         nullFloat(newWait),
			Established: nullFloat(estWait),
		})
		if effective.String > facility.WaitTimes.EffectiveDate {
			facility.WaitTimes.EffectiveDate = effective.String
			facility.Services.LastUpdated = effective.String
		}
	}
	return rows.Err()
}

func (c *VastCollector) attachSatisfaction(ctx context.Context, byStation map[string]*entities.Facility) error {
	query, args, err := c.db.Select("station_number", "survey_key", "score", "effective_date").
		From("vast_satisfaction").
		ToSQL()
	if err != nil {
		return fmt.Errorf("%s: failed to build satisfaction query: %w", c.Name(), err)
	}

	rows, err := c.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: failed to query satisfaction: %w", c.Name(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			station, key string
			score        sql.NullFloat64
			effective    sql.NullString
		)
		if err := rows.Scan(&station, &key, &score, &effective); err != nil {
			return fmt.Errorf("%s: failed to scan satisfaction: %w", c.Name(), err)
		}
		facility, ok := byStation[strings.ToLower(strings.TrimSpace(station))]
		if !ok || !score.Valid {
			continue
		}
		if facility.Satisfaction == nil {
			facility.Satisfaction = &entities.Satisfaction{Health: map[string]float64{}}
		}
		facility.Satisfaction.Health[strings.TrimSpace(key)] = score.Float64
		if effective.String > facility.Satisfaction.EffectiveDate {
			facility.Satisfaction.EffectiveDate = effective.String
		}
	}
	return rows.Err()
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
