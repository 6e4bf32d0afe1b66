package render

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
)

const listSeparator = ";"

// csvColumn reads and writes one CSV column of a facility
type csvColumn struct {
	name string
	get  func(f *entities.Facility) string
	set  func(f *entities.Facility, v string) error
}

func status(f *entities.Facility) *entities.OperatingStatus {
	if f.OperatingStatus == nil {
		f.OperatingStatus = &entities.OperatingStatus{}
	}
	return f.OperatingStatus
}

// column is a plain text column. Empty cells leave the field unset.
func column(name string, get func(f *entities.Facility) string, set func(f *entities.Facility, v string)) csvColumn {
	return csvColumn{
		name: name,
		get:  get,
		set: func(f *entities.Facility, v string) error {
			if v != "" {
				set(f, v)
			}
			return nil
		},
	}
}

// addressColumns maps one of the two addresses. pick returns the address,
// creating it when create is set.
func addressColumns(prefix string, pick func(f *entities.Facility, create bool) *entities.Address) []csvColumn {
	var cols []csvColumn
	for _, part := range []struct {
		name  string
		field func(a *entities.Address) *string
	}{
		{"address_1", func(a *entities.Address) *string { return &a.Address1 }},
		{"address_2", func(a *entities.Address) *string { return &a.Address2 }},
		{"address_3", func(a *entities.Address) *string { return &a.Address3 }},
		{"city", func(a *entities.Address) *string { return &a.City }},
		{"state", func(a *entities.Address) *string { return &a.State }},
		{"zip", func(a *entities.Address) *string { return &a.Zip }},
	} {
		cols = append(cols, column(prefix+part.name,
			func(f *entities.Facility) string {
				if a := pick(f, false); a != nil {
					return *part.field(a)
				}
				return ""
			},
			func(f *entities.Facility, v string) { *part.field(pick(f, true)) = v }))
	}
	return cols
}

func physicalAddress(f *entities.Facility, create bool) *entities.Address {
	if f.Address.Physical == nil && create {
		f.Address.Physical = &entities.Address{}
	}
	return f.Address.Physical
}

func mailingAddress(f *entities.Facility, create bool) *entities.Address {
	if f.Address.Mailing == nil && create {
		f.Address.Mailing = &entities.Address{}
	}
	return f.Address.Mailing
}

func floatColumn(name string, pick func(f *entities.Facility) *float64) csvColumn {
	return csvColumn{
		name: name,
		get: func(f *entities.Facility) string {
			return strconv.FormatFloat(*pick(f), 'f', -1, 64)
		},
		set: func(f *entities.Facility, v string) error {
			if v == "" {
				return nil
			}
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*pick(f) = n
			return nil
		},
	}
}

func listColumn(name string, pick func(f *entities.Facility) *[]string) csvColumn {
	return csvColumn{
		name: name,
		get: func(f *entities.Facility) string {
			return strings.Join(*pick(f), listSeparator)
		},
		set: func(f *entities.Facility, v string) error {
			if v != "" {
				*pick(f) = strings.Split(v, listSeparator)
			}
			return nil
		},
	}
}

var csvColumns = buildColumns()

func buildColumns() []csvColumn {
	cols := []csvColumn{
		column("id", func(f *entities.Facility) string { return f.ID }, func(f *entities.Facility, v string) { f.ID = v }),
		column("name", func(f *entities.Facility) string { return f.Name }, func(f *entities.Facility, v string) { f.Name = v }),
		floatColumn("latitude", func(f *entities.Facility) *float64 { return &f.Latitude }),
		floatColumn("longitude", func(f *entities.Facility) *float64 { return &f.Longitude }),
		column("facility_type",
			func(f *entities.Facility) string { return string(f.FacilityType) },
			func(f *entities.Facility, v string) { f.FacilityType = entities.FacilityType(v) }),
		column("classification", func(f *entities.Facility) string { return f.Classification }, func(f *entities.Facility, v string) { f.Classification = v }),
		column("website", func(f *entities.Facility) string { return f.Website }, func(f *entities.Facility, v string) { f.Website = v }),
		{
			name: "mobile",
			get: func(f *entities.Facility) string {
				if f.Mobile == nil {
					return ""
				}
				return strconv.FormatBool(*f.Mobile)
			},
			set: func(f *entities.Facility, v string) error {
				if v == "" {
					return nil
				}
				b, err := strconv.ParseBool(v)
				if err != nil {
					return fmt.Errorf("mobile: %w", err)
				}
				f.Mobile = &b
				return nil
			},
		},
		column("active_status", func(f *entities.Facility) string { return f.ActiveStatus }, func(f *entities.Facility, v string) { f.ActiveStatus = v }),
		column("visn", func(f *entities.Facility) string { return f.Visn }, func(f *entities.Facility, v string) { f.Visn = v }),
	}
	cols = append(cols, addressColumns("physical_", physicalAddress)...)
	cols = append(cols, addressColumns("mailing_", mailingAddress)...)

	for _, p := range []struct {
		name string
		pick func(f *entities.Facility) *string
	}{
		{"phone_main", func(f *entities.Facility) *string { return &f.Phone.Main }},
		{"phone_fax", func(f *entities.Facility) *string { return &f.Phone.Fax }},
		{"phone_pharmacy", func(f *entities.Facility) *string { return &f.Phone.Pharmacy }},
		{"phone_after_hours", func(f *entities.Facility) *string { return &f.Phone.AfterHours }},
		{"phone_patient_advocate", func(f *entities.Facility) *string { return &f.Phone.PatientAdvocate }},
		{"phone_mental_health_clinic", func(f *entities.Facility) *string { return &f.Phone.MentalHealthClinic }},
		{"phone_enrollment_coordinator", func(f *entities.Facility) *string { return &f.Phone.EnrollmentCoordinator }},
		{"hours_monday", func(f *entities.Facility) *string { return &f.Hours.Monday }},
		{"hours_tuesday", func(f *entities.Facility) *string { return &f.Hours.Tuesday }},
		{"hours_wednesday", func(f *entities.Facility) *string { return &f.Hours.Wednesday }},
		{"hours_thursday", func(f *entities.Facility) *string { return &f.Hours.Thursday }},
		{"hours_friday", func(f *entities.Facility) *string { return &f.Hours.Friday }},
		{"hours_saturday", func(f *entities.Facility) *string { return &f.Hours.Saturday }},
		{"hours_sunday", func(f *entities.Facility) *string { return &f.Hours.Sunday }},
	} {
		cols = append(cols, column(p.name,
			func(f *entities.Facility) string { return *p.pick(f) },
			func(f *entities.Facility, v string) { *p.pick(f) = v }))
	}

	cols = append(cols,
		column("operating_status_code",
			func(f *entities.Facility) string {
				if f.OperatingStatus == nil {
					return ""
				}
				return string(f.OperatingStatus.Code)
			},
			func(f *entities.Facility, v string) { status(f).Code = entities.OperatingStatusCode(v) }),
		column("operating_status_additional_info",
			func(f *entities.Facility) string {
				if f.OperatingStatus == nil {
					return ""
				}
				return f.OperatingStatus.AdditionalInfo
			},
			func(f *entities.Facility, v string) { status(f).AdditionalInfo = v }),
		listColumn("services_health", func(f *entities.Facility) *[]string { return &f.Services.Health }),
		listColumn("services_benefits", func(f *entities.Facility) *[]string { return &f.Services.Benefits }),
		listColumn("services_other", func(f *entities.Facility) *[]string { return &f.Services.Other }),
	)
	return cols
}

// CSVHeaders returns the column names in output order
func CSVHeaders() []string {
	headers := make([]string, len(csvColumns))
	for i, c := range csvColumns {
		headers[i] = c.name
	}
	return headers
}

// CSV renders facilities as a header row plus one row per facility
func CSV(facilities []*entities.Facility) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeaders()); err != nil {
		return nil, err
	}
	row := make([]string, len(csvColumns))
	for _, f := range facilities {
		for i, c := range csvColumns {
			row[i] = c.get(f)
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write facility %s: %w", f.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseCSV reads rows written by CSV. Columns are matched by header name, so
// unknown columns are ignored.
func ParseCSV(r io.Reader) ([]*entities.Facility, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	byName := make(map[string]csvColumn, len(csvColumns))
	for _, c := range csvColumns {
		byName[c.name] = c
	}

	var out []*entities.Facility
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		f := &entities.Facility{}
		for i, name := range header {
			c, ok := byName[name]
			if !ok || i >= len(record) {
				continue
			}
			if err := c.set(f, record[i]); err != nil {
				return nil, fmt.Errorf("row %d: %w", line, err)
			}
		}
		out = append(out, f)
	}
}
