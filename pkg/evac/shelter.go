// Package evac implements evacuation target selection: a roster of
// shelters loaded from CSV and a nearest-feasible selector that routes a
// distress call to the safest reachable shelter.
package evac

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Shelter is one evacuation target from the roster.
type Shelter struct {
	Name     string
	Lat      float64
	Lon      float64
	Capacity int
	Kind     string
	Address  string
}

// LoadRoster reads the shelter roster CSV: name, lat, lon, capacity, kind,
// address. A header row is detected and skipped; malformed rows are dropped
// with their index reported in the returned warnings, never fatal.
func LoadRoster(path string) ([]Shelter, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("evac: open roster: %w", err)
	}
	defer f.Close()

	return parseRoster(f)
}

func parseRoster(r io.Reader) ([]Shelter, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var shelters []Shelter
	var warnings []string

	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("evac: parse roster: %w", err)
		}
		row++

		if row == 1 && looksLikeHeader(record) {
			continue
		}

		s, err := parseShelterRow(record)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d dropped: %v", row, err))
			continue
		}
		shelters = append(shelters, s)
	}

	if len(shelters) == 0 {
		return nil, warnings, fmt.Errorf("evac: roster has no usable shelters")
	}
	return shelters, warnings, nil
}

func looksLikeHeader(record []string) bool {
	if len(record) < 2 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	return err != nil
}

func parseShelterRow(record []string) (Shelter, error) {
	if len(record) < 4 {
		return Shelter{}, fmt.Errorf("expected at least 4 fields, got %d", len(record))
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil {
		return Shelter{}, fmt.Errorf("invalid lat: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return Shelter{}, fmt.Errorf("invalid lon: %w", err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Shelter{}, fmt.Errorf("coordinates out of range")
	}

	capacity, err := strconv.Atoi(strings.TrimSpace(record[3]))
	if err != nil || capacity < 0 {
		return Shelter{}, fmt.Errorf("invalid capacity")
	}

	s := Shelter{
		Name:     strings.TrimSpace(record[0]),
		Lat:      lat,
		Lon:      lon,
		Capacity: capacity,
	}
	if s.Name == "" {
		return Shelter{}, fmt.Errorf("empty name")
	}
	if len(record) > 4 {
		s.Kind = strings.TrimSpace(record[4])
	}
	if len(record) > 5 {
		s.Address = strings.TrimSpace(record[5])
	}
	return s, nil
}
