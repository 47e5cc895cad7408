package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"courtbook/pkg/model"
	"courtbook/pkg/sanitizer"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseCourts reads a comma separated list of id:Name pairs.
func ParseCourts(raw string) ([]model.Court, error) {
	var courts []model.Court
	seen := make(map[string]bool)
	for _, entry := range splitList(raw) {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("court %q must be in id:Name format", entry)
		}
		id, name := sanitizer.NormalizeID(parts[0]), sanitizer.NormalizeName(parts[1])
		if id == "" || name == "" {
			return nil, fmt.Errorf("court %q must have a non-empty id and name", entry)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate court id %q", id)
		}
		seen[id] = true
		courts = append(courts, model.Court{ID: id, Name: name})
	}
	if len(courts) == 0 {
		return nil, fmt.Errorf("at least one court is required")
	}
	return courts, nil
}

// ParseSports reads a comma separated list of id:Name:pricePerHour triples.
func ParseSports(raw string) ([]model.Sport, error) {
	var sports []model.Sport
	seen := make(map[string]bool)
	for _, entry := range splitList(raw) {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("sport %q must be in id:Name:price format", entry)
		}
		id, name := sanitizer.NormalizeID(parts[0]), sanitizer.NormalizeName(parts[1])
		if id == "" || name == "" {
			return nil, fmt.Errorf("sport %q must have a non-empty id and name", entry)
		}
		price, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
		if err != nil || price <= 0 {
			return nil, fmt.Errorf("sport %q must have a positive whole price", entry)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate sport id %q", id)
		}
		seen[id] = true
		sports = append(sports, model.Sport{ID: id, Name: name, PricePerHour: price})
	}
	if len(sports) == 0 {
		return nil, fmt.Errorf("at least one sport is required")
	}
	return sports, nil
}

func ParseWeekday(raw string) (time.Weekday, error) {
	day, ok := weekdays[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", raw)
	}
	return day, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
