// Package extract pulls structured ticket fields out of assembled document
// text. Extraction is best-effort: any field that cannot be found
// stays nil and never fails the document.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Fields holds the structured values extracted from a ticket document.
// Nil means the field was not found.
type Fields struct {
	TicketNumber *string
	TicketDate   *string
	HaulVendor   *string
	TruckNumber  *string
	Material     *string
	JobNumber    *string
	PhaseCode    *string
	Zone         *string
	Hours        *float64
}

type fieldSpec struct {
	name  string
	full  *regexp.Regexp // label immediately followed by the value
	key   *regexp.Regexp // label alone, for the positional passes
	value *regexp.Regexp
}

func spec(name, labels, value string) fieldSpec {
	return fieldSpec{
		name:  name,
		full:  regexp.MustCompile(`(?i)(?:` + labels + `)\s*[:\-]?\s*(` + value + `)`),
		key:   regexp.MustCompile(`(?i)(?:` + labels + `)`),
		value: regexp.MustCompile(`(` + value + `)`),
	}
}

// Label alternations include the misspellings that show up on real scans.
var fieldSpecs = []fieldSpec{
	spec("ticket_number", `Ticket Number|Ticket#|TICKET NO|Ticket #|Inovice #|Invoice#`, `[A-Za-z0-9\-]+`),
	spec("ticket_date", `Date`, `[\d\/\-]{6,10}`),
	spec("haul_vendor", `Haul Vendor|Vendor|Broker|Trucker|Customer`, `[A-Za-z&][A-Za-z\s&]*`),
	spec("truck_number", `Truck Number|Truck No|Truck #`, `[A-Za-z0-9\-]+`),
	spec("material", `Material\s+hauled`, `[A-Za-z\d\-][A-Za-z\s\d\-]*`),
	spec("job_number", `Job Number|Job No|Job #`, `[A-Za-z0-9\-]+`),
	spec("phase_code", `Phase Code`, `[A-Za-z0-9\-]+`),
	spec("zone", `Zone`, `[A-Za-z0-9\-]+`),
	spec("hours", `Hours`, `[\d\.]+(?:\s?hrs)?`),
}

var dateFallback = regexp.MustCompile(`(\d{1,2}\/\d{1,2}\/\d{2,4}|\d{1,2}-\d{1,2}-\d{2,4})`)

// Extract runs the extraction passes over assembled document text. Rows are
// newline-separated with cells joined by " | ", which the positional passes
// rely on.
func Extract(text string) Fields {
	found := make(map[string]string, len(fieldSpecs))

	// Same-line pass over the whole text.
	for _, fs := range fieldSpecs {
		if m := fs.full.FindStringSubmatch(text); m != nil {
			if v := cleanValue(m[1]); v != "" {
				found[fs.name] = v
			}
		}
	}

	// Positional passes: value in the same cell after the label, in the
	// next cell, or on the next line below the label.
	rows := strings.Split(text, "\n")
	for _, fs := range fieldSpecs {
		if _, ok := found[fs.name]; ok {
			continue
		}
		if v := findPositional(fs, rows); v != "" {
			found[fs.name] = v
		}
	}

	// A date with no label at all is still worth keeping.
	if _, ok := found["ticket_date"]; !ok {
		if m := dateFallback.FindStringSubmatch(text); m != nil {
			if v := cleanValue(m[1]); v != "" {
				found["ticket_date"] = v
			}
		}
	}

	if v, ok := found["haul_vendor"]; ok {
		found["haul_vendor"] = strings.TrimSpace(strings.SplitN(v, "\n", 2)[0])
	}

	f := Fields{
		TicketNumber: opt(found, "ticket_number"),
		TicketDate:   opt(found, "ticket_date"),
		HaulVendor:   opt(found, "haul_vendor"),
		TruckNumber:  opt(found, "truck_number"),
		Material:     opt(found, "material"),
		JobNumber:    opt(found, "job_number"),
		PhaseCode:    opt(found, "phase_code"),
		Zone:         opt(found, "zone"),
	}
	if v, ok := found["hours"]; ok {
		f.Hours = parseHours(v)
	}
	return f
}

func findPositional(fs fieldSpec, rows []string) string {
	for i, row := range rows {
		cells := strings.Split(row, "|")
		for j, cell := range cells {
			loc := fs.key.FindStringIndex(cell)
			if loc == nil {
				continue
			}
			if m := fs.value.FindStringSubmatch(cell[loc[1]:]); m != nil {
				if v := cleanValue(m[1]); v != "" {
					return v
				}
			} else if j+1 < len(cells) {
				if m := fs.value.FindStringSubmatch(cells[j+1]); m != nil {
					if v := cleanValue(m[1]); v != "" {
						return v
					}
				}
			}
		}
		if fs.key.MatchString(row) && i+1 < len(rows) {
			if m := fs.value.FindStringSubmatch(rows[i+1]); m != nil {
				if v := cleanValue(m[1]); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

func cleanValue(v string) string {
	return strings.TrimSpace(strings.Trim(v, " :-\n\t"))
}

func parseHours(v string) *float64 {
	v = strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, v)
	h, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &h
}

func opt(m map[string]string, key string) *string {
	if v, ok := m[key]; ok {
		return &v
	}
	return nil
}
