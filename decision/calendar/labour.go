package calendar

import (
	"sort"
	"strings"
	"time"
)

// LabourHoliday is a fixed-date ILWU/port holiday that affects port costs.
type LabourHoliday struct {
	Name  string
	Month time.Month
	Day   int
	Note  string
}

// UpcomingHoliday is one dated occurrence of a labour holiday.
type UpcomingHoliday struct {
	Name string `json:"name"`
	Date string `json:"date"`
	Note string `json:"note"`
}

var baseLabourHolidays = []LabourHoliday{
	{"New Year's Day", time.January, 1, "ILWU/PMA paid holiday; most terminals closed or at premium rates."},
	{"Cesar Chavez Day", time.March, 31, "ILWU paid holiday; California ports often run reduced gangs or overtime."},
	{"Juneteenth", time.June, 19, "Recognized ILWU/PMA holiday; many terminals operate at holiday rates."},
	{"Independence Day", time.July, 4, "US federal holiday; longshore work typically at premium or shut down."},
	{"Bloody Thursday", time.July, 5, "ILWU no-work holiday; West Coast ports routinely shut down for 24 hours."},
	{"Harry Bridges' Birthday", time.July, 28, "ILWU paid holiday; work usually at overtime rates where performed."},
	{"Veterans Day", time.November, 11, "ILWU paid holiday; many terminals treat as overtime/limited operations."},
	{"Christmas Eve", time.December, 24, "Work restrictions and shortened shifts; evening work typically at premium."},
	{"Christmas Day", time.December, 25, "ILWU no-work holiday; terminals effectively closed except emergencies."},
	{"New Year's Eve", time.December, 31, "Work restrictions from afternoon onward; premium rates for night work."},
}

// All West Coast ILWU zones share the same fixed-date structure.
var labourTemplates = map[string][]LabourHoliday{
	"SOCAL":    baseLabourHolidays,
	"NORCAL":   baseLabourHolidays,
	"PUGET":    baseLabourHolidays,
	"COLUMBIA": baseLabourHolidays,
	"INLAND":   baseLabourHolidays,
}

// DefaultUpcomingLimit is the listing size when the caller passes limit <= 0.
const DefaultUpcomingLimit = 4

// Upcoming returns labour holidays on or after from, across from's year and
// the next, sorted by date. Unknown zones are treated like SOCAL.
func Upcoming(zone string, from time.Time, limit int) []UpcomingHoliday {
	zone = strings.ToUpper(strings.TrimSpace(zone))
	if zone == "" {
		return []UpcomingHoliday{}
	}
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	templates, ok := labourTemplates[zone]
	if !ok {
		templates = labourTemplates["SOCAL"]
	}

	today := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	out := make([]UpcomingHoliday, 0, len(templates)*2)
	for _, h := range templates {
		for _, year := range []int{today.Year(), today.Year() + 1} {
			d := time.Date(year, h.Month, h.Day, 0, 0, 0, 0, time.UTC)
			if d.Before(today) {
				continue
			}
			out = append(out, UpcomingHoliday{Name: h.Name, Date: d.Format("2006-01-02"), Note: h.Note})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
