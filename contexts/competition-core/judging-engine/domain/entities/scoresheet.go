package entities

import "strings"

// Criterion is one scored line of a section's score sheet.
type Criterion struct {
	Key   string
	Label string
	Max   float64
	Step  float64
}

// ScoreSheet is the per-category criterion definition a submitted breakdown
// is validated against. Sheets are configuration; categories without an
// explicit sheet use the standard one.
type ScoreSheet struct {
	Category string
	Criteria map[Section][]Criterion
}

// MaxForSection is the sum of criterion maxima for a section.
func (s ScoreSheet) MaxForSection(section Section) float64 {
	var total float64
	for _, criterion := range s.Criteria[section] {
		total += criterion.Max
	}
	return total
}

// Categories are the fixed project domains of the competition.
func Categories() []string {
	return []string{
		"agriculture",
		"applied_technology",
		"behavioural_science",
		"biology_biotechnology",
		"chemistry",
		"computer_science",
		"energy_transportation",
		"engineering",
		"environmental_science",
		"food_technology",
		"mathematical_science",
		"physics",
		"robotics",
	}
}

// IsKnownCategory reports whether the category is one of the fixed domains.
func IsKnownCategory(category string) bool {
	category = strings.ToLower(strings.TrimSpace(category))
	for _, known := range Categories() {
		if known == category {
			return true
		}
	}
	return false
}

var standardSheet = ScoreSheet{
	Criteria: map[Section][]Criterion{
		SectionPartA: {
			{Key: "creativity", Label: "Creativity and originality", Max: 10, Step: 0.5},
			{Key: "scientific_thought", Label: "Scientific thought and method", Max: 10, Step: 0.5},
			{Key: "thoroughness", Label: "Thoroughness of investigation", Max: 10, Step: 0.5},
		},
		SectionPartBC: {
			{Key: "communication", Label: "Oral communication", Max: 15, Step: 0.5},
			{Key: "presentation", Label: "Display and presentation", Max: 15, Step: 0.5},
			{Key: "teamwork", Label: "Teamwork and understanding", Max: 10, Step: 0.5},
		},
	},
}

var roboticsSheet = ScoreSheet{
	Category: "robotics",
	Criteria: map[Section][]Criterion{
		SectionPartA: {
			{Key: "design", Label: "Mechanical and electronic design", Max: 15, Step: 0.5},
			{Key: "programming", Label: "Programming and autonomy", Max: 10, Step: 0.5},
			{Key: "innovation", Label: "Innovation", Max: 5, Step: 0.5},
		},
		SectionPartBC: {
			{Key: "demonstration", Label: "Live demonstration", Max: 20, Step: 0.5},
			{Key: "communication", Label: "Oral communication", Max: 10, Step: 0.5},
			{Key: "teamwork", Label: "Teamwork and understanding", Max: 10, Step: 0.5},
		},
	},
}

// SheetForCategory resolves the score sheet for a category, applying any
// configured overrides before the built-in defaults.
func SheetForCategory(category string, overrides map[string]ScoreSheet) ScoreSheet {
	category = strings.ToLower(strings.TrimSpace(category))
	if sheet, ok := overrides[category]; ok {
		return sheet
	}
	if category == "robotics" {
		return roboticsSheet
	}
	sheet := standardSheet
	sheet.Category = category
	return sheet
}
