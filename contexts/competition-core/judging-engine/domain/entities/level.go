package entities

import "strings"

// CompetitionLevel is the ordered sequence of competition stages. All
// promotion and filtering logic compares levels by order, never by name.
type CompetitionLevel int

const (
	LevelSubCounty CompetitionLevel = iota
	LevelCounty
	LevelRegional
	LevelNational
)

func (l CompetitionLevel) String() string {
	switch l {
	case LevelSubCounty:
		return "sub_county"
	case LevelCounty:
		return "county"
	case LevelRegional:
		return "regional"
	case LevelNational:
		return "national"
	default:
		return "unknown"
	}
}

// Next returns the following level in the fixed sequence. The second return
// is false at the terminal NATIONAL level.
func (l CompetitionLevel) Next() (CompetitionLevel, bool) {
	if l >= LevelNational {
		return l, false
	}
	return l + 1, true
}

// IsValid reports whether the value is one of the four known stages.
func (l CompetitionLevel) IsValid() bool {
	return l >= LevelSubCounty && l <= LevelNational
}

// ParseLevel maps wire names to levels.
func ParseLevel(raw string) (CompetitionLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sub_county", "subcounty", "sub-county":
		return LevelSubCounty, true
	case "county":
		return LevelCounty, true
	case "regional", "region":
		return LevelRegional, true
	case "national":
		return LevelNational, true
	default:
		return LevelSubCounty, false
	}
}
