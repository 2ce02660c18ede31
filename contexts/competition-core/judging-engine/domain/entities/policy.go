package entities

// ScoringPolicy carries the configuration surface of the engine: arbitration
// threshold, judge staffing minimums, the promotion band, and the rank→points
// table. Values come from process configuration, never hard-coded in the
// aggregation or ranking code.
type ScoringPolicy struct {
	// ArbitrationThreshold is the absolute section-score difference between
	// two regular judges at or beyond which coordinator arbitration is
	// required. Default 5.0.
	ArbitrationThreshold float64
	// MinJudgesPerSection is the completed regular-judge count required for
	// a fully staffed section. Default 2.
	MinJudgesPerSection int
	// MinJudgesFallback applies when a jurisdiction cannot staff a full
	// panel; it is honored only when a coordinator has also completed the
	// section. Default 1.
	MinJudgesFallback int
	// PromotionBand is the number of top-ranked projects per category that
	// advance on publish, and the band within which unresolved ties block
	// publication. Default 4.
	PromotionBand int
	// PointTable maps category rank (1-based index 0) to competition
	// points. Ranks past the end of the table earn zero.
	PointTable []int
}

// DefaultPointTable is the rank→points mapping used when configuration does
// not supply one.
func DefaultPointTable() []int {
	return []int{12, 10, 8, 6}
}

// Normalize fills zero values with defaults so partially populated
// configuration never disables a rule.
func (p ScoringPolicy) Normalize() ScoringPolicy {
	if p.ArbitrationThreshold <= 0 {
		p.ArbitrationThreshold = 5.0
	}
	if p.MinJudgesPerSection <= 0 {
		p.MinJudgesPerSection = 2
	}
	if p.MinJudgesFallback <= 0 {
		p.MinJudgesFallback = 1
	}
	if p.PromotionBand <= 0 {
		p.PromotionBand = 4
	}
	if len(p.PointTable) == 0 {
		p.PointTable = DefaultPointTable()
	}
	return p
}

// PointsForRank resolves a 1-based category rank to points, with a floor of
// zero for ranks past the configured band.
func (p ScoringPolicy) PointsForRank(rank int) int {
	if rank < 1 || rank > len(p.PointTable) {
		return 0
	}
	return p.PointTable[rank-1]
}
