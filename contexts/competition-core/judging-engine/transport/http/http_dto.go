package http

type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type AssignJudgeRequest struct {
	JudgeID  string `json:"judge_id"`
	Category string `json:"category"`
	Section  string `json:"section"`
	Level    string `json:"level"`
}

type AssignJudgeResponse struct {
	AssignmentIDs []string `json:"assignment_ids"`
	Role          string   `json:"role"`
}

type StartScoringRequest struct {
	JudgeID string `json:"judge_id"`
}

type SubmitScoreRequest struct {
	JudgeID   string             `json:"judge_id"`
	Breakdown map[string]float64 `json:"breakdown"`
	Comments  string             `json:"comments,omitempty"`
}

type AssignmentResponse struct {
	AssignmentID string  `json:"assignment_id"`
	ProjectID    string  `json:"project_id"`
	JudgeID      string  `json:"judge_id"`
	Category     string  `json:"category"`
	Section      string  `json:"section"`
	Level        string  `json:"level"`
	Status       string  `json:"status"`
	Score        float64 `json:"score"`
	Archived     bool    `json:"archived"`
}

type ProjectScoreResponse struct {
	ProjectID        string   `json:"project_id"`
	Level            string   `json:"level"`
	SectionA         *float64 `json:"section_a_score"`
	SectionBC        *float64 `json:"section_bc_score"`
	Total            float64  `json:"total_score"`
	FullyJudged      bool     `json:"is_fully_judged"`
	NeedsArbitration bool     `json:"needs_arbitration"`
}

type RankedProjectItem struct {
	ProjectID string  `json:"project_id"`
	Title     string  `json:"title"`
	Category  string  `json:"category"`
	School    string  `json:"school"`
	Total     float64 `json:"total_score"`
	Rank      int     `json:"rank"`
	Points    int     `json:"points"`
}

type RankedEntityItem struct {
	Name        string `json:"name"`
	TotalPoints int    `json:"total_points"`
	Rank        int    `json:"rank"`
}

type TieGroupItem struct {
	Category   string   `json:"category"`
	Rank       int      `json:"rank"`
	ProjectIDs []string `json:"project_ids"`
}

type RankingResponse struct {
	Level         string              `json:"level"`
	Projects      []RankedProjectItem `json:"projects"`
	TiesToResolve []TieGroupItem      `json:"ties_to_resolve,omitempty"`
	Schools       []RankedEntityItem  `json:"school_ranking"`
	Zones         []RankedEntityItem  `json:"zone_ranking"`
	SubCounties   []RankedEntityItem  `json:"sub_county_ranking"`
	Counties      []RankedEntityItem  `json:"county_ranking"`
	Regions       []RankedEntityItem  `json:"region_ranking"`
}

type TieBreakRequest struct {
	ProjectID string  `json:"project_id"`
	Override  float64 `json:"override_score"`
}

type PublishResponse struct {
	Level         string              `json:"level"`
	Final         bool                `json:"final"`
	Promoted      map[string][]string `json:"promoted_project_ids"`
	Eliminated    map[string][]string `json:"eliminated_project_ids"`
	ArchivedCount int                 `json:"archived_count"`
}

type ConflictSweepResponse struct {
	Level        string `json:"level"`
	FlaggedCount int    `json:"flagged_count"`
}

type CategoryReadinessItem struct {
	Category string         `json:"category"`
	State    string         `json:"state"`
	Blockers []string       `json:"blockers,omitempty"`
	Ties     []TieGroupItem `json:"ties,omitempty"`
}

type ReadinessResponse struct {
	Level      string                  `json:"level"`
	Categories []CategoryReadinessItem `json:"categories"`
}
