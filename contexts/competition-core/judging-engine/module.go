package judgingengine

import (
	"log/slog"
	"time"

	httpadapter "galileo/contexts/competition-core/judging-engine/adapters/http"
	"galileo/contexts/competition-core/judging-engine/adapters/memory"
	"galileo/contexts/competition-core/judging-engine/application/commands"
	"galileo/contexts/competition-core/judging-engine/application/queries"
	"galileo/contexts/competition-core/judging-engine/application/workers"
	"galileo/contexts/competition-core/judging-engine/domain/entities"
	"galileo/contexts/competition-core/judging-engine/ports"
)

type Module struct {
	Handler        httpadapter.Handler
	TimeoutSweeper workers.SessionTimeoutSweeper
	AuditRelay     workers.AuditRelay
	Store          *memory.Store
}

type Dependencies struct {
	Projects    ports.ProjectRepository
	Assignments ports.AssignmentRepository
	Judges      ports.JudgeDirectory
	States      ports.PublishStateRepository
	Promotions  ports.PromotionStore
	Locks       ports.ScopeLocker
	Audit       ports.AuditWriter
	AuditOutbox ports.AuditOutbox
	Publisher   ports.EventPublisher
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Policy      entities.ScoringPolicy
	Sheets      map[string]entities.ScoreSheet
	MinDwell    time.Duration
	MaxDwell    time.Duration
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	policy := deps.Policy.Normalize()

	allocateUseCase := commands.AllocateUseCase{
		Projects:    deps.Projects,
		Assignments: deps.Assignments,
		Judges:      deps.Judges,
		Locks:       deps.Locks,
		Audit:       deps.Audit,
		Clock:       deps.Clock,
		IDGen:       deps.IDGen,
		Logger:      deps.Logger,
	}
	scoringUseCase := commands.ScoringUseCase{
		Projects:    deps.Projects,
		Assignments: deps.Assignments,
		Judges:      deps.Judges,
		Locks:       deps.Locks,
		Audit:       deps.Audit,
		Clock:       deps.Clock,
		Logger:      deps.Logger,
		Sheets:      deps.Sheets,
		MinDwell:    deps.MinDwell,
	}
	scoreUseCase := queries.ScoreUseCase{
		Projects:    deps.Projects,
		Assignments: deps.Assignments,
		Judges:      deps.Judges,
		Policy:      policy,
	}
	rankUseCase := queries.RankUseCase{
		Projects:    deps.Projects,
		Assignments: deps.Assignments,
		Judges:      deps.Judges,
		Policy:      policy,
	}
	promotionUseCase := commands.PromotionUseCase{
		Projects:    deps.Projects,
		Assignments: deps.Assignments,
		Judges:      deps.Judges,
		States:      deps.States,
		Promotions:  deps.Promotions,
		Rankings:    rankUseCase,
		Locks:       deps.Locks,
		Audit:       deps.Audit,
		Clock:       deps.Clock,
		Policy:      policy,
		Logger:      deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			Allocation: allocateUseCase,
			Scoring:    scoringUseCase,
			Promotion:  promotionUseCase,
			Scores:     scoreUseCase,
			Rankings:   rankUseCase,
			Logger:     deps.Logger,
		},
		TimeoutSweeper: workers.SessionTimeoutSweeper{
			Assignments: deps.Assignments,
			Audit:       deps.Audit,
			Clock:       deps.Clock,
			MaxDwell:    deps.MaxDwell,
			Logger:      deps.Logger,
		},
		AuditRelay: workers.AuditRelay{
			Outbox:    deps.AuditOutbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
	}
}

func NewInMemoryModule(publisher ports.EventPublisher, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Projects:    store,
		Assignments: store,
		Judges:      store,
		States:      store,
		Promotions:  store,
		Locks:       store,
		Audit:       store,
		AuditOutbox: store,
		Publisher:   publisher,
		Clock:       store,
		IDGen:       store,
		Policy:      entities.ScoringPolicy{},
		MinDwell:    2 * time.Minute,
		MaxDwell:    2 * time.Hour,
		Logger:      logger,
	})
	module.Store = store
	return module
}
