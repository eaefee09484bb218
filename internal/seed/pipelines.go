package seed

import (
	"context"
	"fmt"

	"github.com/recordkit/recordkit/internal/domain"
	"github.com/recordkit/recordkit/internal/engine"
)

// systemPipelines are the pipelines every fresh install starts with. The
// proposal_sent gate is the reference example of required-field enforcement:
// a deal cannot enter that stage until amount and close_date are set.
var systemPipelines = []*domain.Pipeline{
	{
		Name:       "sales",
		Label:      "Sales Pipeline",
		ObjectType: "deal",
		Stages: []domain.Stage{
			{Name: "qualified", Label: "Qualified", Position: 1, Probability: 20, Type: domain.StageOpen},
			{Name: "proposal_sent", Label: "Proposal Sent", Position: 2, Probability: 60, Type: domain.StageOpen, RequiredFields: []string{"amount", "close_date"}},
			{Name: "closed_won", Label: "Closed Won", Position: 3, Probability: 100, Type: domain.StageWon},
			{Name: "closed_lost", Label: "Closed Lost", Position: 4, Probability: 0, Type: domain.StageLost},
		},
	},
	{
		Name:       "support",
		Label:      "Support Pipeline",
		ObjectType: "ticket",
		Stages: []domain.Stage{
			{Name: "new", Label: "New", Position: 1, Probability: 0, Type: domain.StageOpen},
			{Name: "waiting_on_contact", Label: "Waiting on contact", Position: 2, Probability: 0, Type: domain.StageOpen},
			{Name: "waiting_on_us", Label: "Waiting on us", Position: 3, Probability: 0, Type: domain.StageOpen},
			{Name: "resolved", Label: "Resolved", Position: 4, Probability: 100, Type: domain.StageWon},
		},
	},
}

// Pipelines defines the standard pipelines. Existing pipelines are skipped.
func Pipelines(ctx context.Context, eng *engine.Engine) error {
	for _, p := range systemPipelines {
		_, err := eng.GetPipeline(ctx, domain.DefaultTenant, p.Name)
		if err == nil {
			continue
		}
		if domain.ErrorCode(err) != domain.CodeNotFound {
			return fmt.Errorf("look up pipeline %q: %w", p.Name, err)
		}
		if _, err := eng.DefinePipeline(ctx, domain.DefaultTenant, p); err != nil {
			return fmt.Errorf("define pipeline %q: %w", p.Name, err)
		}
	}
	return nil
}
