package seed

import (
	"context"
	"fmt"

	"github.com/recordkit/recordkit/internal/domain"
	"github.com/recordkit/recordkit/internal/engine"
)

func f64(v float64) *float64 { return &v }

// systemProperties lists the baseline definitions per type. The deal stage
// options must stay in step with the sales pipeline's stage names: direct
// property writes validate against these options, transitions against the
// pipeline.
var systemProperties = []struct {
	objectType string
	defs       []domain.PropertyDefinition
}{
	{
		objectType: "contact",
		defs: []domain.PropertyDefinition{
			{Name: "email", Label: "Email", DataType: domain.TypeString, Unique: true},
			{Name: "firstname", Label: "First name", DataType: domain.TypeString},
			{Name: "lastname", Label: "Last name", DataType: domain.TypeString},
			{Name: "phone", Label: "Phone number", DataType: domain.TypeString},
			{Name: "lifecycle_stage", Label: "Lifecycle stage", DataType: domain.TypeSelect, Options: []domain.SelectOption{
				{Value: "lead", Label: "Lead", DisplayOrder: 1},
				{Value: "customer", Label: "Customer", DisplayOrder: 2},
				{Value: "evangelist", Label: "Evangelist", DisplayOrder: 3},
			}},
		},
	},
	{
		objectType: "company",
		defs: []domain.PropertyDefinition{
			{Name: "name", Label: "Name", DataType: domain.TypeString, Required: true},
			{Name: "domain", Label: "Company domain", DataType: domain.TypeString, Unique: true},
			{Name: "city", Label: "City", DataType: domain.TypeString},
			{Name: "industry", Label: "Industry", DataType: domain.TypeString},
		},
	},
	{
		objectType: "deal",
		defs: []domain.PropertyDefinition{
			{Name: "dealname", Label: "Deal name", DataType: domain.TypeString, Required: true},
			{Name: "amount", Label: "Amount", DataType: domain.TypeNumber, Rules: domain.ValidationRules{Min: f64(0)}},
			{Name: "close_date", Label: "Close date", DataType: domain.TypeDate},
			{Name: domain.PropStage, Label: "Stage", DataType: domain.TypeSelect, Options: []domain.SelectOption{
				{Value: "qualified", Label: "Qualified", DisplayOrder: 1},
				{Value: "proposal_sent", Label: "Proposal Sent", DisplayOrder: 2},
				{Value: "closed_won", Label: "Closed Won", DisplayOrder: 3},
				{Value: "closed_lost", Label: "Closed Lost", DisplayOrder: 4},
			}},
			{Name: domain.PropProbability, Label: "Probability", DataType: domain.TypeNumber, Rules: domain.ValidationRules{Min: f64(0), Max: f64(100)}},
			{Name: "primary_company", Label: "Primary company", DataType: domain.TypeReference, ReferencedType: "company"},
		},
	},
	{
		objectType: "ticket",
		defs: []domain.PropertyDefinition{
			{Name: "subject", Label: "Subject", DataType: domain.TypeString, Required: true},
			{Name: "content", Label: "Description", DataType: domain.TypeString},
			{Name: domain.PropStage, Label: "Status", DataType: domain.TypeSelect, Options: []domain.SelectOption{
				{Value: "new", Label: "New", DisplayOrder: 1},
				{Value: "waiting_on_contact", Label: "Waiting on contact", DisplayOrder: 2},
				{Value: "waiting_on_us", Label: "Waiting on us", DisplayOrder: 3},
				{Value: "resolved", Label: "Resolved", DisplayOrder: 4},
			}},
			{Name: "priority", Label: "Priority", DataType: domain.TypeSelect, Options: []domain.SelectOption{
				{Value: "low", Label: "Low", DisplayOrder: 1},
				{Value: "medium", Label: "Medium", DisplayOrder: 2},
				{Value: "high", Label: "High", DisplayOrder: 3},
			}},
		},
	},
}

// Properties defines the baseline property definitions for each system type.
// Definitions already present in the schema are skipped.
func Properties(ctx context.Context, eng *engine.Engine) error {
	for _, group := range systemProperties {
		schema, err := eng.GetSchema(ctx, domain.DefaultTenant, group.objectType)
		if err != nil {
			return fmt.Errorf("schema for %q: %w", group.objectType, err)
		}
		for i := range group.defs {
			def := group.defs[i]
			if schema.Property(def.Name) != nil {
				continue
			}
			def.ObjectType = group.objectType
			if _, err := eng.DefineProperty(ctx, domain.DefaultTenant, &def); err != nil {
				return fmt.Errorf("define property %s.%s: %w", group.objectType, def.Name, err)
			}
		}
	}
	return nil
}
