package seed

import (
	"context"
	"fmt"

	"github.com/recordkit/recordkit/internal/domain"
	"github.com/recordkit/recordkit/internal/engine"
)

// systemTypes are the object types every fresh install starts with. Allowed
// associations are declared on the source type; the inverse name is what the
// link is called when read from the target side.
var systemTypes = []*domain.ObjectType{
	{
		InternalName:         "contact",
		Label:                "Contact",
		PluralLabel:          "Contacts",
		RecordPrefix:         "CONT",
		DisplayProperty:      "email",
		IsSystem:             true,
		Features:             domain.TypeFeatures{Audit: true, Workflows: true},
		SearchableProperties: []string{"email", "firstname", "lastname"},
		AllowedAssociations: []domain.AllowedAssociation{
			{Name: "company", TargetType: "company", InverseName: "contacts", Multiple: false},
		},
	},
	{
		InternalName:         "company",
		Label:                "Company",
		PluralLabel:          "Companies",
		RecordPrefix:         "COMP",
		DisplayProperty:      "name",
		IsSystem:             true,
		Features:             domain.TypeFeatures{Audit: true, Workflows: true},
		SearchableProperties: []string{"name", "domain"},
	},
	{
		InternalName:         "deal",
		Label:                "Deal",
		PluralLabel:          "Deals",
		RecordPrefix:         "DEAL",
		DisplayProperty:      "dealname",
		IsSystem:             true,
		Features:             domain.TypeFeatures{Audit: true, Workflows: true, Pipelines: true},
		SearchableProperties: []string{"dealname"},
		AllowedAssociations: []domain.AllowedAssociation{
			{Name: "company", TargetType: "company", InverseName: "deals", Multiple: false},
			{Name: "contacts", TargetType: "contact", InverseName: "deals", Multiple: true},
		},
	},
	{
		InternalName:         "ticket",
		Label:                "Ticket",
		PluralLabel:          "Tickets",
		RecordPrefix:         "TICK",
		DisplayProperty:      "subject",
		IsSystem:             true,
		Features:             domain.TypeFeatures{Audit: true, Workflows: true, Pipelines: true},
		SearchableProperties: []string{"subject"},
		AllowedAssociations: []domain.AllowedAssociation{
			{Name: "contact", TargetType: "contact", InverseName: "tickets", Multiple: false},
			{Name: "company", TargetType: "company", InverseName: "tickets", Multiple: false},
		},
	},
}

// Types defines the system object types. Existing types are skipped.
func Types(ctx context.Context, eng *engine.Engine) error {
	for _, t := range systemTypes {
		_, err := eng.GetObjectType(ctx, domain.DefaultTenant, t.InternalName)
		if err == nil {
			continue
		}
		if domain.ErrorCode(err) != domain.CodeUnknownType {
			return fmt.Errorf("look up type %q: %w", t.InternalName, err)
		}
		if _, err := eng.DefineObjectType(ctx, domain.DefaultTenant, t); err != nil {
			return fmt.Errorf("define type %q: %w", t.InternalName, err)
		}
	}
	return nil
}
