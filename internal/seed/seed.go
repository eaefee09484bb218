// Package seed bootstraps the default tenant with the system object types,
// their baseline property definitions and the standard sales pipeline.
package seed

import (
	"context"
	"fmt"

	"github.com/recordkit/recordkit/internal/engine"
)

// Seed loads the standard schema into the default tenant. It is idempotent —
// anything that already exists is left untouched. Call order matters: object
// types first, then properties, then pipelines.
func Seed(ctx context.Context, eng *engine.Engine) error {
	if err := Types(ctx, eng); err != nil {
		return fmt.Errorf("seed object types: %w", err)
	}
	if err := Properties(ctx, eng); err != nil {
		return fmt.Errorf("seed properties: %w", err)
	}
	if err := Pipelines(ctx, eng); err != nil {
		return fmt.Errorf("seed pipelines: %w", err)
	}
	return nil
}
