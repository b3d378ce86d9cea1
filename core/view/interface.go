// Package view implements the page-level CRUD orchestrator: it loads a
// schema, drives the generic query protocol, feeds the reference resolver,
// and routes user mutations through local validation and the write path. One
// View instance serves one schema view; switching schemas constructs fresh
// per-view state.
package view

import (
	"context"

	"github.com/avasel/go-facet/core/query"
	"github.com/avasel/go-facet/core/schema"
)

// MetadataService is the metadata collaborator: schema definitions by tenant
// and name.
type MetadataService interface {
	GetSchema(ctx context.Context, tenant, schemaName string) (*schema.Schema, error)
}

// DataService is the generic, schema-agnostic data collaborator. The engine
// treats its transport as an opaque authenticated-call capability; session
// refresh and retry are the collaborator's concern.
type DataService interface {
	Search(ctx context.Context, tenant, schemaName string, wire query.WireQuery) (*schema.Page, error)
	Create(ctx context.Context, tenant, schemaName string, data map[string]any) (*schema.Record, error)
	Update(ctx context.Context, tenant, schemaName string, id int64, data map[string]any) (*schema.Record, error)
	Delete(ctx context.Context, tenant, schemaName string, id int64) error
}
