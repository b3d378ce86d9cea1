package reference

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/avasel/go-facet/core/schema"
	"github.com/avasel/go-facet/core/widget"
	"go.uber.org/zap"
)

// Source answers batched label lookups: the display-field values for a set of
// record ids in one target schema. Implementations ride the generic data
// service's search endpoint with an `id.in` filter.
type Source interface {
	Labels(ctx context.Context, targetSchema, displayField string, ids []int64) (map[int64]string, error)
}

// ResolutionError reports the target schemas whose batch lookups failed
// during one resolve cycle. It is degraded-mode information: affected cells
// fall back to the raw id, and the error never blocks rendering of rows
// referencing other schemas.
type ResolutionError struct {
	Failed map[string]error
}

func (e *ResolutionError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("reference resolution failed for %d target schema(s): %v", len(names), names)
}

// Unwrap exposes the underlying lookup errors.
func (e *ResolutionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// Resolver populates a view's cache from a Source.
type Resolver struct {
	cache  *Cache
	source Source
	logger *zap.Logger
}

// NewResolver creates a resolver bound to one view's cache. A nil logger
// defaults to a no-op logger.
func NewResolver(cache *Cache, source Source, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{cache: cache, source: source, logger: logger}
}

// batch is the pending work for one target schema in a resolve cycle.
type batch struct {
	displayField string
	ids          []int64
	seen         map[int64]struct{}
}

// Resolve scans rows for reference-typed fields, collects the distinct
// foreign ids not already cached per target schema, and issues exactly one
// batched lookup per distinct target schema. For a page of R rows with F
// reference fields spanning T distinct target schemas this performs at most
// T round trips, never O(R×F).
//
// Ids the lookup does not return get an unknown sentinel so they are not
// re-requested. A failed lookup for one target schema does not block the
// others; failures are logged and summarized in a non-blocking
// ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, rows []schema.Record, fields []schema.Field) error {
	batches := r.collect(rows, fields)
	if len(batches) == 0 {
		return nil
	}

	failed := make(map[string]error)
	for target, b := range batches {
		labels, err := r.source.Labels(ctx, target, b.displayField, b.ids)
		if err != nil {
			r.logger.Warn("reference batch lookup failed",
				zap.String("targetSchema", target),
				zap.Int("ids", len(b.ids)),
				zap.Error(err))
			failed[target] = err
			continue
		}

		for _, id := range b.ids {
			if label, ok := labels[id]; ok {
				r.cache.Put(target, id, label)
			} else {
				r.cache.PutUnknown(target, id)
			}
		}
	}

	if len(failed) > 0 {
		return &ResolutionError{Failed: failed}
	}
	return nil
}

// collect gathers per-target-schema id sets, deduplicated across rows and
// across fields sharing a target, skipping ids already cached. When two
// fields reference the same schema through different display fields, the
// first-declared field's display field wins for the cycle; the invariant is
// one lookup per target schema.
func (r *Resolver) collect(rows []schema.Record, fields []schema.Field) map[string]*batch {
	batches := make(map[string]*batch)

	for _, f := range fields {
		if f.Type != schema.FieldTypeReference || f.RelatedSchema == "" {
			continue
		}

		b := batches[f.RelatedSchema]
		if b == nil {
			b = &batch{displayField: f.RelatedDisplayField, seen: make(map[int64]struct{})}
			batches[f.RelatedSchema] = b
		}

		for _, row := range rows {
			raw, exists := row.Data[f.Name]
			if !exists || raw == nil {
				continue
			}
			id, err := decodeID(raw)
			if err != nil {
				r.logger.Debug("skipping malformed reference id",
					zap.String("field", f.Name), zap.Any("value", raw))
				continue
			}
			if _, dup := b.seen[id]; dup {
				continue
			}
			if _, cached := r.cache.Lookup(f.RelatedSchema, id); cached {
				continue
			}
			b.seen[id] = struct{}{}
			b.ids = append(b.ids, id)
		}
	}

	for target, b := range batches {
		if len(b.ids) == 0 {
			delete(batches, target)
		}
	}
	return batches
}

func decodeID(raw any) (int64, error) {
	v, err := widget.Decode(schema.Field{Type: schema.FieldTypeReference}, raw)
	if err != nil {
		return 0, err
	}
	id, ok := v.(int64)
	if !ok {
		return 0, errors.New("reference value is not an id")
	}
	return id, nil
}

// DisplayLabel renders a reference cell from the cache: the resolved label
// when present and found, otherwise the raw id as a degraded fallback.
func DisplayLabel(cache *Cache, targetSchema string, raw any) string {
	if raw == nil {
		return ""
	}
	id, err := decodeID(raw)
	if err != nil || cache == nil {
		return fmt.Sprint(raw)
	}
	if entry, ok := cache.Lookup(targetSchema, id); ok && entry.Found {
		return entry.Label
	}
	return fmt.Sprint(raw)
}
