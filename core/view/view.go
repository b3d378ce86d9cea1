package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/avasel/go-facet/core/query"
	"github.com/avasel/go-facet/core/reference"
	"github.com/avasel/go-facet/core/schema"
	"github.com/avasel/go-facet/core/widget"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the orchestrator's lifecycle state.
type State string

const (
	StateIdle          State = "idle"
	StateSchemaLoading State = "schema-loading"
	StateReady         State = "ready"
	StateQuerying      State = "querying"
	StateMutating      State = "mutating"
	StateSchemaError   State = "schema-error"
)

// DefaultPageSize is the page size a freshly loaded view starts with.
const DefaultPageSize = 10

// Option configures a View at construction.
type Option func(*View)

// WithLogger sets the view's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(v *View) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithPageSize sets the page size used when a schema is loaded.
func WithPageSize(size int) Option {
	return func(v *View) {
		if size > 0 {
			v.defaultPageSize = size
		}
	}
}

// View orchestrates one schema view: it owns the schema, the query
// descriptor, the page of rows, and the reference cache, and it exposes the
// action handlers a presentation layer binds to. All collaborators are
// injected capabilities; nothing is looked up ambiently.
type View struct {
	meta            MetadataService
	data            DataService
	logger          *zap.Logger
	bus             *events.TypedEventBus[Event]
	defaultPageSize int

	mu         sync.Mutex
	state      State
	generation uint64
	tenant     string
	schemaName string
	schema     *schema.Schema
	validator  *Validator
	descriptor query.Descriptor
	rows       []schema.Record
	total      int64
	totalPages int
	cache      *reference.Cache
	resolver   *reference.Resolver
	lastErr    error
	announced  State

	resolveWG sync.WaitGroup

	subMu         sync.RWMutex
	subscriptions map[string]*SubscriptionInfo
}

// New creates a view bound to its metadata and data collaborators. The view
// starts Idle; Load activates it for a schema.
func New(meta MetadataService, data DataService, opts ...Option) (*View, error) {
	bus, err := events.NewTypedEventBus[Event](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}

	v := &View{
		meta:            meta,
		data:            data,
		logger:          zap.NewNop(),
		bus:             bus,
		defaultPageSize: DefaultPageSize,
		state:           StateIdle,
		subscriptions:   make(map[string]*SubscriptionInfo),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Load fetches the named schema and runs the initial query. It increments the
// view's generation; completions of any operation started before this call
// are discarded when they arrive, so a schema switch during an in-flight
// fetch can never apply stale data.
func (v *View) Load(ctx context.Context, tenant, schemaName string) error {
	start := time.Now()

	v.mu.Lock()
	v.generation++
	gen := v.generation
	v.state = StateSchemaLoading
	v.tenant = tenant
	v.schemaName = schemaName
	v.mu.Unlock()
	v.emit(createEvent(SchemaLoadStart, "load", schemaName, StateSchemaLoading, nil, nil, start))

	s, err := v.meta.GetSchema(ctx, tenant, schemaName)

	v.mu.Lock()
	if gen != v.generation {
		v.mu.Unlock()
		return nil
	}
	if err != nil {
		loadErr := err
		var notFound *SchemaNotFoundError
		if !errors.As(err, &notFound) {
			loadErr = &SchemaNotFoundError{Tenant: tenant, Name: schemaName, Err: err}
		}
		v.state = StateSchemaError
		v.lastErr = loadErr
		v.mu.Unlock()
		v.emit(createEvent(SchemaLoadFailed, "load", schemaName, StateSchemaError, nil, loadErr, start))
		return loadErr
	}

	// Fresh per-view state: the reference cache is scoped to this schema
	// view, so entries from the previous schema cannot leak into the new one.
	v.schema = s
	v.validator = NewValidator(s)
	v.cache = reference.NewCache()
	v.resolver = reference.NewResolver(v.cache, &dataSource{data: v.data, tenant: tenant}, v.logger)
	v.descriptor = query.Descriptor{Page: 0, PageSize: v.defaultPageSize}
	v.rows = nil
	v.total = 0
	v.totalPages = 0
	v.lastErr = nil
	v.mu.Unlock()
	v.emit(createEvent(SchemaLoadSuccess, "load", schemaName, StateQuerying, nil, nil, start))

	return v.runQuery(ctx, gen)
}

// Search replaces the filter set and re-queries from the first page.
func (v *View) Search(ctx context.Context, filters []query.Filter) error {
	v.mu.Lock()
	if v.schema == nil {
		v.mu.Unlock()
		return errNotLoaded
	}
	gen := v.generation
	v.descriptor.Filters = filters
	v.descriptor.Page = 0
	v.mu.Unlock()
	return v.runQuery(ctx, gen)
}

// SortBy changes the sort and re-queries from the first page. A field the
// schema no longer declares is tolerated; the builder drops the stale sort.
func (v *View) SortBy(ctx context.Context, field string, direction query.SortDirection) error {
	v.mu.Lock()
	if v.schema == nil {
		v.mu.Unlock()
		return errNotLoaded
	}
	gen := v.generation
	v.descriptor.SortField = field
	v.descriptor.SortDirection = direction
	v.descriptor.Page = 0
	v.mu.Unlock()
	return v.runQuery(ctx, gen)
}

// Paginate moves to the given 0-based page and re-queries. Pages beyond the
// last valid page are clamped after the fetch reports the real total.
func (v *View) Paginate(ctx context.Context, page int) error {
	v.mu.Lock()
	if v.schema == nil {
		v.mu.Unlock()
		return errNotLoaded
	}
	gen := v.generation
	if page < 0 {
		page = 0
	}
	v.descriptor.Page = page
	v.mu.Unlock()
	return v.runQuery(ctx, gen)
}

// Create validates locally, writes through the data service, and re-queries
// from page 0 so the new record is visible under recency-default sorting.
// Invalid payloads never reach the network; the returned error carries the
// offending field names.
func (v *View) Create(ctx context.Context, data map[string]any) error {
	return v.mutate(ctx, "create", data, false, false, func(ctx context.Context, tenant, name string, payload map[string]any) error {
		_, err := v.data.Create(ctx, tenant, name, payload)
		return err
	})
}

// Update validates locally, writes through the data service, and refreshes
// the current page at the current filter/sort/page state.
func (v *View) Update(ctx context.Context, id int64, data map[string]any) error {
	return v.mutate(ctx, "update", data, true, true, func(ctx context.Context, tenant, name string, payload map[string]any) error {
		_, err := v.data.Update(ctx, tenant, name, id, payload)
		return err
	})
}

// Delete removes a record and refreshes the current page; deleting the last
// row of the last page clamps back to the new last page.
func (v *View) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	v.mu.Lock()
	if v.schema == nil {
		v.mu.Unlock()
		return errNotLoaded
	}
	gen := v.generation
	s := v.schema
	tenant, name := v.tenant, v.schemaName
	v.state = StateMutating
	v.mu.Unlock()
	v.emit(createEvent(MutateStart, "delete", name, StateMutating, id, nil, start))

	err := v.data.Delete(ctx, tenant, name, id)

	v.mu.Lock()
	if gen != v.generation {
		v.mu.Unlock()
		return nil
	}
	if err != nil {
		mapped := mapWriteError("delete", err, s)
		v.state = StateReady
		v.lastErr = mapped
		v.mu.Unlock()
		v.emit(createEvent(MutateFailed, "delete", name, StateReady, id, mapped, start))
		return mapped
	}
	v.cache.InvalidateSchema(name)
	v.mu.Unlock()
	v.emit(createEvent(MutateSuccess, "delete", name, StateQuerying, id, nil, start))

	return v.runQuery(ctx, gen)
}

// Schema returns the active schema, or nil before Load succeeds.
func (v *View) Schema() *schema.Schema {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.schema
}

// Rows returns the current page of records.
func (v *View) Rows() []schema.Record {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]schema.Record, len(v.rows))
	copy(out, v.rows)
	return out
}

// State returns the current lifecycle state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Err returns the most recent error surfaced by a transition, or nil.
func (v *View) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

// Total returns the server-reported total element count.
func (v *View) Total() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.total
}

// TotalPages returns the number of pages at the current page size.
func (v *View) TotalPages() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalPages
}

// Descriptor returns the current query descriptor.
func (v *View) Descriptor() query.Descriptor {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.descriptor
}

// Cache exposes the view's reference cache for the rendering layer. The
// cache is owned by this view and must not outlive it.
func (v *View) Cache() *reference.Cache {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cache
}

// Label renders one field of a record for display: resolved reference labels
// when available, the raw value otherwise.
func (v *View) Label(f schema.Field, rec schema.Record) string {
	v.mu.Lock()
	cache := v.cache
	v.mu.Unlock()

	value := rec.Data[f.Name]
	if f.Type == schema.FieldTypeReference && cache != nil {
		return reference.DisplayLabel(cache, f.RelatedSchema, value)
	}
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

// Settle blocks until any in-flight reference resolution has settled.
// Rendering never requires this; it exists for callers that need a stable
// snapshot, such as tests.
func (v *View) Settle() {
	v.resolveWG.Wait()
}

// RegisterSubscription subscribes a callback to a view event type and returns
// a handle for unregistering it.
func (v *View) RegisterSubscription(options RegisterSubscriptionOptions) string {
	v.subMu.Lock()
	defer v.subMu.Unlock()

	unsubscribe := v.bus.Subscribe(string(options.Event), options.Callback)
	id := uuid.New().String()

	v.subscriptions[id] = &SubscriptionInfo{
		ID:          id,
		Event:       options.Event,
		Unsubscribe: unsubscribe,
		Label:       options.Label,
		Description: options.Description,
	}
	return id
}

// UnregisterSubscription removes a subscription by its handle.
func (v *View) UnregisterSubscription(id string) {
	v.subMu.Lock()
	defer v.subMu.Unlock()
	if info, ok := v.subscriptions[id]; ok {
		info.Unsubscribe()
		delete(v.subscriptions, id)
	}
}

var errNotLoaded = errors.New("no schema loaded")

// runQuery executes the current descriptor against the data service and
// applies the result if the view's generation still matches gen. On failure
// the previous page's rows stay rendered and the error is retryable.
func (v *View) runQuery(ctx context.Context, gen uint64) error {
	start := time.Now()

	v.mu.Lock()
	if gen != v.generation {
		v.mu.Unlock()
		return nil
	}
	v.state = StateQuerying
	d := v.descriptor
	s := v.schema
	tenant, name := v.tenant, v.schemaName
	v.mu.Unlock()
	v.emit(createEvent(QueryStart, "query", name, StateQuerying, d, nil, start))

	page, err := v.data.Search(ctx, tenant, name, query.Build(d, s))

	v.mu.Lock()
	if gen != v.generation {
		v.mu.Unlock()
		return nil
	}
	if err != nil {
		fetchErr := &TransientFetchError{Op: "search", Err: err}
		v.state = StateReady
		v.lastErr = fetchErr
		v.mu.Unlock()
		v.emit(createEvent(QueryFailed, "query", name, StateReady, d, fetchErr, start))
		return fetchErr
	}

	// Clamp a request past the last page to the last valid page and re-query
	// once, instead of flashing an empty result.
	if len(page.Content) == 0 && page.TotalElements > 0 && d.Page > 0 {
		last := lastPage(page.TotalElements, d.PageSize, page.TotalPages)
		if last != d.Page {
			v.descriptor.Page = last
			v.mu.Unlock()
			return v.runQuery(ctx, gen)
		}
	}

	v.rows = page.Content
	v.total = page.TotalElements
	v.totalPages = page.TotalPages
	if v.totalPages == 0 && d.PageSize > 0 {
		v.totalPages = int((page.TotalElements + int64(d.PageSize) - 1) / int64(d.PageSize))
	}
	v.state = StateReady
	v.lastErr = nil
	rows := page.Content
	fields := s.Fields
	resolver := v.resolver
	v.mu.Unlock()
	v.emit(createEvent(QuerySuccess, "query", name, StateReady, d, nil, start))

	v.resolveAsync(ctx, gen, resolver, rows, fields, name)
	return nil
}

// resolveAsync kicks off reference resolution in the background. Rendering
// proceeds immediately with raw-id placeholders; cells update in place once
// resolution settles and the ReferencesResolved event fires. Resolution
// errors are degraded-mode only and never reach the view's error state.
func (v *View) resolveAsync(ctx context.Context, gen uint64, resolver *reference.Resolver, rows []schema.Record, fields []schema.Field, schemaName string) {
	if resolver == nil || len(rows) == 0 {
		return
	}
	start := time.Now()
	v.resolveWG.Add(1)
	go func() {
		defer v.resolveWG.Done()
		if err := resolver.Resolve(ctx, rows, fields); err != nil {
			v.logger.Warn("reference resolution degraded", zap.String("schema", schemaName), zap.Error(err))
		}

		v.mu.Lock()
		stale := gen != v.generation
		v.mu.Unlock()
		if stale {
			return
		}
		v.emit(createEvent(ReferencesResolved, "resolve", schemaName, StateReady, nil, nil, start))
	}()
}

// mutate is the shared write path for create and update: local validation
// first, then the network, then a refresh of the same descriptor (page 0 for
// create).
func (v *View) mutate(ctx context.Context, op string, data map[string]any, keepPage, loose bool, write func(ctx context.Context, tenant, name string, payload map[string]any) error) error {
	start := time.Now()

	v.mu.Lock()
	if v.schema == nil {
		v.mu.Unlock()
		return errNotLoaded
	}
	gen := v.generation
	s := v.schema
	validator := v.validator
	tenant, name := v.tenant, v.schemaName
	v.mu.Unlock()

	// Local validation gates the network: a missing required field or bad
	// value is attached to its exact field and the write never leaves the
	// process.
	if ok, issues := validator.Validate(data, loose); !ok {
		verr := schema.FromIssues(issues)
		v.emit(createEvent(MutateFailed, op, name, StateReady, data, verr, start))
		return verr
	}
	payload, err := widget.EncodeValues(s, data)
	if err != nil {
		verr := &schema.ValidationError{Message: err.Error(), Fields: map[string]string{}}
		v.emit(createEvent(MutateFailed, op, name, StateReady, data, verr, start))
		return verr
	}

	v.mu.Lock()
	if gen != v.generation {
		v.mu.Unlock()
		return nil
	}
	v.state = StateMutating
	v.mu.Unlock()
	v.emit(createEvent(MutateStart, op, name, StateMutating, payload, nil, start))

	writeErr := write(ctx, tenant, name, payload)

	v.mu.Lock()
	if gen != v.generation {
		v.mu.Unlock()
		return nil
	}
	if writeErr != nil {
		mapped := mapWriteError(op, writeErr, s)
		v.state = StateReady
		v.lastErr = mapped
		v.mu.Unlock()
		v.emit(createEvent(MutateFailed, op, name, StateReady, payload, mapped, start))
		return mapped
	}

	// The written schema may itself be a reference target of this view;
	// conservatively drop its cached labels.
	v.cache.InvalidateSchema(name)
	if !keepPage {
		v.descriptor.Page = 0
	}
	v.mu.Unlock()
	v.emit(createEvent(MutateSuccess, op, name, StateQuerying, payload, nil, start))

	return v.runQuery(ctx, gen)
}

// mapWriteError normalizes a data service write failure into the error
// taxonomy. Server validation errors are remapped onto declared schema
// fields; keys the schema does not declare collapse into the general message.
func mapWriteError(op string, err error, s *schema.Schema) error {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return remapServerFields(verr, s)
	}
	var conflict *WriteConflictError
	if errors.As(err, &conflict) {
		return conflict
	}
	return &TransientFetchError{Op: op, Err: err}
}

func remapServerFields(verr *schema.ValidationError, s *schema.Schema) *schema.ValidationError {
	out := &schema.ValidationError{Message: verr.Message, Fields: make(map[string]string)}
	if out.Message == "" {
		out.Message = "validation failed"
	}
	for field, msg := range verr.Fields {
		if s != nil && s.HasField(field) {
			out.Fields[field] = msg
			continue
		}
		// No form item exists for an undeclared field; fold the detail into
		// the general message.
		out.Message = fmt.Sprintf("%s; %s: %s", out.Message, field, msg)
	}
	return out
}

// emit publishes a lifecycle event, following it with a state.changed event
// whenever the carried state differs from the last one announced.
func (v *View) emit(e Event) {
	if v.bus == nil {
		return
	}
	v.bus.Emit(string(e.Type), e)

	v.mu.Lock()
	changed := e.State != "" && e.State != v.announced
	if changed {
		v.announced = e.State
	}
	v.mu.Unlock()

	if changed {
		sc := e
		sc.Type = StateChanged
		v.bus.Emit(string(StateChanged), sc)
	}
}

// lastPage computes the final 0-based page index, trusting the server's
// totalPages when reported.
func lastPage(total int64, size, totalPages int) int {
	if totalPages > 0 {
		return totalPages - 1
	}
	if size <= 0 {
		return 0
	}
	pages := int((total + int64(size) - 1) / int64(size))
	if pages == 0 {
		return 0
	}
	return pages - 1
}

// dataSource adapts the generic data service into the resolver's batched
// label lookup: one search with an `id.in` filter per target schema.
type dataSource struct {
	data   DataService
	tenant string
}

func (s *dataSource) Labels(ctx context.Context, targetSchema, displayField string, ids []int64) (map[int64]string, error) {
	d := query.Descriptor{
		Page:     0,
		PageSize: len(ids),
		Filters:  []query.Filter{{Field: "id", Operator: query.OperatorIn, Value: ids}},
	}
	page, err := s.data.Search(ctx, s.tenant, targetSchema, query.Build(d, &schema.Schema{Name: targetSchema}))
	if err != nil {
		return nil, err
	}

	labels := make(map[int64]string, len(page.Content))
	for _, rec := range page.Content {
		if value, ok := rec.Data[displayField]; ok && value != nil {
			labels[rec.ID] = fmt.Sprint(value)
		}
	}
	return labels, nil
}
