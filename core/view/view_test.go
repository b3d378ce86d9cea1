package view

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/avasel/go-facet/core/query"
	"github.com/avasel/go-facet/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func carSchema() *schema.Schema {
	return &schema.Schema{
		ID:     "schema-car",
		Name:   "Car",
		Label:  "Cars",
		Tenant: "acme",
		Fields: []schema.Field{
			{Name: "brand", Label: "Brand", Type: schema.FieldTypeString, Required: true},
			{Name: "price", Label: "Price", Type: schema.FieldTypeNumber},
			{Name: "owner", Label: "Owner", Type: schema.FieldTypeReference, RelatedSchema: "User", RelatedDisplayField: "name"},
		},
	}
}

func productSchema() *schema.Schema {
	return &schema.Schema{
		ID:     "schema-product",
		Name:   "Product",
		Label:  "Products",
		Tenant: "acme",
		Fields: []schema.Field{
			{Name: "title", Label: "Title", Type: schema.FieldTypeString, Required: true},
		},
	}
}

func pageOf(records []schema.Record, total int64, page, size int) *schema.Page {
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return &schema.Page{
		Content:       records,
		TotalElements: total,
		Page:          page,
		Size:          size,
		TotalPages:    totalPages,
	}
}

type fakeMeta struct {
	schemas    map[string]*schema.Schema
	blockFirst chan struct{}
	calls      int32
}

func (m *fakeMeta) GetSchema(_ context.Context, tenant, schemaName string) (*schema.Schema, error) {
	if atomic.AddInt32(&m.calls, 1) == 1 && m.blockFirst != nil {
		<-m.blockFirst
	}
	s, ok := m.schemas[schemaName]
	if !ok {
		return nil, &SchemaNotFoundError{Tenant: tenant, Name: schemaName}
	}
	return s, nil
}

type searchCall struct {
	schemaName string
	wire       url.Values
}

type fakeData struct {
	mu        sync.Mutex
	searchFn  func(schemaName string, wire query.WireQuery) (*schema.Page, error)
	createErr error
	updateErr error
	deleteErr error

	searches []searchCall
	creates  int
	updates  int
	deletes  int
}

func (d *fakeData) Search(_ context.Context, _, schemaName string, wire query.WireQuery) (*schema.Page, error) {
	d.mu.Lock()
	d.searches = append(d.searches, searchCall{schemaName: schemaName, wire: wire.Values()})
	fn := d.searchFn
	d.mu.Unlock()
	if fn == nil {
		return pageOf(nil, 0, 0, 10), nil
	}
	return fn(schemaName, wire)
}

func (d *fakeData) Create(_ context.Context, _, _ string, data map[string]any) (*schema.Record, error) {
	d.mu.Lock()
	d.creates++
	d.mu.Unlock()
	if d.createErr != nil {
		return nil, d.createErr
	}
	return &schema.Record{ID: 99, Data: data}, nil
}

func (d *fakeData) Update(_ context.Context, _, _ string, id int64, data map[string]any) (*schema.Record, error) {
	d.mu.Lock()
	d.updates++
	d.mu.Unlock()
	if d.updateErr != nil {
		return nil, d.updateErr
	}
	return &schema.Record{ID: id, Data: data}, nil
}

func (d *fakeData) Delete(_ context.Context, _, _ string, _ int64) error {
	d.mu.Lock()
	d.deletes++
	d.mu.Unlock()
	return d.deleteErr
}

// lastSearchFor returns the latest search against one schema, so background
// reference lookups against other schemas cannot disturb assertions.
func (d *fakeData) lastSearchFor(t *testing.T, schemaName string) searchCall {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.searches) - 1; i >= 0; i-- {
		if d.searches[i].schemaName == schemaName {
			return d.searches[i]
		}
	}
	t.Fatalf("no search against %s recorded", schemaName)
	return searchCall{}
}

func carRows() []schema.Record {
	return []schema.Record{
		{ID: 1, Data: map[string]any{"brand": "Volvo", "price": 25000.0, "owner": float64(7)}},
		{ID: 2, Data: map[string]any{"brand": "Saab", "price": 18000.0, "owner": float64(7)}},
	}
}

func carView(t *testing.T, data *fakeData) *View {
	t.Helper()
	meta := &fakeMeta{schemas: map[string]*schema.Schema{"Car": carSchema(), "Product": productSchema()}}
	v, err := New(meta, data)
	require.NoError(t, err)
	return v
}

func TestLoadRunsInitialQuery(t *testing.T) {
	data := &fakeData{searchFn: func(name string, _ query.WireQuery) (*schema.Page, error) {
		if name == "Car" {
			return pageOf(carRows(), 2, 0, 10), nil
		}
		return pageOf(nil, 0, 0, 10), nil
	}}
	v := carView(t, data)

	require.NoError(t, v.Load(context.Background(), "acme", "Car"))

	assert.Equal(t, StateReady, v.State())
	assert.Equal(t, "Car", v.Schema().Name)
	assert.Len(t, v.Rows(), 2)
	assert.Equal(t, int64(2), v.Total())

	d := v.Descriptor()
	assert.Equal(t, 0, d.Page)
	assert.Equal(t, DefaultPageSize, d.PageSize)
	assert.Empty(t, d.Filters)
	assert.Empty(t, d.SortField)
}

func TestLoadUnknownSchemaIsTerminal(t *testing.T) {
	v := carView(t, &fakeData{})

	err := v.Load(context.Background(), "acme", "Ghost")

	require.Error(t, err)
	var notFound *SchemaNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, StateSchemaError, v.State())
	assert.Nil(t, v.Schema())
}

func TestActionsBeforeLoadAreRejected(t *testing.T) {
	v := carView(t, &fakeData{})

	assert.ErrorIs(t, v.Paginate(context.Background(), 1), errNotLoaded)
	assert.ErrorIs(t, v.Create(context.Background(), map[string]any{"brand": "Volvo"}), errNotLoaded)
	assert.ErrorIs(t, v.Delete(context.Background(), 1), errNotLoaded)
}

func TestCreateInvalidNeverReachesNetwork(t *testing.T) {
	data := &fakeData{}
	v := carView(t, data)
	require.NoError(t, v.Load(context.Background(), "acme", "Car"))
	searchesAfterLoad := len(data.searches)

	err := v.Create(context.Background(), map[string]any{"price": 100.0})

	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "brand")
	assert.Equal(t, 0, data.creates)
	assert.Len(t, data.searches, searchesAfterLoad)
}

func TestCreateResetsToFirstPage(t *testing.T) {
	data := &fakeData{searchFn: func(name string, _ query.WireQuery) (*schema.Page, error) {
		return pageOf(carRows(), 40, 0, 10), nil
	}}
	v := carView(t, data)
	require.NoError(t, v.Load(context.Background(), "acme", "Car"))
	require.NoError(t, v.Paginate(context.Background(), 2))
	require.Equal(t, 2, v.Descriptor().Page)

	require.NoError(t, v.Create(context.Background(), map[string]any{"brand": "Koenigsegg"}))

	assert.Equal(t, 1, data.creates)
	assert.Equal(t, 0, v.Descriptor().Page)
	assert.Equal(t, "0", data.lastSearchFor(t, "Car").wire.Get("page"))
}

func TestUpdateRefreshesCurrentPage(t *testing.T) {
	data := &fakeData{searchFn: func(name string, _ query.WireQuery) (*schema.Page, error) {
		return pageOf(carRows(), 40, 0, 10), nil
	}}
	v := carView(t, data)
	require.NoError(t, v.Load(context.Background(), "acme", "Car"))
	require.NoError(t, v.Paginate(context.Background(), 2))

	require.NoError(t, v.Update(context.Background(), 1, map[string]any{"price": 20000.0}))

	assert.Equal(t, 1, data.updates)
	assert.Equal(t, 2, v.Descriptor().Page)
	assert.Equal(t, "2", data.lastSearchFor(t, "Car").wire.Get("page"))
}

func TestUpdateAllowsPartialPayload(t *testing.T) {
	data := &fakeData{}
	v := carView(t, data)
	require.NoError(t, v.Load(context.Background(), "acme", "Car"))

	// brand is required, but a patch that does not touch it is valid.
	require.NoError(t, v.Update(context.Background(), 1, map[string]any{"price": 100.0}))
	assert.Equal(t, 1, data.updates)
}

func TestQueryFailurePreservesRows(t *testing.T) {
	fail := false
	data := &fakeData{}
	data.searchFn = func(name string, _ query.WireQuery) (*schema.Page, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return pageOf(carRows(), 2, 0, 10), nil
	}
	v := carView(t, data)
	require.NoError(t, v.Load(context.Background(), "acme", "Car"))
	require.Len(t, v.Rows(), 2)

	fail = true
	err := v.Paginate(context.Background(), 1)

	var fetchErr *TransientFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, StateReady, v.State())
	assert.Len(t, v.Rows(), 2, "rows from the previous page must stay rendered")

	// The failure is retryable: a later successful query clears it.
	fail = false
	require.NoError(t, v.Paginate(context.Background(), 0))
	assert.NoError(t, v.Err())
}

func TestPaginatePastEndClampsToLastPage(t *testing.T) {
	data := &fakeData{}
	data.searchFn = func(name string, wire query.WireQuery) (*schema.Page, error) {
		if wire.Get("page") == "1" {
			return pageOf(carRows(), 12, 1, 10), nil
		}
		// 12 records at size 10: any page beyond 1 is empty.
		return pageOf(nil, 12, 5, 10), nil
	}
	v := carView(t, data)
	require.NoError(t, v.Load(context.Background(), "acme", "Car"))

	require.NoError(t, v.Paginate(context.Background(), 5))

	assert.Equal(t, 1, v.Descriptor().Page)
	assert.NotEmpty(t, v.Rows())
}

func TestServerValidationErrorMapsOntoSchemaFields(t *testing.T) {
	data := &fakeData{createErr: &schema.ValidationError{
		Message: "invalid",
		Fields: map[string]string{
			"brand": "duplicate brand",
			"ghost": "no such column",
		},
	}}
	v := carView(t, data)
	require.NoError(t, v.Load(context.Background(), "acme", "Car"))

	err := v.Create(context.Background(), map[string]any{"brand": "Volvo"})

	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "duplicate brand", verr.Fields["brand"])
	assert.NotContains(t, verr.Fields, "ghost")
	assert.Contains(t, verr.Message, "ghost")
	assert.Equal(t, StateReady, v.State())
}

func TestWriteConflictSurfacesUnchanged(t *testing.T) {
	data := &fakeData{deleteErr: &WriteConflictError{Op: "delete", Err: errors.New("409")}}
	v := carView(t, data)
	require.NoError(t, v.Load(context.Background(), "acme", "Car"))

	err := v.Delete(context.Background(), 1)

	var conflict *WriteConflictError
	assert.ErrorAs(t, err, &conflict)
	assert.Equal(t, StateReady, v.State())
}

func TestDeleteRefreshesAndClamps(t *testing.T) {
	deleted := false
	data := &fakeData{}
	data.searchFn = func(name string, wire query.WireQuery) (*schema.Page, error) {
		if !deleted {
			if wire.Get("page") == "1" {
				return pageOf(carRows()[:1], 11, 1, 10), nil
			}
			return pageOf(carRows(), 11, 0, 10), nil
		}
		// The only record on page 1 is gone; page 0 is now the last page.
		if wire.Get("page") == "0" {
			return pageOf(carRows(), 10, 0, 10), nil
		}
		return pageOf(nil, 10, 1, 10), nil
	}
	v := carView(t, data)
	require.NoError(t, v.Load(context.Background(), "acme", "Car"))
	require.NoError(t, v.Paginate(context.Background(), 1))

	deleted = true
	require.NoError(t, v.Delete(context.Background(), 11))

	assert.Equal(t, 1, data.deletes)
	assert.Equal(t, 0, v.Descriptor().Page)
	assert.NotEmpty(t, v.Rows())
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	meta := &fakeMeta{
		schemas:    map[string]*schema.Schema{"Car": carSchema(), "Product": productSchema()},
		blockFirst: gate,
	}
	data := &fakeData{searchFn: func(name string, _ query.WireQuery) (*schema.Page, error) {
		if name == "Car" {
			return pageOf(carRows(), 2, 0, 10), nil
		}
		return pageOf(nil, 0, 0, 10), nil
	}}
	v, err := New(meta, data)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- v.Load(context.Background(), "acme", "Car") }()

	// The second load supersedes the first while its schema fetch is still
	// in flight.
	require.NoError(t, v.Load(context.Background(), "acme", "Product"))
	close(gate)
	require.NoError(t, <-done)

	assert.Equal(t, "Product", v.Schema().Name)
	assert.Empty(t, v.Rows())
}

func TestReferencesResolveInBackground(t *testing.T) {
	data := &fakeData{}
	data.searchFn = func(name string, wire query.WireQuery) (*schema.Page, error) {
		switch name {
		case "Car":
			return pageOf(carRows(), 2, 0, 10), nil
		case "User":
			return pageOf([]schema.Record{{ID: 7, Data: map[string]any{"name": "Ada"}}}, 1, 0, 2), nil
		}
		return pageOf(nil, 0, 0, 10), nil
	}
	v := carView(t, data)
	require.NoError(t, v.Load(context.Background(), "acme", "Car"))
	v.Settle()

	ownerField := carSchema().Fields[2]
	assert.Equal(t, "Ada", v.Label(ownerField, v.Rows()[0]))

	// Both rows share owner 7: one lookup for the User target, total.
	userLookups := 0
	data.mu.Lock()
	for _, call := range data.searches {
		if call.schemaName == "User" {
			userLookups++
			assert.Equal(t, "7", call.wire.Get("id.in"))
		}
	}
	data.mu.Unlock()
	assert.Equal(t, 1, userLookups)
}

func TestSchemaSwitchIsolatesReferenceCache(t *testing.T) {
	data := &fakeData{}
	v := carView(t, data)
	require.NoError(t, v.Load(context.Background(), "acme", "Car"))
	first := v.Cache()

	require.NoError(t, v.Load(context.Background(), "acme", "Product"))
	assert.NotSame(t, first, v.Cache())
}

func TestSubscriptionsDeliverLifecycleEvents(t *testing.T) {
	data := &fakeData{}
	v := carView(t, data)

	got := make(chan Event, 16)
	id := v.RegisterSubscription(RegisterSubscriptionOptions{
		Event: SchemaLoadSuccess,
		Callback: func(_ context.Context, e Event) error {
			got <- e
			return nil
		},
	})
	require.NotEmpty(t, id)

	require.NoError(t, v.Load(context.Background(), "acme", "Car"))

	select {
	case e := <-got:
		assert.Equal(t, SchemaLoadSuccess, e.Type)
		assert.Equal(t, "Car", e.Schema)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a schema.load.success event")
	}

	v.UnregisterSubscription(id)
}
