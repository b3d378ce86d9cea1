// Demo: drive a schema view end to end against in-memory services. It loads
// a Car schema, searches, pages, creates a record, and prints the rendered
// table after each step. Run with `go run .`.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/avasel/go-facet/core/query"
	"github.com/avasel/go-facet/core/render"
	"github.com/avasel/go-facet/core/schema"
	"github.com/avasel/go-facet/core/view"
	"go.uber.org/zap"
)

const tenant = "acme"

func carSchema() *schema.Schema {
	return &schema.Schema{
		ID:     "schema-car",
		Name:   "Car",
		Label:  "Cars",
		Tenant: tenant,
		Fields: []schema.Field{
			{Name: "brand", Label: "Brand", Type: schema.FieldTypeString, Required: true},
			{Name: "price", Label: "Price", Type: schema.FieldTypeNumber},
			{Name: "electric", Label: "Electric", Type: schema.FieldTypeBoolean},
			{Name: "owner", Label: "Owner", Type: schema.FieldTypeReference, RelatedSchema: "User", RelatedDisplayField: "name"},
		},
	}
}

func userSchema() *schema.Schema {
	return &schema.Schema{
		ID:     "schema-user",
		Name:   "User",
		Label:  "Users",
		Tenant: tenant,
		Fields: []schema.Field{
			{Name: "name", Label: "Name", Type: schema.FieldTypeString, Required: true},
		},
	}
}

// memoryMeta serves schema definitions from a fixed map.
type memoryMeta struct {
	schemas map[string]*schema.Schema
}

func (m *memoryMeta) GetSchema(_ context.Context, tenant, schemaName string) (*schema.Schema, error) {
	s, ok := m.schemas[schemaName]
	if !ok {
		return nil, &view.SchemaNotFoundError{Tenant: tenant, Name: schemaName}
	}
	return s, nil
}

// memoryData is a toy data service: per-schema record slices with enough of
// the wire protocol (page, size, like, in) to exercise the engine.
type memoryData struct {
	mu      sync.Mutex
	nextID  int64
	records map[string][]schema.Record
}

func newMemoryData() *memoryData {
	return &memoryData{nextID: 1, records: make(map[string][]schema.Record)}
}

func (m *memoryData) seed(schemaName string, data map[string]any) schema.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := schema.Record{ID: m.nextID, Tenant: tenant, SchemaName: schemaName, Data: data}
	m.nextID++
	m.records[schemaName] = append(m.records[schemaName], rec)
	return rec
}

func (m *memoryData) Search(_ context.Context, _, schemaName string, wire query.WireQuery) (*schema.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []schema.Record
	for _, rec := range m.records[schemaName] {
		if matches(rec, wire) {
			matched = append(matched, rec)
		}
	}

	page, _ := strconv.Atoi(wire.Get("page"))
	size, _ := strconv.Atoi(wire.Get("size"))
	if size <= 0 {
		size = 10
	}
	total := int64(len(matched))
	totalPages := int((total + int64(size) - 1) / int64(size))

	start := page * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}

	return &schema.Page{
		Content:       matched[start:end],
		TotalElements: total,
		Page:          page,
		Size:          size,
		TotalPages:    totalPages,
	}, nil
}

func matches(rec schema.Record, wire query.WireQuery) bool {
	for key, values := range wire.Values() {
		field, op, ok := strings.Cut(key, ".")
		if !ok {
			continue
		}
		want := values[0]
		switch op {
		case "like":
			got, _ := rec.Data[field].(string)
			if !strings.Contains(strings.ToLower(got), strings.ToLower(want)) {
				return false
			}
		case "in":
			if field == "id" {
				hit := false
				for _, idText := range strings.Split(want, ",") {
					if id, err := strconv.ParseInt(idText, 10, 64); err == nil && id == rec.ID {
						hit = true
					}
				}
				if !hit {
					return false
				}
			}
		case "eq":
			if fmt.Sprint(rec.Data[field]) != want {
				return false
			}
		}
	}
	return true
}

func (m *memoryData) Create(_ context.Context, _, schemaName string, data map[string]any) (*schema.Record, error) {
	rec := m.seed(schemaName, data)
	return &rec, nil
}

func (m *memoryData) Update(_ context.Context, _, schemaName string, id int64, data map[string]any) (*schema.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rec := range m.records[schemaName] {
		if rec.ID == id {
			m.records[schemaName][i].Data = data
			return &m.records[schemaName][i], nil
		}
	}
	return nil, fmt.Errorf("record %d not found", id)
}

func (m *memoryData) Delete(_ context.Context, _, schemaName string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.records[schemaName]
	for i, rec := range rows {
		if rec.ID == id {
			m.records[schemaName] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("record %d not found", id)
}

func printTable(v *view.View) {
	s := v.Schema()
	cols := render.Columns(s)

	var header []string
	for _, col := range cols {
		header = append(header, col.Title)
	}
	fmt.Println(strings.Join(header, " | "))

	for _, rec := range v.Rows() {
		row := render.Row(s, rec, v.Cache())
		var cells []string
		for _, col := range cols {
			cells = append(cells, row[col.Field.Name])
		}
		fmt.Println(strings.Join(cells, " | "))
	}
	fmt.Printf("-- page %d of %d, %d total --\n\n", v.Descriptor().Page+1, v.TotalPages(), v.Total())
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	meta := &memoryMeta{schemas: map[string]*schema.Schema{"Car": carSchema(), "User": userSchema()}}
	data := newMemoryData()

	ada := data.seed("User", map[string]any{"name": "Ada Lovelace"})
	grace := data.seed("User", map[string]any{"name": "Grace Hopper"})
	data.seed("Car", map[string]any{"brand": "Volvo", "price": 25000.0, "electric": false, "owner": ada.ID})
	data.seed("Car", map[string]any{"brand": "Tesla", "price": 43000.0, "electric": true, "owner": grace.ID})
	data.seed("Car", map[string]any{"brand": "Saab", "price": 12000.0, "electric": false, "owner": ada.ID})

	v, err := view.New(meta, data, view.WithLogger(logger), view.WithPageSize(2))
	if err != nil {
		logger.Fatal("view construction failed", zap.Error(err))
	}

	ctx := context.Background()
	if err := v.Load(ctx, tenant, "Car"); err != nil {
		logger.Fatal("load failed", zap.Error(err))
	}
	v.Settle()
	fmt.Println("== all cars ==")
	printTable(v)

	if err := v.Search(ctx, []query.Filter{{Field: "brand", Value: "a"}}); err != nil {
		logger.Fatal("search failed", zap.Error(err))
	}
	v.Settle()
	fmt.Println(`== brand contains "a" ==`)
	printTable(v)

	if err := v.Create(ctx, map[string]any{"brand": "Polestar", "price": 52000.0, "electric": true, "owner": grace.ID}); err != nil {
		logger.Fatal("create failed", zap.Error(err))
	}
	v.Settle()
	fmt.Println("== after create (back on page 1) ==")
	printTable(v)

	// Invalid payload: the required brand is missing, so the write is
	// rejected locally with the offending field attached.
	if err := v.Create(ctx, map[string]any{"price": 1.0}); err != nil {
		fmt.Printf("rejected as expected: %v\n", err)
	}
}
