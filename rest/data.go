package rest

import (
	"context"
	"net/url"
	"strconv"

	"github.com/avasel/go-facet/core/query"
	"github.com/avasel/go-facet/core/schema"
	"github.com/avasel/go-facet/core/view"
)

// DataClient talks to the generic data service: one endpoint family serves
// every schema, keyed by tenant and schema name. It satisfies
// view.DataService.
type DataClient struct {
	client *Client
}

// NewDataClient wraps a client for data calls.
func NewDataClient(client *Client) *DataClient {
	return &DataClient{client: client}
}

// recordEnvelope wraps a write payload the way the data service expects it.
type recordEnvelope struct {
	TenantID   string         `json:"tenantId"`
	SchemaName string         `json:"schemaName"`
	Data       map[string]any `json:"data"`
}

func dataPath(tenant, schemaName string) string {
	return "/api/data/" + url.PathEscape(tenant) + "/" + url.PathEscape(schemaName)
}

// Search runs a wire query against one schema's records.
func (d *DataClient) Search(ctx context.Context, tenant, schemaName string, wire query.WireQuery) (*schema.Page, error) {
	var page schema.Page
	if err := d.client.do(ctx, "GET", dataPath(tenant, schemaName), wire.Values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Create inserts a record.
func (d *DataClient) Create(ctx context.Context, tenant, schemaName string, data map[string]any) (*schema.Record, error) {
	body := recordEnvelope{TenantID: tenant, SchemaName: schemaName, Data: data}
	var rec schema.Record
	if err := d.client.do(ctx, "POST", dataPath(tenant, schemaName), nil, body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update replaces a record's data.
func (d *DataClient) Update(ctx context.Context, tenant, schemaName string, id int64, data map[string]any) (*schema.Record, error) {
	body := recordEnvelope{TenantID: tenant, SchemaName: schemaName, Data: data}
	var rec schema.Record
	path := dataPath(tenant, schemaName) + "/" + strconv.FormatInt(id, 10)
	if err := d.client.do(ctx, "PUT", path, nil, body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes a record.
func (d *DataClient) Delete(ctx context.Context, tenant, schemaName string, id int64) error {
	path := dataPath(tenant, schemaName) + "/" + strconv.FormatInt(id, 10)
	return d.client.do(ctx, "DELETE", path, nil, nil, nil)
}

var _ view.DataService = (*DataClient)(nil)
