package rest

import (
	"context"
	"errors"
	"net/url"
	"sort"

	"github.com/avasel/go-facet/core/schema"
	"github.com/avasel/go-facet/core/view"
)

// MetadataClient talks to the metadata service: schema definitions and their
// field lists, per tenant. It satisfies view.MetadataService.
type MetadataClient struct {
	client *Client
}

// NewMetadataClient wraps a client for metadata calls.
func NewMetadataClient(client *Client) *MetadataClient {
	return &MetadataClient{client: client}
}

// fieldDTO is the metadata service's field payload. Options arrives in
// whatever shape the designer stored; decoding is deferred to the tolerant
// schema parser.
type fieldDTO struct {
	ID                  string `json:"id"`
	SchemaID            string `json:"schemaId"`
	FieldName           string `json:"fieldName"`
	FieldType           string `json:"fieldType"`
	Label               string `json:"label"`
	Required            bool   `json:"required"`
	DefaultValue        any    `json:"defaultValue,omitempty"`
	Options             any    `json:"options,omitempty"`
	OrderNum            int    `json:"orderNum"`
	RelatedSchema       string `json:"relatedSchema,omitempty"`
	RelatedDisplayField string `json:"relatedDisplayField,omitempty"`
	Format              string `json:"format,omitempty"`
}

type schemaDTO struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	TenantID    string     `json:"tenantId"`
	Fields      []fieldDTO `json:"fields"`
}

// CreateSchemaRequest creates a new schema; the server scopes it to the
// caller's tenant.
type CreateSchemaRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateSchemaRequest patches a schema definition.
type UpdateSchemaRequest struct {
	ID          string  `json:"id"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// CreateFieldRequest adds a field to an existing schema.
type CreateFieldRequest struct {
	SchemaID            string   `json:"schemaId"`
	FieldName           string   `json:"fieldName"`
	FieldType           string   `json:"fieldType"`
	Label               string   `json:"label"`
	Required            bool     `json:"required"`
	DefaultValue        any      `json:"defaultValue,omitempty"`
	Options             []string `json:"options,omitempty"`
	OrderNum            int      `json:"orderNum"`
	RelatedSchema       string   `json:"relatedSchema,omitempty"`
	RelatedDisplayField string   `json:"relatedDisplayField,omitempty"`
}

// UpdateFieldRequest patches a field definition.
type UpdateFieldRequest struct {
	ID           string    `json:"id"`
	FieldName    *string   `json:"fieldName,omitempty"`
	FieldType    *string   `json:"fieldType,omitempty"`
	Label        *string   `json:"label,omitempty"`
	Required     *bool     `json:"required,omitempty"`
	DefaultValue any       `json:"defaultValue,omitempty"`
	Options      *[]string `json:"options,omitempty"`
	OrderNum     *int      `json:"orderNum,omitempty"`
}

// ListSchemas returns every schema of a tenant, fields ordered by their
// declared order number.
func (m *MetadataClient) ListSchemas(ctx context.Context, tenant string) ([]*schema.Schema, error) {
	var dtos []schemaDTO
	path := "/api/metadata/schemas/by-tenant/" + url.PathEscape(tenant)
	if err := m.client.do(ctx, "GET", path, nil, nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]*schema.Schema, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, dto.toSchema())
	}
	return out, nil
}

// GetSchema resolves a schema by tenant and name. The metadata service keys
// schemas by id, so the lookup goes through the tenant's list.
func (m *MetadataClient) GetSchema(ctx context.Context, tenant, schemaName string) (*schema.Schema, error) {
	schemas, err := m.ListSchemas(ctx, tenant)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &view.SchemaNotFoundError{Tenant: tenant, Name: schemaName, Err: err}
		}
		return nil, err
	}
	for _, s := range schemas {
		if s.Name == schemaName {
			return s, nil
		}
	}
	return nil, &view.SchemaNotFoundError{Tenant: tenant, Name: schemaName}
}

// GetSchemaByID fetches one schema definition by its id.
func (m *MetadataClient) GetSchemaByID(ctx context.Context, id string) (*schema.Schema, error) {
	var dto schemaDTO
	if err := m.client.do(ctx, "GET", "/api/metadata/schemas/"+url.PathEscape(id), nil, nil, &dto); err != nil {
		return nil, err
	}
	return dto.toSchema(), nil
}

// CreateSchema registers a new schema definition.
func (m *MetadataClient) CreateSchema(ctx context.Context, req CreateSchemaRequest) (*schema.Schema, error) {
	var dto schemaDTO
	if err := m.client.do(ctx, "POST", "/api/metadata/schemas", nil, req, &dto); err != nil {
		return nil, err
	}
	return dto.toSchema(), nil
}

// UpdateSchema patches a schema definition.
func (m *MetadataClient) UpdateSchema(ctx context.Context, req UpdateSchemaRequest) (*schema.Schema, error) {
	var dto schemaDTO
	if err := m.client.do(ctx, "PUT", "/api/metadata/schemas/"+url.PathEscape(req.ID), nil, req, &dto); err != nil {
		return nil, err
	}
	return dto.toSchema(), nil
}

// DeleteSchema removes a schema definition.
func (m *MetadataClient) DeleteSchema(ctx context.Context, id string) error {
	return m.client.do(ctx, "DELETE", "/api/metadata/schemas/"+url.PathEscape(id), nil, nil, nil)
}

// Fields lists a schema's fields in display order.
func (m *MetadataClient) Fields(ctx context.Context, schemaID string) ([]schema.Field, error) {
	var dtos []fieldDTO
	path := "/api/metadata/schemas/" + url.PathEscape(schemaID) + "/fields"
	if err := m.client.do(ctx, "GET", path, nil, nil, &dtos); err != nil {
		return nil, err
	}
	sort.SliceStable(dtos, func(i, j int) bool { return dtos[i].OrderNum < dtos[j].OrderNum })
	fields := make([]schema.Field, 0, len(dtos))
	for _, dto := range dtos {
		fields = append(fields, dto.toField())
	}
	return fields, nil
}

// CreateField adds a field to a schema.
func (m *MetadataClient) CreateField(ctx context.Context, req CreateFieldRequest) (schema.Field, error) {
	var dto fieldDTO
	if err := m.client.do(ctx, "POST", "/api/metadata/fields", nil, req, &dto); err != nil {
		return schema.Field{}, err
	}
	return dto.toField(), nil
}

// UpdateField patches a field definition.
func (m *MetadataClient) UpdateField(ctx context.Context, req UpdateFieldRequest) (schema.Field, error) {
	var dto fieldDTO
	if err := m.client.do(ctx, "PUT", "/api/metadata/fields/"+url.PathEscape(req.ID), nil, req, &dto); err != nil {
		return schema.Field{}, err
	}
	return dto.toField(), nil
}

// DeleteField removes a field definition.
func (m *MetadataClient) DeleteField(ctx context.Context, id string) error {
	return m.client.do(ctx, "DELETE", "/api/metadata/fields/"+url.PathEscape(id), nil, nil, nil)
}

func (dto schemaDTO) toSchema() *schema.Schema {
	fields := make([]fieldDTO, len(dto.Fields))
	copy(fields, dto.Fields)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].OrderNum < fields[j].OrderNum })

	s := &schema.Schema{
		ID:     dto.ID,
		Name:   dto.Name,
		Label:  dto.Description,
		Tenant: dto.TenantID,
		Fields: make([]schema.Field, 0, len(fields)),
	}
	for _, f := range fields {
		s.Fields = append(s.Fields, f.toField())
	}
	return s
}

func (dto fieldDTO) toField() schema.Field {
	fieldType := schema.FieldType(dto.FieldType)
	// Older designers stored multi-line text as TEXTAREA.
	if dto.FieldType == "TEXTAREA" {
		fieldType = schema.FieldTypeText
	}

	f := schema.Field{
		Name:                dto.FieldName,
		Label:               dto.Label,
		Type:                fieldType,
		Required:            dto.Required,
		Default:             dto.DefaultValue,
		RelatedSchema:       dto.RelatedSchema,
		RelatedDisplayField: dto.RelatedDisplayField,
		Format:              dto.Format,
	}
	if fieldType == schema.FieldTypeEnum {
		f.Options = schema.ParseEnumOptions(dto.Options)
	}
	return f
}

var _ view.MetadataService = (*MetadataClient)(nil)
