package repository

import "context"

// Shape selects how a tabular write wraps its fields.
type Shape int

const (
	// ShapeRecords posts {"records":[{"fields":{...}}]}.
	ShapeRecords Shape = iota
	// ShapeFields posts {"fields":{...}}.
	ShapeFields
)

// TableWriter appends one row to a named table of the external datastore.
type TableWriter interface {
	Save(ctx context.Context, table string, fields map[string]any, shape Shape) error
}
