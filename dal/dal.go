// Package dal holds the narrow interfaces through which the access engine
// consumes query results: records with column metadata, the result set that
// owns them, and the adhoc "datalink" services a result set may declare. It
// also provides a detached Table/Row implementation for plain tabular data
// that carries no column metadata.
package dal

import (
	"context"
	"errors"
)

// ErrNoService is returned when a result set declares no matching adhoc
// service.
var ErrNoService = errors.New("no such adhoc service")

// Record is one row of a query result that retains column metadata and an
// association back to its owning result set.
type Record interface {
	// Value returns the field value by column name. ok is false when the
	// column does not exist.
	Value(name string) (value any, ok bool)

	// ByUCD returns the value of the first column whose UCD annotation
	// matches, or nil when no column carries that UCD.
	ByUCD(ucd string) any

	// DataURL returns the canonical on-prem download URL, or "" when the
	// record does not declare one.
	DataURL() string

	// ColumnNames returns the ordered column names.
	ColumnNames() []string

	// ResultSet returns the owning query result.
	ResultSet() RecordSet
}

// RecordSet is a query result: an ordered collection of records that may
// declare adhoc datalink-style services.
type RecordSet interface {
	// Len returns the number of records.
	Len() int

	// Record returns the i-th record.
	Record(i int) Record

	// DatalinkByID returns the adhoc service with the given resource ID, or
	// ErrNoService.
	DatalinkByID(id string) (*Service, error)

	// DatalinkByIVOID returns the adhoc service whose standardID matches, or
	// ErrNoService.
	DatalinkByIVOID(ivoid string) (*Service, error)

	// ExecDatalink invokes the service once for all given records with the
	// bound parameters and returns the result as a detached table.
	ExecDatalink(ctx context.Context, records []Record, svc *Service, params map[string]string) (*Table, error)
}

// Service describes an adhoc datalink-style service declared by a result set.
type Service struct {
	// ID is the service's resource identifier within the result document.
	ID string

	// IVOID is the service's standardID.
	IVOID string

	// InputParams are the service's declared input parameters, in
	// declaration order.
	InputParams []Param
}

// Param is one declared input parameter of an adhoc service.
type Param struct {
	// Name of the parameter.
	Name string

	// Ref names the result column the parameter binds to, or "" when the
	// parameter is free-standing.
	Ref string

	// Options enumerates the parameter's discrete allowed values, when the
	// service declares any.
	Options []Option
}

// Option is one allowed value of an enumerated service parameter.
type Option struct {
	// Description is the human-readable label.
	Description string

	// Value is the literal to bind.
	Value string
}

// ProviderParam returns the service input parameter with the given name, or
// nil when the service does not declare it.
func (s *Service) ProviderParam(name string) *Param {
	for i := range s.InputParams {
		if s.InputParams[i].Name == name {
			return &s.InputParams[i]
		}
	}
	return nil
}

// RefColumn returns the column name referenced by the first input parameter
// carrying a Ref, or "" when no parameter binds to a column.
func (s *Service) RefColumn() string {
	for _, p := range s.InputParams {
		if p.Ref != "" {
			return p.Ref
		}
	}
	return ""
}
