package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voaccess/vocloud/dal"
	"github.com/voaccess/vocloud/provider"
)

// Mode selects which discovery strategies run.
type Mode string

const (
	// ModeJSON runs only the descriptor-column strategy.
	ModeJSON Mode = "json"
	// ModeUCD runs only the semantic-tag-column strategy.
	ModeUCD Mode = "ucd"
	// ModeDatalink runs only the datalink-service strategy.
	ModeDatalink Mode = "datalink"
	// ModeAll runs every strategy applicable to the input.
	ModeAll Mode = "all"
)

const (
	// URLColumnAuto picks the on-prem URL heuristically: the record's data
	// URL accessor when available, else the first column holding an http(s)
	// value.
	URLColumnAuto = "auto"
	// URLColumnNone skips the on-prem default entirely.
	URLColumnNone = "none"
)

// Defaults for the descriptor column, the datalink service lookup and the
// provider-selecting parameter. Two conventions exist in the wild for the
// parameter name, so both are tried unless Options pins one.
const (
	DefaultDescriptorColumn = "cloud_access"
	DefaultServiceID        = "cloudlinks"
	DefaultServiceIVOID     = "ivo://ivoa.net/std/datalink#links-1.0"
)

var defaultProviderParams = []string{"provider", "source"}

// Datalink result tables join back to input rows on this column and expose
// one access URL per output row.
const (
	datalinkIDColumn  = "ID"
	datalinkURLColumn = "access_url"
)

// ErrInvalidInput is returned when a product or strategy input has the wrong
// shape or type.
var ErrInvalidInput = errors.New("invalid input")

// Options configures discovery.
type Options struct {
	// Mode selects the strategies to run. Default ModeAll.
	Mode Mode

	// URLColumn selects the on-prem default URL: URLColumnAuto (default),
	// an explicit column name, or URLColumnNone.
	URLColumn string

	// DescriptorColumn is the column holding the provider-keyed JSON
	// descriptor. Default DefaultDescriptorColumn.
	DescriptorColumn string

	// ProviderParam pins the name of the datalink parameter that selects a
	// provider. Empty tries "provider" then "source".
	ProviderParam string

	// ServiceID is the datalink service resource ID to look up.
	// Default DefaultServiceID.
	ServiceID string

	// ServiceIVOID is the standardID tried when no service matches ServiceID.
	// Default DefaultServiceIVOID.
	ServiceIVOID string

	// Meta carries per-provider access metadata, e.g. a credential profile
	// name under Meta[provider.AWS]["profile"].
	Meta map[provider.ID]provider.Meta

	// Logger receives discovery progress at debug level. Nil discards.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeAll
	}
	if o.URLColumn == "" {
		o.URLColumn = URLColumnAuto
	}
	if o.DescriptorColumn == "" {
		o.DescriptorColumn = DefaultDescriptorColumn
	}
	if o.ServiceID == "" {
		o.ServiceID = DefaultServiceID
	}
	if o.ServiceIVOID == "" {
		o.ServiceIVOID = DefaultServiceIVOID
	}
	return o
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (o Options) metaFor(id provider.ID) provider.Meta {
	if o.Meta == nil {
		return nil
	}
	return o.Meta[id]
}

// rowKind tags the capability of the normalized input, decided once at
// orchestrator entry rather than re-derived per strategy.
type rowKind int

const (
	kindRecord rowKind = iota
	kindTableRow
)

// row is one normalized input row: a record with column metadata, or a
// detached table row.
type row struct {
	rec dal.Record
	tab dal.Row
}

func (r row) value(name string) (any, bool) {
	if r.rec != nil {
		return r.rec.Value(name)
	}
	return r.tab.Value(name)
}

func (r row) columnNames() []string {
	if r.rec != nil {
		return r.rec.ColumnNames()
	}
	return r.tab.ColumnNames()
}

// discoverJSONColumn reads the provider-keyed JSON descriptor column. Rows
// without the column yield an empty result; malformed JSON is an error. Each
// provider's value may be a single parameter object or a list of them.
func discoverJSONColumn(rows []row, opts Options) ([][]provider.AccessPoint, error) {
	log := opts.logger()
	out := make([][]provider.AccessPoint, len(rows))

	for i, r := range rows {
		v, ok := r.value(opts.DescriptorColumn)
		if !ok || v == nil {
			log.Debug("no descriptor column", "column", opts.DescriptorColumn, "row", i)
			continue
		}
		text, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("descriptor column %q on row %d is %T, want string: %w",
				opts.DescriptorColumn, i, v, ErrInvalidInput)
		}

		var descriptor map[string]json.RawMessage
		if err := json.Unmarshal([]byte(text), &descriptor); err != nil {
			return nil, fmt.Errorf("descriptor column %q on row %d: %w", opts.DescriptorColumn, i, err)
		}

		for _, id := range provider.Registered() {
			raw, present := descriptor[string(id)]
			if !present {
				continue
			}
			paramSets, err := decodeParamSets(raw)
			if err != nil {
				return nil, fmt.Errorf("descriptor for provider %q on row %d: %w", id, i, err)
			}
			for _, params := range paramSets {
				ap, err := provider.New(id, params, opts.metaFor(id))
				if err != nil {
					return nil, err
				}
				out[i] = append(out[i], ap)
				log.Debug("descriptor access point", "provider", id, "uid", ap.UID(), "row", i)
			}
		}
	}
	return out, nil
}

// decodeParamSets accepts a single JSON parameter object or a list of them.
func decodeParamSets(raw json.RawMessage) ([]map[string]string, error) {
	var single map[string]string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []map[string]string{single}, nil
	}
	var many []map[string]string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, err
	}
	return many, nil
}

// discoverUCDColumn builds access points from columns annotated with the UCD
// meta.ref.<provider>. It applies only to records that carry column
// metadata; detached table rows are an error.
func discoverUCDColumn(rows []row, kind rowKind, opts Options) ([][]provider.AccessPoint, error) {
	if kind != kindRecord {
		return nil, fmt.Errorf("ucd discovery needs records with column metadata, got detached table rows: %w", ErrInvalidInput)
	}
	log := opts.logger()
	out := make([][]provider.AccessPoint, len(rows))

	for i, r := range rows {
		for _, id := range provider.Registered() {
			v := r.rec.ByUCD("meta.ref." + string(id))
			if v == nil {
				continue
			}
			uid, ok := v.(string)
			if !ok || uid == "" {
				continue
			}
			ap, err := provider.NewFromUID(id, uid, opts.metaFor(id))
			if err != nil {
				return nil, err
			}
			out[i] = append(out[i], ap)
			log.Debug("ucd access point", "provider", id, "uid", uid, "row", i)
		}
	}
	return out, nil
}

// discoverDatalinks queries the result set's datalink-style service, once per
// declared provider option rather than once per row, and joins the output
// rows back to inputs on the service's declared ref column. A result set
// without such a service yields empty results; that is the common case.
func discoverDatalinks(ctx context.Context, rows []row, kind rowKind, set dal.RecordSet, opts Options) ([][]provider.AccessPoint, error) {
	out := make([][]provider.AccessPoint, len(rows))
	if kind != kindRecord {
		return nil, fmt.Errorf("datalink discovery needs records from a query result, got detached table rows: %w", ErrInvalidInput)
	}
	log := opts.logger()
	// Records detached from any result set cannot declare a service; that is
	// the same as a result set without one.
	if set == nil {
		log.Debug("records have no owning result set; skipping datalink discovery")
		return out, nil
	}

	// The batched invocation below assumes every row binds to the same
	// service; mixed inputs must fail loudly instead of joining across
	// services.
	records := make([]dal.Record, len(rows))
	for i, r := range rows {
		if r.rec.ResultSet() != set {
			return nil, fmt.Errorf("row %d belongs to a different result set: %w", i, ErrInvalidInput)
		}
		records[i] = r.rec
	}

	svc, err := set.DatalinkByID(opts.ServiceID)
	if errors.Is(err, dal.ErrNoService) {
		svc, err = set.DatalinkByIVOID(opts.ServiceIVOID)
	}
	if errors.Is(err, dal.ErrNoService) {
		log.Debug("no datalink service", "id", opts.ServiceID, "ivoid", opts.ServiceIVOID)
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	paramNames := defaultProviderParams
	if opts.ProviderParam != "" {
		paramNames = []string{opts.ProviderParam}
	}
	var providerParam *dal.Param
	var paramName string
	for _, name := range paramNames {
		if p := svc.ProviderParam(name); p != nil {
			providerParam, paramName = p, name
			break
		}
	}
	if providerParam == nil {
		log.Debug("datalink service has no provider parameter", "tried", strings.Join(paramNames, ","))
		return out, nil
	}

	refColumn := svc.RefColumn()

	for _, option := range providerParam.Options {
		id := provider.ID(option.Value)
		if prefix, _, found := strings.Cut(option.Value, ":"); found {
			id = provider.ID(prefix)
		}
		if !provider.Supported(id) {
			log.Debug("skipping unregistered provider option", "option", option.Value)
			continue
		}

		table, err := set.ExecDatalink(ctx, records, svc, map[string]string{paramName: option.Value})
		if err != nil {
			return nil, fmt.Errorf("datalink query for %q: %w", option.Value, err)
		}

		for i, rec := range records {
			joinValue, _ := rec.Value(refColumn)
			for _, dlRow := range table.Rows() {
				idValue, _ := dlRow.Value(datalinkIDColumn)
				if idValue == nil || fmt.Sprint(idValue) != fmt.Sprint(joinValue) {
					continue
				}
				urlValue, _ := dlRow.Value(datalinkURLColumn)
				uid, ok := urlValue.(string)
				if !ok || uid == "" {
					continue
				}
				ap, err := provider.NewFromUID(id, uid, opts.metaFor(id))
				if err != nil {
					return nil, err
				}
				out[i] = append(out[i], ap)
				log.Debug("datalink access point", "provider", id, "uid", uid, "row", i)
			}
		}
	}
	return out, nil
}
