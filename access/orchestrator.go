package access

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/voaccess/vocloud/dal"
	"github.com/voaccess/vocloud/provider"
	"github.com/voaccess/vocloud/store"
	"github.com/voaccess/vocloud/transfer"
)

// State is the orchestrator lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateDiscovering
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "Discovering"
	case StateReady:
		return "Ready"
	default:
		return "Uninitialized"
	}
}

// Orchestrator resolves the access points of a data product and downloads
// from a chosen provider with fallback across equivalent points. One
// container is built per input row; the containers keep the row order of the
// input.
type Orchestrator struct {
	opts     Options
	rows     []row
	kind     rowKind
	set      dal.RecordSet
	singular bool

	containers []*Container
	state      State
}

// Discover validates and normalizes a data product, runs the discovery
// strategies and returns a ready orchestrator. product may be a dal.Record,
// a dal.RecordSet, a *dal.Table or a dal.Row; anything else is
// ErrInvalidInput.
func Discover(ctx context.Context, product any, opts Options) (*Orchestrator, error) {
	opts = opts.withDefaults()
	switch opts.Mode {
	case ModeJSON, ModeUCD, ModeDatalink, ModeAll:
	default:
		return nil, fmt.Errorf("mode %q is not one of json, ucd, datalink, all: %w", opts.Mode, ErrInvalidInput)
	}

	o := &Orchestrator{opts: opts, state: StateUninitialized}

	switch p := product.(type) {
	case dal.Record:
		o.rows = []row{{rec: p}}
		o.kind = kindRecord
		o.set = p.ResultSet()
		o.singular = true
	case dal.RecordSet:
		o.kind = kindRecord
		o.set = p
		for i := 0; i < p.Len(); i++ {
			o.rows = append(o.rows, row{rec: p.Record(i)})
		}
	case *dal.Table:
		o.kind = kindTableRow
		for _, r := range p.Rows() {
			o.rows = append(o.rows, row{tab: r})
		}
	case dal.Row:
		o.rows = []row{{tab: p}}
		o.kind = kindTableRow
		o.singular = true
	case *dal.Row:
		o.rows = []row{{tab: *p}}
		o.kind = kindTableRow
		o.singular = true
	default:
		return nil, fmt.Errorf("product has the wrong type %T, want Record, RecordSet, Table or Row: %w",
			product, ErrInvalidInput)
	}

	if err := o.Refresh(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// Refresh re-runs discovery from scratch, discarding previously built access
// points and their memoized probe results. Useful after a credential change.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	o.state = StateDiscovering

	containers := make([]*Container, len(o.rows))
	for i := range containers {
		containers[i] = NewContainer()
	}

	// On-prem default first, so it wins container order over discovered
	// duplicates.
	for i, r := range o.rows {
		url := o.premURL(r)
		if url == "" {
			continue
		}
		ap, err := provider.NewPremAccessPoint(url)
		if err != nil {
			return fmt.Errorf("on-prem url for row %d: %w", i, err)
		}
		containers[i].Add(ap)
	}

	// A strategy runs when its mode is requested; under ModeAll the record-
	// only strategies are skipped for detached input instead of failing.
	runs := func(m Mode) bool {
		if o.opts.Mode == m {
			return true
		}
		if o.opts.Mode != ModeAll {
			return false
		}
		if m == ModeJSON {
			return true
		}
		return o.kind == kindRecord
	}

	merge := func(aps [][]provider.AccessPoint) {
		for i, rowAPs := range aps {
			containers[i].Add(rowAPs...)
		}
	}

	if runs(ModeJSON) {
		aps, err := discoverJSONColumn(o.rows, o.opts)
		if err != nil {
			return err
		}
		merge(aps)
	}
	if runs(ModeUCD) {
		aps, err := discoverUCDColumn(o.rows, o.kind, o.opts)
		if err != nil {
			return err
		}
		merge(aps)
	}
	if runs(ModeDatalink) {
		aps, err := discoverDatalinks(ctx, o.rows, o.kind, o.set, o.opts)
		if err != nil {
			return err
		}
		merge(aps)
	}

	o.containers = containers
	o.state = StateReady
	return nil
}

// premURL resolves the on-prem default URL for a row per Options.URLColumn.
func (o *Orchestrator) premURL(r row) string {
	switch o.opts.URLColumn {
	case URLColumnNone:
		return ""
	case URLColumnAuto:
		if r.rec != nil {
			if u := r.rec.DataURL(); u != "" {
				return u
			}
		}
		for _, name := range r.columnNames() {
			v, ok := r.value(name)
			if !ok {
				continue
			}
			if s, ok := v.(string); ok && looksLikeHTTPURL(s) {
				return s
			}
		}
		return ""
	default:
		v, ok := r.value(o.opts.URLColumn)
		if !ok {
			return ""
		}
		s, _ := v.(string)
		return s
	}
}

func looksLikeHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// State returns the orchestrator state.
func (o *Orchestrator) State() State { return o.state }

// Singular reports whether the input was a single record or row, as opposed
// to a collection.
func (o *Orchestrator) Singular() bool { return o.singular }

// Len returns the number of input rows.
func (o *Orchestrator) Len() int { return len(o.rows) }

// Containers returns one container per input row, in row order.
func (o *Orchestrator) Containers() []*Container { return o.containers }

// Container returns the container for the i-th row.
func (o *Orchestrator) Container(i int) *Container { return o.containers[i] }

// UIDs returns, per row, the identifiers for the given providers (all
// providers when none are given).
func (o *Orchestrator) UIDs(ids ...provider.ID) [][]string {
	uids := make([][]string, len(o.containers))
	for i, c := range o.containers {
		uids[i] = c.UIDs(ids...)
	}
	return uids
}

// DownloadOptions controls an orchestrated download.
type DownloadOptions struct {
	// Dir is the destination directory. Empty means the current directory.
	Dir string

	// Cache reuses existing local files whose size matches the expected
	// content length.
	Cache bool

	// Progress receives byte-count updates for the transfer in flight.
	// May be nil.
	Progress transfer.Progress

	// Journal records every download attempt when non-nil.
	Journal *store.Journal

	// OnPoint is called before each transfer attempt with the row index and
	// the access point identifier. May be nil.
	OnPoint func(row int, uid string)
}

// Result is the per-row outcome of a download: the local path on success, or
// an empty path plus the failure message of every candidate tried.
type Result struct {
	Path     string
	Messages []string
}

// Failed reports whether no candidate produced a file.
func (r Result) Failed() bool { return r.Path == "" }

// Download fetches each row's dataset from the given provider, probing that
// provider's access points in container order and transferring from the
// first reachable one. Rows for which the provider has no data or every
// candidate fails get an empty path and recorded messages rather than an
// error; Download returns an error only for structurally invalid requests.
func (o *Orchestrator) Download(ctx context.Context, id provider.ID, opts DownloadOptions) ([]Result, error) {
	if o.state != StateReady {
		return nil, fmt.Errorf("orchestrator is %s, not ready: %w", o.state, ErrInvalidInput)
	}
	if !provider.Supported(id) {
		return nil, fmt.Errorf("%q: %w", id, provider.ErrUnsupportedProvider)
	}
	log := o.opts.logger()

	results := make([]Result, len(o.containers))
	for i, c := range o.containers {
		res := &results[i]

		aps, ok := c.Get(id)
		if !ok || len(aps) == 0 {
			res.Messages = append(res.Messages, fmt.Sprintf("no data from provider %s", id))
			continue
		}

		for _, ap := range aps {
			reachable, msg := ap.Accessible(ctx)
			if !reachable {
				res.Messages = append(res.Messages, fmt.Sprintf("%s: %s", ap.UID(), msg))
				log.Debug("access point unreachable", "uid", ap.UID(), "message", msg)
				continue
			}

			if opts.OnPoint != nil {
				opts.OnPoint(i, ap.UID())
			}
			key := o.journalBegin(opts.Journal, ap)
			path, err := ap.Download(ctx, provider.DownloadOptions{
				Dir:      opts.Dir,
				Cache:    opts.Cache,
				Progress: opts.Progress,
			})
			if err != nil {
				res.Messages = append(res.Messages, fmt.Sprintf("%s: %s", ap.UID(), err))
				log.Debug("download failed", "uid", ap.UID(), "error", err)
				o.journalFail(opts.Journal, key, err)
				continue
			}

			o.journalComplete(opts.Journal, key, path)
			res.Path = path
			log.Debug("download complete", "uid", ap.UID(), "path", path)
			break
		}
	}
	return results, nil
}

// Journal bookkeeping is best effort: a journal write failure never aborts a
// transfer.

func (o *Orchestrator) journalBegin(j *store.Journal, ap provider.AccessPoint) string {
	if j == nil {
		return ""
	}
	key, err := j.Begin(string(ap.Provider()), ap.UID())
	if err != nil {
		o.opts.logger().Debug("journal begin failed", "uid", ap.UID(), "error", err)
		return ""
	}
	return key
}

func (o *Orchestrator) journalFail(j *store.Journal, key string, cause error) {
	if j == nil || key == "" {
		return
	}
	if err := j.Fail(key, cause.Error()); err != nil {
		o.opts.logger().Debug("journal fail failed", "key", key, "error", err)
	}
}

func (o *Orchestrator) journalComplete(j *store.Journal, key, path string) {
	if j == nil || key == "" {
		return
	}
	var bytes int64
	if st, err := os.Stat(path); err == nil {
		bytes = st.Size()
	}
	checksum, err := transfer.FileChecksum(path, nil)
	if err != nil {
		o.opts.logger().Debug("journal checksum failed", "path", path, "error", err)
	}
	if err := j.Complete(key, path, bytes, checksum); err != nil {
		o.opts.logger().Debug("journal complete failed", "key", key, "error", err)
	}
}
