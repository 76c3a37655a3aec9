// Package provider defines storage providers and the access points they
// serve. An access point is one concrete, independently reachable location
// for a dataset's bytes: an HTTP(S) URL on an on-prem server, an object in an
// S3 bucket, and so on. New providers register a parameter schema and a
// factory; discovery and orchestration code never needs to change.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/voaccess/vocloud/transfer"
)

// ID identifies a storage provider class.
type ID string

const (
	// Prem is the on-premises HTTP(S) provider.
	Prem ID = "prem"
	// AWS is the Amazon S3 object-storage provider.
	AWS ID = "aws"
)

var (
	// ErrUnsupportedProvider is returned when an unknown provider is requested.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrMalformedUID is returned when an identifier does not match the
	// provider's canonical scheme.
	ErrMalformedUID = errors.New("malformed access point identifier")

	// ErrConfiguration is returned for bad or incomplete access point
	// construction arguments.
	ErrConfiguration = errors.New("invalid access point configuration")

	// ErrDownload wraps transport failures during a download.
	ErrDownload = errors.New("download failed")
)

// AccessPoint is a single checkable, downloadable location for a dataset.
type AccessPoint interface {
	// Provider returns the provider this access point belongs to.
	Provider() ID

	// UID returns the canonical identifier of the physical location: the URL
	// for on-prem, s3://bucket/key for S3. It is the deduplication key and is
	// immutable after construction.
	UID() string

	// Accessible performs a lightweight existence probe and reports
	// (reachable, message). The result is memoized for the lifetime of the
	// instance; callers needing a fresh probe construct a new access point.
	// It never returns an error: transport and auth failures are captured in
	// the message with reachable=false.
	Accessible(ctx context.Context) (bool, string)

	// Download transfers the dataset to a local file and returns its path.
	// It does not retry; fallback across access points is the caller's job.
	Download(ctx context.Context, opts DownloadOptions) (string, error)
}

// DownloadOptions controls a single transfer.
type DownloadOptions struct {
	// LocalPath is the destination file. If empty, the base name of the
	// remote object is used, placed in Dir.
	LocalPath string

	// Dir is the destination directory used when LocalPath is empty.
	// Empty means the current directory.
	Dir string

	// Cache reuses an existing local file when its size matches the expected
	// content length.
	Cache bool

	// Progress receives byte-count updates. May be nil.
	Progress transfer.Progress
}

// Meta carries provider-specific access metadata supplied by the caller,
// such as a credential profile name. Keys depend on the provider.
type Meta map[string]string

// Factory builds an access point from a parameter set and caller metadata.
// Exactly one of the primary parameter (the bare identifier) or the full
// parameter set must be present; see the variant constructors.
type Factory func(params map[string]string, meta Meta) (AccessPoint, error)

type entry struct {
	schema  []string
	factory Factory
}

// registry maps each provider to its ordered parameter schema and factory.
// The first schema entry is the primary parameter: the one usable as a bare
// identifier.
var registry = map[ID]entry{
	Prem: {schema: []string{"url"}, factory: newPremFromParams},
	AWS:  {schema: []string{"uri", "bucket", "key"}, factory: newS3FromParams},
}

// order preserves deterministic provider iteration for discovery.
var order = []ID{Prem, AWS}

// Register adds a provider. Intended for future providers; the built-in ones
// are registered statically.
func Register(id ID, schema []string, factory Factory) {
	if _, ok := registry[id]; !ok {
		order = append(order, id)
	}
	registry[id] = entry{schema: schema, factory: factory}
}

// Registered returns all provider IDs in registration order.
func Registered() []ID {
	ids := make([]ID, len(order))
	copy(ids, order)
	return ids
}

// Supported reports whether the provider is registered.
func Supported(id ID) bool {
	_, ok := registry[id]
	return ok
}

// SchemaFor returns the ordered parameter names for a provider. The first
// entry is the primary parameter.
func SchemaFor(id ID) ([]string, error) {
	e, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrUnsupportedProvider)
	}
	schema := make([]string, len(e.schema))
	copy(schema, e.schema)
	return schema, nil
}

// New builds an access point for the given provider from a parameter set.
func New(id ID, params map[string]string, meta Meta) (AccessPoint, error) {
	e, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrUnsupportedProvider)
	}
	return e.factory(params, meta)
}

// NewFromUID builds an access point from the provider's bare identifier.
func NewFromUID(id ID, uid string, meta Meta) (AccessPoint, error) {
	e, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrUnsupportedProvider)
	}
	return e.factory(map[string]string{e.schema[0]: uid}, meta)
}
