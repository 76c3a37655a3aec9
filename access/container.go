// Package access discovers and manages the access points of tabular data
// products: where a dataset's bytes live, across storage providers, and how
// to fetch them with fallback when a location is unreachable.
package access

import (
	"fmt"
	"strings"

	"github.com/voaccess/vocloud/provider"
)

// Container holds the access points of one logical record, grouped by
// provider in discovery order and deduplicated by identifier. A container is
// owned by exactly one record and never shared.
type Container struct {
	order  []provider.ID
	points map[provider.ID][]provider.AccessPoint
}

// NewContainer creates a container holding the given access points.
func NewContainer(aps ...provider.AccessPoint) *Container {
	c := &Container{points: make(map[provider.ID][]provider.AccessPoint)}
	c.Add(aps...)
	return c
}

// Add inserts access points, keeping insertion order per provider. Re-adding
// a point whose (provider, uid) pair is already present is a no-op. The
// membership check is linear; candidate counts per record are small.
func (c *Container) Add(aps ...provider.AccessPoint) {
	for _, ap := range aps {
		if ap == nil {
			continue
		}
		id := ap.Provider()
		bucket, seen := c.points[id]
		if !seen {
			c.order = append(c.order, id)
		}
		dup := false
		for _, existing := range bucket {
			if existing.UID() == ap.UID() {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		c.points[id] = append(bucket, ap)
	}
}

// Get returns the ordered access points for a provider. ok is false when the
// provider was never populated, which is distinct from populated-but-empty.
func (c *Container) Get(id provider.ID) (aps []provider.AccessPoint, ok bool) {
	aps, ok = c.points[id]
	return aps, ok
}

// UIDs returns the identifiers for the given providers, in container order.
// With no arguments it returns all providers' identifiers concatenated.
func (c *Container) UIDs(ids ...provider.ID) []string {
	if len(ids) == 0 {
		ids = c.order
	}
	var uids []string
	for _, id := range ids {
		for _, ap := range c.points[id] {
			uids = append(uids, ap.UID())
		}
	}
	return uids
}

// Providers returns the provider IDs present, in insertion order.
func (c *Container) Providers() []provider.ID {
	ids := make([]provider.ID, len(c.order))
	copy(ids, c.order)
	return ids
}

// Len returns the total number of access points.
func (c *Container) Len() int {
	n := 0
	for _, aps := range c.points {
		n += len(aps)
	}
	return n
}

func (c *Container) String() string {
	parts := make([]string, 0, len(c.order))
	for _, id := range c.order {
		parts = append(parts, fmt.Sprintf("%s:%d", id, len(c.points[id])))
	}
	return fmt.Sprintf("<Access: %s>", strings.Join(parts, ", "))
}

// Summary renders one line per access point, grouped by provider.
func (c *Container) Summary() string {
	var sb strings.Builder
	for _, id := range c.order {
		for _, ap := range c.points[id] {
			fmt.Fprintf(&sb, "|%-5s| %s\n", id, ap.UID())
		}
	}
	return sb.String()
}
