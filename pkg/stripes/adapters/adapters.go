// Package adapters mounts a stripes dispatcher on third-party routers so it
// can share a server with routes the framework already serves.
package adapters

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/stripes-go/stripes/pkg/stripes/controller"
)

// Router is a web framework able to host an http.Handler under a prefix
type Router interface {
	// Mount routes every method for prefix and everything below it to h
	Mount(prefix string, h http.Handler)

	// Server lifecycle
	Start(addr string) error
	Stop(ctx context.Context) error

	// Name returns the framework name
	Name() string
}

// MountBindings mounts h under the literal prefix of every registered URL
// binding and returns the prefixes in sorted order
func MountBindings(r Router, beans *controller.Registry, h http.Handler) []string {
	seen := make(map[string]bool)
	var prefixes []string
	for _, b := range beans.Beans() {
		prefix := b.Binding.Path
		if seen[prefix] {
			continue
		}
		seen[prefix] = true
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	for _, prefix := range prefixes {
		r.Mount(prefix, h)
	}
	return prefixes
}

// routeBase normalizes prefix into the exact route a binding answers on.
// The root prefix yields "", which has only the catch-all route.
func routeBase(prefix string) string {
	base := strings.TrimSuffix(prefix, "/")
	if base != "" && !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return base
}
