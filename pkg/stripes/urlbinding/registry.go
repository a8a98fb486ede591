package urlbinding

import (
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/stripes-go/stripes/internal/errors"
)

// Registry maps bean types and request paths to bindings. It is written at
// registration time and read concurrently during dispatch.
type Registry struct {
	mu        sync.RWMutex
	logger    *slog.Logger
	types     map[reflect.Type]*Binding
	paths     map[string]*Binding
	conflicts map[string][]string
	prefixes  map[string][]*Binding
	// prefix keys sorted longest first, then lexically
	prefixOrder []string
}

// NewRegistry creates an empty binding registry
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:    logger,
		types:     make(map[reflect.Type]*Binding),
		paths:     make(map[string]*Binding),
		conflicts: make(map[string][]string),
		prefixes:  make(map[string][]*Binding),
	}
}

// Register indexes a binding by its exact paths and prefixes. Registering a
// bean type again replaces its previous binding.
func (r *Registry) Register(b *Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.register(b)
}

func (r *Registry) register(b *Binding) {
	if _, exists := r.types[b.BeanType]; exists {
		r.remove(b.BeanType)
	}

	for _, path := range cachedPaths(b) {
		r.cachePath(path, b)
	}
	for _, prefix := range cachedPrefixes(b) {
		r.cachePrefix(prefix, b)
	}
	r.types[b.BeanType] = b
}

// Remove drops a bean type's binding. Paths that were in conflict only
// because of this binding are handed back to the surviving binding.
func (r *Registry) Remove(beanType reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.remove(beanType)
}

func (r *Registry) remove(beanType reflect.Type) {
	b, ok := r.types[beanType]
	if !ok {
		return
	}

	var resolved []*Binding
	for _, path := range cachedPaths(b) {
		delete(r.paths, path)

		list, conflicted := r.conflicts[path]
		if !conflicted {
			continue
		}
		list = removeString(list, b.String())
		if len(list) == 1 {
			if survivor := r.byPattern(list[0], beanType); survivor != nil {
				resolved = append(resolved, survivor)
			}
			list = nil
		}
		if len(list) == 0 {
			delete(r.conflicts, path)
		} else {
			r.conflicts[path] = list
		}
	}

	for _, prefix := range cachedPrefixes(b) {
		bindings := r.prefixes[prefix]
		for i, candidate := range bindings {
			if candidate == b {
				bindings = append(bindings[:i], bindings[i+1:]...)
				break
			}
		}
		if len(bindings) == 0 {
			delete(r.prefixes, prefix)
			r.sortPrefixes()
		} else {
			r.prefixes[prefix] = bindings
		}
	}

	delete(r.types, beanType)

	for _, survivor := range resolved {
		r.logger.Debug("resolved binding conflict", "binding", survivor.String())
		r.remove(survivor.BeanType)
		r.register(survivor)
	}
}

func (r *Registry) byPattern(pattern string, exclude reflect.Type) *Binding {
	for t, b := range r.types {
		if t != exclude && b.String() == pattern {
			return b
		}
	}
	return nil
}

// cachePath maps an exact path to a binding, or poisons it on conflict
func (r *Registry) cachePath(path string, b *Binding) {
	existing, exists := r.paths[path]
	if !exists {
		r.logger.Debug("wiring path", "path", path, "bean", typeName(b.BeanType), "binding", b.String())
		r.paths[path] = b
		return
	}

	list, conflicted := r.conflicts[path]
	if !conflicted {
		list = []string{existing.String()}
	}
	r.logger.Warn("binding path conflict", "path", path, "bean", typeName(b.BeanType),
		"binding", b.String(), "conflicts", list)
	r.conflicts[path] = append(list, b.String())
	r.paths[path] = nil
}

func (r *Registry) cachePrefix(prefix string, b *Binding) {
	bindings, exists := r.prefixes[prefix]
	for _, existing := range bindings {
		if compareBindings(existing, b) == 0 {
			return
		}
	}

	bindings = append(bindings, b)
	sort.SliceStable(bindings, func(i, j int) bool {
		return compareBindings(bindings[i], bindings[j]) < 0
	})
	r.prefixes[prefix] = bindings
	if !exists {
		r.sortPrefixes()
	}
}

func (r *Registry) sortPrefixes() {
	order := make([]string, 0, len(r.prefixes))
	for prefix := range r.prefixes {
		order = append(order, prefix)
	}
	sort.Slice(order, func(i, j int) bool {
		if len(order[i]) != len(order[j]) {
			return len(order[i]) > len(order[j])
		}
		return order[i] < order[j]
	})
	r.prefixOrder = order
}

// Lookup returns the prototype binding registered for a bean type
func (r *Registry) Lookup(beanType reflect.Type) (*Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.types[beanType]
	return b, ok
}

// Match returns the prototype binding that best matches uri, or nil when
// nothing matches. Ambiguous matches return a BindingConflict error.
func (r *Registry) Match(uri string) (*Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if b := r.paths[uri]; b != nil {
		return b, nil
	}
	if list, conflicted := r.conflicts[uri]; conflicted {
		return nil, errors.BindingConflict(uri, list)
	}

	var candidates []*Binding
	for _, prefix := range r.prefixOrder {
		if strings.HasPrefix(uri, prefix) {
			candidates = r.prefixes[prefix]
			break
		}
	}

	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return candidates[0], nil
	}

	// deepest literal match wins, then fewest components
	var (
		prototype     *Binding
		conflicts     []string
		maxIndex      int
		minComponents = int(^uint(0) >> 1)
	)
	for _, b := range candidates {
		idx := len(b.Path)
		for _, c := range b.Components {
			if !c.IsLiteral() {
				continue
			}
			at := indexFrom(uri, c.Literal, idx)
			if at < 0 {
				break
			}
			idx = at + len(c.Literal)
		}

		count := len(b.Components)
		switch {
		case idx > maxIndex:
			conflicts = nil
			minComponents = count
			prototype = b
			maxIndex = idx
		case idx == maxIndex && count < minComponents:
			conflicts = nil
			minComponents = count
			prototype = b
		case idx == maxIndex && count == minComponents:
			if conflicts == nil && prototype != nil {
				conflicts = []string{prototype.String()}
			}
			conflicts = append(conflicts, b.String())
			prototype = nil
		}
	}

	if prototype == nil {
		return nil, errors.BindingConflict(uri, conflicts)
	}
	return prototype, nil
}

// Bind matches uri and returns a live copy of the binding whose parameters
// carry the values extracted from uri. Unmatched parameters keep defaults.
func (r *Registry) Bind(uri string) (*Binding, error) {
	prototype, err := r.Match(uri)
	if err != nil || prototype == nil {
		return nil, err
	}
	return Extract(prototype, uri), nil
}

// Extract copies prototype and fills in parameter values from uri. Each
// parameter captures the text up to the next literal; the last parameter
// captures the remainder.
func Extract(prototype *Binding, uri string) *Binding {
	b := prototype.live()

	// ignore trailing slashes and the literal suffix
	s := strings.TrimRight(uri, "/")
	if suffix := strings.TrimRight(b.Suffix, "/"); suffix != "" && strings.HasSuffix(s, suffix) {
		s = s[:len(s)-len(suffix)]
	}

	index := len(b.Path)
	var current *Parameter
	for _, c := range b.Components {
		if index >= len(s) {
			break
		}
		if !c.IsLiteral() {
			current = c.Param
			continue
		}

		var value string
		if end := indexFrom(s, c.Literal, index); end >= 0 {
			value = s[index:end]
			index = end + len(c.Literal)
		} else {
			value = s[index:]
			index = len(s)
		}
		if current != nil && value != "" {
			current.Value = value
		}
		current = nil
	}

	if current != nil && index < len(s) {
		current.Value = s[index:]
	}
	return b
}

// Bindings returns every registered prototype, sorted by pattern
func (r *Registry) Bindings() []*Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bindings := make([]*Binding, 0, len(r.types))
	for _, b := range r.types {
		bindings = append(bindings, b)
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].String() < bindings[j].String() })
	return bindings
}

// Conflicts returns each exact path claimed by more than one binding
func (r *Registry) Conflicts() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(r.conflicts))
	for path, list := range r.conflicts {
		out[path] = append([]string(nil), list...)
	}
	return out
}

// cachedPaths lists the request paths wired directly to a binding
func cachedPaths(b *Binding) []string {
	paths := map[string]struct{}{
		b.Path:     {},
		b.String(): {},
	}
	if !strings.HasSuffix(b.Path, "/") {
		paths[b.Path+"/"] = struct{}{}
	}
	if b.Suffix != "" {
		paths[b.Path+b.Suffix] = struct{}{}
	}
	return sortedKeys(paths)
}

// cachedPrefixes lists the path prefixes that could map to a binding
func cachedPrefixes(b *Binding) []string {
	prefixes := make(map[string]struct{})
	if strings.HasSuffix(b.Path, "/") {
		prefixes[b.Path] = struct{}{}
	} else {
		prefixes[b.Path+"/"] = struct{}{}
	}
	if len(b.Components) > 0 && b.Components[0].IsLiteral() {
		prefixes[b.Path+b.Components[0].Literal] = struct{}{}
	}
	return sortedKeys(prefixes)
}

func compareBindings(a, b *Binding) int {
	if d := len(a.Components) - len(b.Components); d != 0 {
		return d
	}
	return strings.Compare(a.String(), b.String())
}

func indexFrom(s, substr string, from int) int {
	if from > len(s) {
		return -1
	}
	at := strings.Index(s[from:], substr)
	if at < 0 {
		return -1
	}
	return at + from
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func removeString(list []string, s string) []string {
	for i, v := range list {
		if v == s {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
