package lifecycle

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/stripes-go/stripes/internal/errors"
	"github.com/stripes-go/stripes/pkg/stripes/action"
)

// AllStages is the stack key that applies to every stage
const AllStages = "all"

// Registry holds interceptors by name so stacks can be assembled from
// configuration
type Registry struct {
	mu           sync.RWMutex
	interceptors map[string]Interceptor
}

// NewRegistry creates an empty interceptor registry
func NewRegistry() *Registry {
	return &Registry{interceptors: make(map[string]Interceptor)}
}

// Register adds an interceptor under name
func (r *Registry) Register(name string, i Interceptor) error {
	if name == "" {
		return errors.RegisterError("interceptor", name, "name cannot be empty")
	}
	if i == nil {
		return errors.RegisterError("interceptor", name, "interceptor cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.interceptors[name]; exists {
		return errors.RegisterError("interceptor", name, "already registered")
	}
	r.interceptors[name] = i
	return nil
}

// Get retrieves an interceptor by name
func (r *Registry) Get(name string) (Interceptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.interceptors[name]
	return i, ok
}

// Names returns the registered names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.interceptors))
	for name := range r.interceptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every name is registered
func (r *Registry) Validate(names []string) error {
	var missing []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := r.Get(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errors.Newf(errors.ConfigurationErrorCode, "unknown interceptor(s): %s", strings.Join(missing, ", ")).
			WithSuggestion("registered interceptors: " + strings.Join(r.Names(), ", "))
	}
	return nil
}

// StackConfig maps a stage name, or "all", to interceptor names:
//
//	stacks:
//	  all: [logging]
//	  BindingAndValidation: [metrics, tracing]
type StackConfig struct {
	Stacks map[string][]string `yaml:"stacks"`
}

// LoadStackConfig decodes a YAML stack configuration
func LoadStackConfig(in io.Reader) (*StackConfig, error) {
	var cfg StackConfig
	if err := yaml.NewDecoder(in).Decode(&cfg); err != nil && err != io.EOF {
		return nil, errors.WrapConfigurationError("interceptors", "decode", err)
	}
	return &cfg, nil
}

// LoadStackConfigFile reads a YAML stack configuration from path
func LoadStackConfigFile(path string) (*StackConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapConfigurationError("interceptors", "open", err).WithContext("path", path)
	}
	defer f.Close()
	return LoadStackConfig(f)
}

// Build assembles stacks from cfg. Interceptors listed under "all" come
// first in every stage.
func (r *Registry) Build(cfg *StackConfig, logger *slog.Logger) (*Stacks, error) {
	stacks := NewStacks(logger)
	if cfg == nil {
		return stacks, nil
	}

	perStage := make(map[Stage][]string)
	var all []string
	for key, names := range cfg.Stacks {
		if err := r.Validate(names); err != nil {
			return nil, err
		}
		if strings.EqualFold(key, AllStages) {
			all = append(all, names...)
			continue
		}
		stage, err := action.ParseStage(key)
		if err != nil {
			return nil, errors.Wrap(errors.ConfigurationErrorCode, fmt.Sprintf("invalid stack %q", key), err)
		}
		perStage[stage] = append(perStage[stage], names...)
	}

	for _, stage := range action.Stages() {
		for _, name := range append(append([]string(nil), all...), perStage[stage]...) {
			if name = strings.TrimSpace(name); name == "" {
				continue
			}
			i, _ := r.Get(name)
			stacks.Add(named{name: name, Interceptor: i}, stage)
		}
	}
	return stacks, nil
}

// named gives a registered interceptor its registry name
type named struct {
	Interceptor
	name string
}

func (n named) Name() string { return n.name }
