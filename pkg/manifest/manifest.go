// pkg/manifest/manifest.go
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmespath/go-jmespath"
	"gopkg.in/yaml.v3"
)

// Action maps an entity action to a downstream HTTP call.
type Action struct {
	Method string `json:"method" yaml:"method"`
	Path   string `json:"path" yaml:"path"`
	// Tier overrides the default action tier (1-5). Zero means "use the
	// default table".
	Tier int `json:"tier,omitempty" yaml:"tier,omitempty"`
	// Select is an optional JMESPath expression projecting the downstream
	// response; only meaningful for tier-2 report actions.
	Select string `json:"select,omitempty" yaml:"select,omitempty"`
}

// Entity describes one downstream entity and its available operations.
type Entity struct {
	Path    string            `json:"path" yaml:"path"`
	IDField *string           `json:"id_field" yaml:"id_field"` // nil => singleton
	Read    bool              `json:"read" yaml:"read"`
	Search  bool              `json:"search,omitempty" yaml:"search,omitempty"`
	Actions map[string]Action `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Singleton reports whether the entity has no id field and therefore
// rejects id-qualified calls.
func (e Entity) Singleton() bool { return e.IDField == nil }

// ActionNames returns the declared action names, sorted for stable error
// messages.
func (e Entity) ActionNames() []string {
	names := make([]string, 0, len(e.Actions))
	for n := range e.Actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Manifest is the validated, immutable description of the downstream API.
type Manifest struct {
	APIBaseURL string            `json:"api_base_url" yaml:"api_base_url"`
	Entities   map[string]Entity `json:"entities" yaml:"entities"`
}

var validMethods = map[string]struct{}{
	"GET": {}, "POST": {}, "PUT": {}, "PATCH": {}, "DELETE": {},
}

// Parse decodes and validates a manifest document. ext selects the codec
// (".json" or a YAML extension).
func Parse(b []byte, ext string) (*Manifest, error) {
	var m Manifest
	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("invalid JSON in manifest: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("invalid YAML in manifest: %w", err)
		}
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadFile reads and validates a manifest from disk.
func LoadFile(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest not found: %s", path)
	}
	return Parse(b, filepath.Ext(path))
}

func (m *Manifest) validate() error {
	if m.APIBaseURL == "" {
		return fmt.Errorf("manifest missing required field: api_base_url")
	}
	if len(m.Entities) == 0 {
		return fmt.Errorf("entities must be a non-empty object")
	}
	for name, e := range m.Entities {
		if err := validateEntity(name, e); err != nil {
			return err
		}
	}
	return nil
}

func validateEntity(name string, e Entity) error {
	if e.Path == "" {
		return fmt.Errorf("entity %q: path must be a non-empty string", name)
	}
	for actionName, a := range e.Actions {
		if err := validateAction(name, actionName, a, e); err != nil {
			return err
		}
	}
	return nil
}

func validateAction(entityName, actionName string, a Action, e Entity) error {
	if _, ok := validMethods[a.Method]; !ok {
		return fmt.Errorf("entity %q action %q: method must be one of GET, POST, PUT, PATCH, DELETE; got %q",
			entityName, actionName, a.Method)
	}
	if a.Path == "" {
		return fmt.Errorf("entity %q action %q: path must be a non-empty string", entityName, actionName)
	}
	if strings.Contains(a.Path, "{id}") && e.Singleton() {
		return fmt.Errorf("entity %q action %q: path uses {id} but entity declares no id_field",
			entityName, actionName)
	}
	if a.Tier < 0 || a.Tier > 5 {
		return fmt.Errorf("entity %q action %q: tier must be between 1 and 5", entityName, actionName)
	}
	if a.Select != "" {
		if _, err := jmespath.Compile(a.Select); err != nil {
			return fmt.Errorf("entity %q action %q: invalid select expression: %v", entityName, actionName, err)
		}
	}
	return nil
}
