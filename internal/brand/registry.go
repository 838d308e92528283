package brand

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ErrUnknownBrand is returned when a brand key has no descriptor.
var ErrUnknownBrand = errors.New("unknown brand")

// Registry holds every loaded brand descriptor. It is immutable after Load.
type Registry struct {
	brands map[string]*Config
}

// Load reads brand descriptors from a JSON or YAML file keyed by brand key.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "brand: read %s", path)
	}

	raw := make(map[string]*Config)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "brand: parse %s", path)
	}

	return NewRegistry(raw)
}

// NewRegistry builds a registry from descriptors keyed by brand key, applying
// key normalisation and the built-in quirk defaults.
func NewRegistry(raw map[string]*Config) (*Registry, error) {
	r := &Registry{brands: make(map[string]*Config, len(raw))}
	for k, c := range raw {
		if c == nil {
			continue
		}
		key := NormalizeKey(k)
		c.Key = key
		c.Quirks = withDefaults(key, c.Quirks)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		r.brands[key] = c
	}
	return r, nil
}

// Get returns the descriptor for key, normalising it first.
func (r *Registry) Get(key string) (*Config, error) {
	c, ok := r.brands[NormalizeKey(key)]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownBrand, "brand %q", key)
	}
	return c, nil
}

// Keys returns every brand key in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.brands))
	for k := range r.brands {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DisplayNames returns the normalised display name of every brand, ordered
// by brand key.
func (r *Registry) DisplayNames() []string {
	keys := r.Keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = NormalizeBrand(r.brands[k].DisplayName)
	}
	return out
}

// MustHaveKeywords returns brand-consistency keyword overrides keyed by
// normalised display name. Brands without overrides are omitted.
func (r *Registry) MustHaveKeywords() map[string][]string {
	out := make(map[string][]string)
	for _, c := range r.brands {
		if len(c.MustHaveKeywords) > 0 {
			out[NormalizeBrand(c.DisplayName)] = c.MustHaveKeywords
		}
	}
	return out
}

// NormalizeKey lowercases a brand key and replaces spaces with underscores.
func NormalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "_")
}

// NormalizeBrand title-cases a brand display name so that lookups keyed by
// brand name are case-insensitive.
func NormalizeBrand(name string) string {
	return cases.Title(language.English).String(strings.TrimSpace(name))
}
