package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store holds parsed StructureDefinitions indexed by canonical URL. It resolves
// extension definitions for the converter.
type Store struct {
	mu    sync.RWMutex
	byURL map[string]*Definition
	order []string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{byURL: make(map[string]*Definition)}
}

// Add stores def. A definition without URL is kept under its label. A later definition
// with the same URL replaces the earlier one.
func (s *Store) Add(def *Definition) error {
	if def == nil || def.StructureDefinition == nil {
		return fmt.Errorf("structure definition is nil")
	}
	key := def.URL()
	if key == "" {
		key = def.Label()
	}
	if key == "" {
		return fmt.Errorf("structure definition has neither url nor name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byURL[key]; !exists {
		s.order = append(s.order, key)
	}
	s.byURL[key] = def
	return nil
}

// Lookup implements ExtensionResolver.
func (s *Store) Lookup(url string) (*Definition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.byURL[url]
	return def, ok
}

// Count returns the number of loaded StructureDefinitions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byURL)
}

// URLs returns all loaded URLs, sorted.
func (s *Store) URLs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	urls := make([]string, 0, len(s.byURL))
	for url := range s.byURL {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// Definitions returns the loaded definitions in load order.
func (s *Store) Definitions() []*Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]*Definition, 0, len(s.order))
	for _, key := range s.order {
		defs = append(defs, s.byURL[key])
	}
	return defs
}

// Clear removes all loaded StructureDefinitions.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byURL = make(map[string]*Definition)
	s.order = nil
}

// LoadFromFile loads StructureDefinitions from a JSON file holding either a single
// StructureDefinition or a Bundle.
func (s *Store) LoadFromFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	n, err := s.LoadFromJSON(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// LoadFromJSON loads StructureDefinitions from JSON data.
// Auto-detects Bundle vs single StructureDefinition format.
func (s *Store) LoadFromJSON(data []byte) (int, error) {
	var probe struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("invalid JSON: %w", err)
	}

	switch probe.ResourceType {
	case "Bundle":
		return s.LoadFromBundle(data)
	case "StructureDefinition":
		def, err := ParseDefinition(data)
		if err != nil {
			return 0, err
		}
		if err := s.Add(def); err != nil {
			return 0, err
		}
		return 1, nil
	default:
		return 0, fmt.Errorf("unsupported resourceType: %s", probe.ResourceType)
	}
}

// LoadFromBundle loads the StructureDefinition entries of a FHIR Bundle. Other entries
// and entries that fail to parse are skipped.
func (s *Store) LoadFromBundle(data []byte) (int, error) {
	var bundle struct {
		ResourceType string `json:"resourceType"`
		Entry        []struct {
			Resource json.RawMessage `json:"resource"`
		} `json:"entry"`
	}

	if err := json.Unmarshal(data, &bundle); err != nil {
		return 0, fmt.Errorf("failed to parse Bundle: %w", err)
	}
	if bundle.ResourceType != "Bundle" {
		return 0, fmt.Errorf("expected Bundle, got %s", bundle.ResourceType)
	}

	count := 0
	for _, entry := range bundle.Entry {
		if entry.Resource == nil {
			continue
		}
		def, err := ParseDefinition(entry.Resource)
		if err != nil {
			continue
		}
		if err := s.Add(def); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// LoadFromDirectory loads all StructureDefinition-*.json files of a directory. Files
// that fail to load are skipped.
func (s *Store) LoadFromDirectory(dirPath string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dirPath, "StructureDefinition-*.json"))
	if err != nil {
		return 0, fmt.Errorf("failed to glob directory: %w", err)
	}

	total := 0
	for _, file := range files {
		count, err := s.LoadFromFile(file)
		if err != nil {
			continue
		}
		total += count
	}
	return total, nil
}

// LoadResources loads raw StructureDefinition documents, such as those read from an NPM
// package. The first parse error is returned after every document has been tried.
func (s *Store) LoadResources(docs map[string][]byte) (int, error) {
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var firstErr error
	count := 0
	for _, k := range keys {
		def, err := ParseDefinition(docs[k])
		if err == nil {
			err = s.Add(def)
		}
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", strings.TrimSpace(k), err)
			}
			continue
		}
		count++
	}
	return count, firstErr
}

var _ ExtensionResolver = (*Store)(nil)
