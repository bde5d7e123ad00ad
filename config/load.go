package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Load reads a configuration directory:
//
//	global.json
//	profiles/<name>.json
//	pages/<name>.json
//	setlists/<name>.json
//
// Missing global settings fall back to defaults; a missing startup profile or
// page is reported to the caller and otherwise tolerated. Page ids are
// discovered in sorted order.
func Load(dir string) (*Config, error) {
	c := New()
	c.dir = dir

	if err := readJSON(filepath.Join(dir, "global.json"), &c.Global); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("global config: %w", err)
		}
	}

	if err := c.discoverPages(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadProfile reads and activates a profile by name.
func (c *Config) LoadProfile(name string) error {
	var p Profile
	if err := readJSON(filepath.Join(c.dir, "profiles", name+".json"), &p); err != nil {
		return fmt.Errorf("profile %q: %w", name, err)
	}
	if p.Name == "" {
		p.Name = name
	}
	for key, param := range p.Params {
		if param.Name == "" {
			param.Name = key
			p.Params[key] = param
		}
	}
	c.Profile = &p
	return nil
}

// LoadSetlist reads and activates a setlist by name.
func (c *Config) LoadSetlist(name string) error {
	var s Setlist
	if err := readJSON(filepath.Join(c.dir, "setlists", name+".json"), &s); err != nil {
		return fmt.Errorf("setlist %q: %w", name, err)
	}
	if s.Name == "" {
		s.Name = name
	}
	c.Setlist = &s
	return nil
}

func (c *Config) discoverPages() error {
	entries, err := os.ReadDir(filepath.Join(c.dir, "pages"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("pages dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)
	c.PageIDs = ids
	return nil
}

// page returns a cached page or reads it from disk.
func (c *Config) page(id string) (*Page, error) {
	if p, ok := c.pages[id]; ok {
		return p, nil
	}
	var p Page
	if err := readJSON(filepath.Join(c.dir, "pages", id+".json"), &p); err != nil {
		return nil, fmt.Errorf("page %q: %w", id, err)
	}
	if p.Name == "" {
		p.Name = id
	}
	c.pages[id] = &p
	return &p, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}
