// Package packages resolves the packages named by job preconditions and
// turns them into install steps for the host's package manager.
package packages

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Package is one installable package. Names maps a package manager to the
// name the package has in that manager's repositories.
type Package struct {
	Name        string            `yaml:"name"`
	Version     string            `yaml:"version"`
	Description string            `yaml:"description"`
	Names       map[string]string `yaml:"names"`
}

// NameFor returns the package's name under m, falling back to Name.
func (p Package) NameFor(m Manager) string {
	if n, ok := p.Names[string(m)]; ok && n != "" {
		return n
	}
	return p.Name
}

// Repository looks packages up by name.
type Repository interface {
	FindByName(name string) (Package, bool)
}

// Catalog is a Repository backed by a YAML document of the form:
//
//	packages:
//	  - name: python
//	    names:
//	      apt-get: python3
//	      brew: python@3.12
type Catalog struct {
	byName map[string]Package
}

type catalogFile struct {
	Packages []Package `yaml:"packages"`
}

// NewCatalog indexes pkgs by lower-cased name. Later entries win.
func NewCatalog(pkgs ...Package) *Catalog {
	c := &Catalog{byName: make(map[string]Package, len(pkgs))}
	for _, p := range pkgs {
		c.byName[strings.ToLower(p.Name)] = p
	}
	return c
}

// LoadCatalog reads a catalog file. A missing file yields an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewCatalog(), nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing package catalog: %w", err)
	}
	for i, p := range f.Packages {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("package catalog entry %d has no name", i)
		}
	}
	return NewCatalog(f.Packages...), nil
}

func (c *Catalog) FindByName(name string) (Package, bool) {
	p, ok := c.byName[strings.ToLower(name)]
	return p, ok
}

func (c *Catalog) Len() int {
	return len(c.byName)
}
