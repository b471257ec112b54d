package pdftemplate

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rezonia/docexchange/internal/logging"
)

// LoadDir loads every *.yml and *.yaml template in dir, sorted by file
// name so detection order is stable across runs
func LoadDir(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yml" || ext == ".yaml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var templates []*Template
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		t, err := ParseTemplate(data)
		if err != nil {
			return nil, err
		}
		logging.WithField("template", t.Name).WithField("file", name).Debug("loaded template")
		templates = append(templates, t)
	}
	return templates, nil
}
