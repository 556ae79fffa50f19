package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/golang-migrate/migrate/v4/source"
)

var upTemplate = template.Must(template.New("up").Parse(`-- {{printf "%06d" .Version}}_{{.Name}}
-- Created: {{.Created}}
{{- if .Description}}
-- {{.Description}}
{{- end}}

BEGIN;

COMMIT;
`))

var downTemplate = template.Must(template.New("down").Parse(`-- {{printf "%06d" .Version}}_{{.Name}} rollback
-- Created: {{.Created}}

BEGIN;

COMMIT;
`))

// Migration is one versioned pair of up/down files
type Migration struct {
	Version     uint
	Name        string
	Description string
	Created     string
	UpPath      string
	DownPath    string
}

// Base returns the file name shared by the up and down files
func (m Migration) Base() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

// CreateMigration writes the next sequential migration pair into dir
func CreateMigration(dir, name, description string) (*Migration, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	existing, err := ListMigrations(dir)
	if err != nil {
		return nil, err
	}
	var version uint = 1
	if n := len(existing); n > 0 {
		version = existing[n-1].Version + 1
	}

	m := &Migration{
		Version:     version,
		Name:        slug,
		Description: description,
		Created:     time.Now().UTC().Format(time.RFC3339),
	}
	m.UpPath = filepath.Join(dir, m.Base()+".up.sql")
	m.DownPath = filepath.Join(dir, m.Base()+".down.sql")

	if err := writeTemplate(m.UpPath, upTemplate, m); err != nil {
		return nil, err
	}
	if err := writeTemplate(m.DownPath, downTemplate, m); err != nil {
		_ = os.Remove(m.UpPath)
		return nil, err
	}
	return m, nil
}

func writeTemplate(path string, tmpl *template.Template, m *Migration) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := tmpl.Execute(f, m); err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	return nil
}

// sanitizeName lowercases name, joins words with underscores and drops
// everything that is not a letter or digit
func sanitizeName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})
	parts := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
				return r
			case r >= 'A' && r <= 'Z':
				return r + 'a' - 'A'
			}
			return -1
		}, w)
		if w != "" {
			parts = append(parts, w)
		}
	}
	return strings.Join(parts, "_")
}

// ListMigrations returns the migrations in dir ordered by version.
// Only versions with an up file are listed; a missing dir yields none.
func ListMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	byVersion := make(map[uint]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parsed, err := source.Parse(entry.Name())
		if err != nil {
			continue
		}
		m, ok := byVersion[parsed.Version]
		if !ok {
			m = &Migration{Version: parsed.Version, Name: parsed.Identifier}
			byVersion[parsed.Version] = m
		}
		path := filepath.Join(dir, parsed.Raw)
		if parsed.Direction == source.Up {
			m.UpPath = path
		} else {
			m.DownPath = path
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpPath != "" {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
