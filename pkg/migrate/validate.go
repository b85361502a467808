package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	upMarker   = "-- +goose Up"
	downMarker = "-- +goose Down"
)

// ValidateDir checks filenames, duplicate versions and the goose Up/Down markers of a
// single dialect directory. It returns the migration filenames in version order.
func ValidateDir(dir string) ([]string, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return nil, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read file %q: %w", name, err)
		}
		txt := string(b)
		up := strings.Index(txt, upMarker)
		down := strings.Index(txt, downMarker)
		switch {
		case up < 0:
			return nil, fmt.Errorf("migration %q missing %q", name, upMarker)
		case down < 0:
			return nil, fmt.Errorf("migration %q missing %q", name, downMarker)
		case down < up:
			return nil, fmt.Errorf("migration %q has Down before Up", name)
		}
		names = append(names, name)
	}

	sort.Strings(names)
	return names, nil
}

// ValidateDialects validates every dialect directory under base and requires them to
// carry the same migrations, so a schema change never lands for one database only.
func ValidateDialects(base string) error {
	var (
		reference     []string
		referenceName string
	)
	for i, dialect := range Dialects {
		dir := DirFor(base, dialect)
		names, err := ValidateDir(dir)
		if err != nil {
			return fmt.Errorf("%s: %w", dialect, err)
		}
		if i == 0 {
			reference, referenceName = names, dialect
			continue
		}
		if missing := difference(reference, names); len(missing) > 0 {
			return fmt.Errorf("%s is missing %s", dialect, strings.Join(missing, ", "))
		}
		if missing := difference(names, reference); len(missing) > 0 {
			return fmt.Errorf("%s is missing %s", referenceName, strings.Join(missing, ", "))
		}
	}
	return nil
}

func difference(want, have []string) []string {
	present := make(map[string]struct{}, len(have))
	for _, name := range have {
		present[name] = struct{}{}
	}
	var missing []string
	for _, name := range want {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
