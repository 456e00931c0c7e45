package resolver

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"deptportal/internal/category"
	"deptportal/internal/model"
)

var ErrMissingOwnerIdentifier = errors.New("owner identifier is required")

const dirPerm = 0o750

// Destination is where an accepted upload will be written.
type Destination struct {
	// Dir is the absolute directory path.
	Dir string
	// RelDir is Dir relative to the public root, slash separated.
	RelDir  string
	OwnerID string
}

// Resolver derives per-category, per-owner storage directories under a public root.
// It is safe for concurrent use.
type Resolver struct {
	root string
}

// New returns a Resolver rooted at root. Relative roots are made absolute once, here.
func New(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve public root: %w", err)
	}
	return &Resolver{root: abs}, nil
}

// Root returns the absolute public root.
func (r *Resolver) Root() string { return r.root }

// ResolveOwner picks the owner id: route param, then body, then query, then session.
// Blank candidates are skipped.
func ResolveOwner(src model.OwnerSources) (string, error) {
	for _, c := range []string{src.Route, src.Body, src.Query, src.Session} {
		if v := strings.TrimSpace(c); v != "" {
			return v, nil
		}
	}
	return "", ErrMissingOwnerIdentifier
}

// SanitizeOwnerID rewrites path separators so the id is always exactly one directory segment.
func SanitizeOwnerID(id string) string {
	id = strings.NewReplacer("/", "_", `\`, "_").Replace(id)
	if id == "." || id == ".." {
		return strings.Repeat("_", len(id))
	}
	return id
}

// Plan computes the destination without touching the filesystem.
func (r *Resolver) Plan(p category.Policy, src model.OwnerSources) (Destination, error) {
	owner, err := ResolveOwner(src)
	if err != nil {
		return Destination{}, err
	}
	owner = SanitizeOwnerID(owner)
	rel := path.Clean(p.DirectoryTemplate(owner))
	return Destination{
		Dir:     filepath.Join(r.root, filepath.FromSlash(rel)),
		RelDir:  rel,
		OwnerID: owner,
	}, nil
}

// Ensure creates the destination directory chain. Existing directories, including ones
// created concurrently by another request, are not an error.
func (r *Resolver) Ensure(d Destination) error {
	if err := os.MkdirAll(d.Dir, dirPerm); err != nil {
		return fmt.Errorf("create upload directory: %w", err)
	}
	return nil
}

// ResolveDestination plans the destination and creates its directory.
func (r *Resolver) ResolveDestination(p category.Policy, src model.OwnerSources) (Destination, error) {
	d, err := r.Plan(p, src)
	if err != nil {
		return Destination{}, err
	}
	if err := r.Ensure(d); err != nil {
		return Destination{}, err
	}
	return d, nil
}

// Filename builds {base}_{unixMillis}{ext}. The extension is kept exactly as supplied.
func Filename(original string, now time.Time) string {
	name := path.Base(strings.ReplaceAll(original, `\`, "/"))
	if name == "." || name == "/" {
		name = ""
	}
	ext := path.Ext(name)
	base := sanitizeBase(strings.TrimSuffix(name, ext))
	return base + "_" + strconv.FormatInt(now.UnixMilli(), 10) + ext
}

func sanitizeBase(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			return r
		}
		return '_'
	}, name)
	name = strings.Trim(name, ".")
	if r := []rune(name); len(r) > 80 {
		name = string(r[:80])
	}
	if name == "" {
		return "file"
	}
	return name
}
