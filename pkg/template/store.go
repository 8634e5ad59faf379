// Package template loads the fixed document template set and its binary
// assets from disk at process start. The store is immutable after
// construction; a process restart is required to pick up template changes.
package template

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Document type keys. One template file per key, except the content pillars
// which key by weekday.
const (
	DocStory             = "story"
	DocPost45            = "post-4x5"
	DocCatalog           = "catalog"
	DocLeasingCatalog    = "leasing-catalog"
	DocLeasingCatalogAlt = "leasing-catalog-alt"
	DocConsignment       = "consignment-agreement"
	DocDamageReport      = "damage-report"
)

// ContentPillarDoc returns the document key for a weekday's content pillar
// template ("content-pillar-tuesday").
func ContentPillarDoc(dayOfWeek string) string {
	return "content-pillar-" + strings.ToLower(strings.TrimSpace(dayOfWeek))
}

// Sentinel errors.
var (
	ErrTemplateNotFound  = errors.New("template not found")
	ErrTemplateUnloaded  = errors.New("template failed to load at startup")
	ErrRequiredTemplates = errors.New("required template missing")
)

// requiredDocs must load or the process refuses to start. A renderer that
// silently 500s on one document type is worse than a visible startup failure.
var requiredDocs = []string{
	DocStory,
	DocPost45,
	DocCatalog,
	DocLeasingCatalog,
	DocConsignment,
	"content-pillar-monday",
	"content-pillar-tuesday",
	"content-pillar-wednesday",
	"content-pillar-thursday",
	"content-pillar-friday",
	"content-pillar-saturday",
	"content-pillar-sunday",
}

// optionalDocs degrade to a per-endpoint error at request time when missing.
var optionalDocs = []string{
	DocLeasingCatalogAlt,
	DocDamageReport,
}

// Assets inlined as data URIs so resolved documents never fetch static files
// over the network during render.
var knownAssets = map[string]struct {
	file     string
	required bool
}{
	"ASSET_LOGO":       {file: "logo.png", required: true},
	"ASSET_BG_LEASING": {file: "backgrounds/leasing-bg.png", required: false},
	"ASSET_FONT_BRAND": {file: "fonts/brand.woff2", required: false},
}

// Store holds every template and inlined asset, loaded once at startup.
type Store struct {
	templates map[string]string
	loadErrs  map[string]string
	assets    map[string]string
}

// NewStore reads the full template set from templatesDir and the binary
// assets from assetsDir. A missing required template or asset is fatal;
// optional ones are recorded as unavailable.
func NewStore(templatesDir, assetsDir string) (*Store, error) {
	s := &Store{
		templates: make(map[string]string),
		loadErrs:  make(map[string]string),
		assets:    make(map[string]string),
	}

	var missing []string
	for _, doc := range requiredDocs {
		if err := s.loadTemplate(templatesDir, doc); err != nil {
			missing = append(missing, fmt.Sprintf("%s (%v)", doc, err))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrRequiredTemplates, strings.Join(missing, "; "))
	}

	for _, doc := range optionalDocs {
		if err := s.loadTemplate(templatesDir, doc); err != nil {
			log.Printf("[TEMPLATES] WARNING: optional template %q unavailable: %v", doc, err)
			s.loadErrs[doc] = err.Error()
		}
	}

	for name, spec := range knownAssets {
		uri, err := loadAssetURI(filepath.Join(assetsDir, spec.file))
		if err != nil {
			if spec.required {
				return nil, fmt.Errorf("required asset %s: %w", spec.file, err)
			}
			log.Printf("[TEMPLATES] WARNING: optional asset %q unavailable: %v", spec.file, err)
			continue
		}
		s.assets[name] = uri
	}

	log.Printf("[TEMPLATES] Loaded %d template(s), %d asset(s) from %s", len(s.templates), len(s.assets), templatesDir)
	return s, nil
}

func (s *Store) loadTemplate(dir, doc string) error {
	b, err := os.ReadFile(filepath.Join(dir, doc+".html"))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return fmt.Errorf("template file is empty")
	}
	s.templates[doc] = string(b)
	return nil
}

// Template returns the markup for a document type. Optional templates that
// failed to load report ErrTemplateUnloaded so their endpoint can answer
// with a precise error instead of a blind lookup failure.
func (s *Store) Template(doc string) (string, error) {
	if tpl, ok := s.templates[doc]; ok {
		return tpl, nil
	}
	if reason, ok := s.loadErrs[doc]; ok {
		return "", fmt.Errorf("%w: %s: %s", ErrTemplateUnloaded, doc, reason)
	}
	return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, doc)
}

// Asset returns the data URI for a named asset.
func (s *Store) Asset(name string) (string, bool) {
	uri, ok := s.assets[name]
	return uri, ok
}

// AssetFields returns every inlined asset keyed by its placeholder name, for
// merging into a substitution field map. Missing optional assets map to ""
// so templates can guard on them with conditional blocks.
func (s *Store) AssetFields() map[string]any {
	fields := make(map[string]any, len(knownAssets))
	for name := range knownAssets {
		fields[name] = s.assets[name]
	}
	return fields
}

// Available reports load status per document type, for the health endpoint.
func (s *Store) Available() map[string]bool {
	status := make(map[string]bool, len(requiredDocs)+len(optionalDocs))
	for _, doc := range requiredDocs {
		_, ok := s.templates[doc]
		status[doc] = ok
	}
	for _, doc := range optionalDocs {
		_, ok := s.templates[doc]
		status[doc] = ok
	}
	return status
}

// loadAssetURI reads a binary asset and encodes it as a base64 data URI.
func loadAssetURI(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return "data:" + mimeFor(path) + ";base64," + base64.StdEncoding.EncodeToString(b), nil
}

func mimeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".svg":
		return "image/svg+xml"
	case ".woff2":
		return "font/woff2"
	case ".woff":
		return "font/woff"
	case ".ttf":
		return "font/ttf"
	}
	return "application/octet-stream"
}
