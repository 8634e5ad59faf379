package template

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tiny valid PNG header plus padding, enough for the data URI loader
var pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 16)...)

func writeFixtures(t *testing.T, skipDocs ...string) (templatesDir, assetsDir string) {
	t.Helper()
	templatesDir = t.TempDir()
	assetsDir = t.TempDir()

	skip := map[string]bool{}
	for _, doc := range skipDocs {
		skip[doc] = true
	}

	all := append(append([]string{}, requiredDocs...), optionalDocs...)
	for _, doc := range all {
		if skip[doc] {
			continue
		}
		path := filepath.Join(templatesDir, doc+".html")
		require.NoError(t, os.WriteFile(path, []byte("<html>{{TITLE}}</html>"), 0644))
	}

	require.NoError(t, os.WriteFile(filepath.Join(assetsDir, "logo.png"), pngBytes, 0644))
	return templatesDir, assetsDir
}

func TestNewStoreLoadsEverything(t *testing.T) {
	templatesDir, assetsDir := writeFixtures(t)

	s, err := NewStore(templatesDir, assetsDir)
	require.NoError(t, err)

	tpl, err := s.Template(DocStory)
	require.NoError(t, err)
	assert.Contains(t, tpl, "{{TITLE}}")

	for doc, ok := range s.Available() {
		assert.True(t, ok, "document %s should be loaded", doc)
	}
}

func TestNewStoreFailsOnMissingRequiredTemplate(t *testing.T) {
	templatesDir, assetsDir := writeFixtures(t, DocCatalog)

	_, err := NewStore(templatesDir, assetsDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), DocCatalog)
}

func TestNewStoreToleratesMissingOptionalTemplate(t *testing.T) {
	templatesDir, assetsDir := writeFixtures(t, DocDamageReport)

	s, err := NewStore(templatesDir, assetsDir)
	require.NoError(t, err)

	assert.False(t, s.Available()[DocDamageReport])

	_, err = s.Template(DocDamageReport)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplateUnloaded)
}

func TestNewStoreFailsOnMissingRequiredAsset(t *testing.T) {
	templatesDir, _ := writeFixtures(t)
	emptyAssets := t.TempDir()

	_, err := NewStore(templatesDir, emptyAssets)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logo.png")
}

func TestNewStoreFailsOnEmptyTemplateFile(t *testing.T) {
	templatesDir, assetsDir := writeFixtures(t)
	require.NoError(t, os.WriteFile(filepath.Join(templatesDir, DocStory+".html"), []byte("  \n"), 0644))

	_, err := NewStore(templatesDir, assetsDir)
	require.Error(t, err)
}

func TestAssetsAreInlinedAsDataURIs(t *testing.T) {
	templatesDir, assetsDir := writeFixtures(t)

	s, err := NewStore(templatesDir, assetsDir)
	require.NoError(t, err)

	uri, ok := s.Asset("ASSET_LOGO")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"), "got %q", uri[:30])

	// Missing optional assets substitute as empty so templates degrade to
	// their fallback font stacks.
	fields := s.AssetFields()
	assert.NotEmpty(t, fields["ASSET_LOGO"])
	assert.Equal(t, "", fields["ASSET_FONT_BRAND"])
}

func TestContentPillarDoc(t *testing.T) {
	assert.Equal(t, "content-pillar-tuesday", ContentPillarDoc("Tuesday"))
	assert.Equal(t, "content-pillar-sunday", ContentPillarDoc(" sunday "))
}

func TestUnknownTemplate(t *testing.T) {
	templatesDir, assetsDir := writeFixtures(t)
	s, err := NewStore(templatesDir, assetsDir)
	require.NoError(t, err)

	_, err = s.Template("no-such-doc")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}
