package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDetailFile(t *testing.T, dir, jobID, content string) string {
	t.Helper()
	path := filepath.Join(dir, jobID+".json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func exportDir(t *testing.T) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	a := writeDetailFile(t, dir, "1001", `{
  "job_id": "1001",
  "scraped_at": "2026-01-02T03:04:05Z",
  "title": "Backend Engineer",
  "company_name": "Acme GmbH",
  "location": "Berlin, Germany",
  "description": "Build services.  Contact us at jobs@acme.example or +49 (30) 1234-5678.",
  "skills": ["go", "sqlite"],
  "raw_sections": {"about": "internal scratch"}
}`)
	b := writeDetailFile(t, dir, "1002", `{
  "job_id": "1002",
  "scraped_at": "2026-01-02T04:00:00Z",
  "title": "Data Engineer"
}`)
	return dir, []string{a, b}
}

func datasetLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var records []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		records = append(records, rec)
	}
	return records
}

func TestExportJobDetails_Deterministic(t *testing.T) {
	_, files := exportDir(t)
	outDir := t.TempDir()

	outA := filepath.Join(outDir, "a.jsonl")
	outB := filepath.Join(outDir, "b.jsonl")

	manifestA, err := ExportJobDetails(files, ExportOptions{OutputPath: outA})
	require.NoError(t, err)
	manifestB, err := ExportJobDetails(files, ExportOptions{OutputPath: outB})
	require.NoError(t, err)

	dataA, err := os.ReadFile(outA)
	require.NoError(t, err)
	dataB, err := os.ReadFile(outB)
	require.NoError(t, err)

	assert.Equal(t, dataA, dataB, "same inputs and flags must be byte-identical")
	assert.Equal(t, manifestA.SHA256, manifestB.SHA256)

	sum := sha256.Sum256(dataA)
	assert.Equal(t, hex.EncodeToString(sum[:]), manifestA.SHA256,
		"manifest hash must match the dataset bytes on disk")
}

func TestExportJobDetails_ManifestContents(t *testing.T) {
	_, files := exportDir(t)
	out := filepath.Join(t.TempDir(), "dataset.jsonl")

	manifest, err := ExportJobDetails(files, ExportOptions{OutputPath: out, RedactPII: true})
	require.NoError(t, err)

	assert.Equal(t, DatasetSchemaVersion, manifest.SchemaVersion)
	assert.Equal(t, "jsonl", manifest.Format)
	assert.Equal(t, 2, manifest.RecordCount)
	assert.Equal(t, out, manifest.DatasetFile)
	assert.True(t, manifest.PIIRedacted)
	assert.False(t, manifest.IncludeRawSections)
	assert.True(t, sort.StringsAreSorted(manifest.Fields))
	assert.Contains(t, manifest.Fields, "job_id")
	assert.Contains(t, manifest.Fields, "source_url")
	assert.Contains(t, manifest.Fields, "text")
	assert.NotContains(t, manifest.Fields, "raw_sections")

	// The manifest is also persisted next to the dataset by default.
	manifestPath := filepath.Join(filepath.Dir(out), "dataset.manifest.json")
	assert.Equal(t, manifestPath, manifest.ManifestFile)
	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	var onDisk ExportManifest
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, manifest.SHA256, onDisk.SHA256)
}

func TestExportJobDetails_RedactsPII(t *testing.T) {
	_, files := exportDir(t)
	out := filepath.Join(t.TempDir(), "dataset.jsonl")

	_, err := ExportJobDetails(files, ExportOptions{OutputPath: out, RedactPII: true})
	require.NoError(t, err)

	records := datasetLines(t, out)
	require.Len(t, records, 2)

	desc, _ := records[0]["description"].(string)
	assert.Contains(t, desc, "[EMAIL]")
	assert.Contains(t, desc, "[PHONE]")
	assert.NotContains(t, desc, "jobs@acme.example")

	text, _ := records[0]["text"].(string)
	assert.Contains(t, text, "Backend Engineer")
	assert.NotContains(t, text, "jobs@acme.example")
	assert.NotContains(t, text, "  ", "text must have collapsed whitespace")
}

func TestExportJobDetails_RawSections(t *testing.T) {
	_, files := exportDir(t)
	outDir := t.TempDir()

	out := filepath.Join(outDir, "without.jsonl")
	_, err := ExportJobDetails(files, ExportOptions{OutputPath: out})
	require.NoError(t, err)
	records := datasetLines(t, out)
	_, present := records[0]["raw_sections"]
	assert.False(t, present, "raw_sections must be stripped by default")

	out = filepath.Join(outDir, "with.jsonl")
	_, err = ExportJobDetails(files, ExportOptions{OutputPath: out, IncludeRawSections: true})
	require.NoError(t, err)
	records = datasetLines(t, out)
	_, present = records[0]["raw_sections"]
	assert.True(t, present)
}

func TestExportJobDetails_Limit(t *testing.T) {
	_, files := exportDir(t)
	out := filepath.Join(t.TempDir(), "dataset.jsonl")

	manifest, err := ExportJobDetails(files, ExportOptions{OutputPath: out, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, manifest.RecordCount)

	records := datasetLines(t, out)
	require.Len(t, records, 1)
	assert.Equal(t, "1001", records[0]["job_id"])
}

func TestExportJobDetails_MalformedDetailAborts(t *testing.T) {
	dir, files := exportDir(t)
	bad := writeDetailFile(t, dir, "9999", `{not json`)
	files = append(files, bad)

	outDir := t.TempDir()
	out := filepath.Join(outDir, "dataset.jsonl")
	manifestPath := filepath.Join(outDir, "dataset.manifest.json")

	_, err := ExportJobDetails(files, ExportOptions{OutputPath: out})
	require.Error(t, err)

	_, statErr := os.Stat(manifestPath)
	assert.True(t, os.IsNotExist(statErr), "a failed export must not leave a manifest")
}

func TestExportJobDetails_MissingJobIDAborts(t *testing.T) {
	dir := t.TempDir()
	file := writeDetailFile(t, dir, "nameless", `{"scraped_at":"2026-01-01T00:00:00Z"}`)

	out := filepath.Join(t.TempDir(), "dataset.jsonl")
	_, err := ExportJobDetails([]string{file}, ExportOptions{OutputPath: out})
	require.Error(t, err)
}

func TestExportJobDetails_Empty(t *testing.T) {
	out := filepath.Join(t.TempDir(), "dataset.jsonl")

	manifest, err := ExportJobDetails(nil, ExportOptions{OutputPath: out})
	require.NoError(t, err)
	assert.Equal(t, 0, manifest.RecordCount)
	assert.Empty(t, manifest.Fields)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestExportJobDetails_SourceURL(t *testing.T) {
	_, files := exportDir(t)
	out := filepath.Join(t.TempDir(), "dataset.jsonl")

	_, err := ExportJobDetails(files, ExportOptions{OutputPath: out})
	require.NoError(t, err)

	records := datasetLines(t, out)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/1001/", records[0]["source_url"])
	assert.Equal(t, DatasetSchemaVersion, records[0]["schema_version"])
}
