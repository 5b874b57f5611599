package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// FilePersister stores the metrics document as a JSON file keyed by source
// name. Writes go through a temp file and rename so a crash mid-write never
// corrupts the document.
type FilePersister struct {
	path string
}

// NewFilePersister creates a persister writing to the given path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (p *FilePersister) Save(doc map[string]SourceStats) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "metrics: marshal document")
	}

	dir := filepath.Dir(p.path)
	tmp, err := os.CreateTemp(dir, ".metrics-*.json")
	if err != nil {
		return eris.Wrap(err, "metrics: create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrap(err, "metrics: write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "metrics: close temp file")
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "metrics: rename temp file")
	}
	return nil
}

func (p *FilePersister) Load() (map[string]SourceStats, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return map[string]SourceStats{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "metrics: read document")
	}

	var doc map[string]SourceStats
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "metrics: unmarshal document")
	}
	if doc == nil {
		doc = map[string]SourceStats{}
	}
	return doc, nil
}
