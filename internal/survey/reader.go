package survey

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupported indicates no registered reader understands the file.
var ErrUnsupported = errors.New("unsupported dataset format")

// ReadOptions tunes dataset readers.
type ReadOptions struct {
	// MetadataPath overrides the sibling "<base>.meta.json" lookup.
	MetadataPath string
	// Sheet selects an XLSX sheet by name; empty means the first sheet.
	Sheet string
	// Delimiter for CSV. If 0, picks '\t' for .tsv and ',' otherwise.
	Delimiter rune
}

// Reader loads a respondent-level dataset and its metadata.
type Reader interface {
	CanRead(path string) bool
	Read(path string, opt ReadOptions) (*Dataset, *Metadata, error)
}

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

// ReadFile selects a reader based on the filename.
func ReadFile(path string, opt ReadOptions) (*Dataset, *Metadata, error) {
	for _, r := range registry {
		if r.CanRead(path) {
			return r.Read(path, opt)
		}
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}

func init() {
	Register(csvReader{})
	Register(xlsxReader{})
}

// MetadataPathFor returns the sibling metadata path for a data file.
func MetadataPathFor(path string, opt ReadOptions) string {
	if opt.MetadataPath != "" {
		return opt.MetadataPath
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".meta.json"
}

func datasetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
