package study

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/tabloom-cli/internal/survey"
	"github.com/KaramelBytes/tabloom-cli/internal/utils"
)

const FileName = "study.json"

var (
	// ErrNotFound is returned when a study directory has no study.json.
	ErrNotFound = errors.New("study not found")
	// ErrInvalidName is returned for a name that is not a single path element.
	ErrInvalidName = errors.New("invalid study name")
)

// Study points at a dataset, its metadata and its sidecar.
type Study struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Subcategory string    `json:"subcategory,omitempty"`
	DataPath    string    `json:"data_path"`
	MetaPath    string    `json:"meta_path,omitempty"`
	SidecarPath string    `json:"sidecar_path,omitempty"`
	Sheet       string    `json:"sheet,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	rootDir string
}

// New constructs an in-memory study. Call Save to persist.
func New(name, dataPath, rootDir string) *Study {
	now := time.Now()
	return &Study{
		ID:        uuid.NewString(),
		Name:      name,
		DataPath:  dataPath,
		CreatedAt: now,
		UpdatedAt: now,
		rootDir:   rootDir,
	}
}

// Load reads study.json from dir.
func Load(dir string) (*Study, error) {
	path := filepath.Join(dir, FileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read study: %w", err)
	}
	var s Study
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse study: %w", err)
	}
	s.rootDir = dir
	return &s, nil
}

// ValidateName rejects names that would leave the studies directory.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Open loads the study named name under studiesDir.
func Open(studiesDir, name string) (*Study, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return Load(filepath.Join(studiesDir, name))
}

// RootDir returns the on-disk study directory.
func (s *Study) RootDir() string { return s.rootDir }

// Save writes study.json atomically.
func (s *Study) Save() error {
	if s.rootDir == "" {
		return errors.New("study root directory not set")
	}
	if err := utils.EnsureDir(s.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	s.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(s)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(s.rootDir, FileName), data)
}

// List returns the studies found directly under studiesDir, by name.
// Directories without a readable study.json are skipped.
func List(studiesDir string) ([]*Study, error) {
	entries, err := os.ReadDir(studiesDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read studies dir: %w", err)
	}
	var out []*Study
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		s, err := Load(filepath.Join(studiesDir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Data is a study's loaded dataset with its sidecar filters applied.
type Data struct {
	Dataset  *survey.Dataset
	Metadata *survey.Metadata
	Config   survey.StudyConfig
}

// Read loads the dataset, metadata and sidecar. Relative paths resolve
// against the study directory.
func (s *Study) Read() (*Data, error) {
	opt := survey.ReadOptions{MetadataPath: s.resolve(s.MetaPath), Sheet: s.Sheet}
	ds, md, err := survey.ReadFile(s.resolve(s.DataPath), opt)
	if err != nil {
		return nil, fmt.Errorf("load study %s: %w", s.Name, err)
	}
	d := &Data{Dataset: ds, Metadata: md}
	if s.SidecarPath != "" {
		sc, err := survey.LoadSidecar(s.resolve(s.SidecarPath))
		if err != nil {
			return nil, fmt.Errorf("load study %s: %w", s.Name, err)
		}
		d.Config = sc.Config
		if d.Dataset, err = sc.Config.Apply(ds); err != nil {
			return nil, fmt.Errorf("load study %s: %w", s.Name, err)
		}
	}
	return d, nil
}

func (s *Study) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || s.rootDir == "" {
		return p
	}
	return filepath.Join(s.rootDir, p)
}
