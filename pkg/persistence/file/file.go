// Package file provides file-based persistence for development and tests.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/calvere/docflow/pkg/persistence"
)

// Persistence implements persistence.Persistence using JSON files under a
// root directory, one subdirectory per entity kind.
type Persistence struct {
	root           string
	definitionRepo *DefinitionRepository
	instanceRepo   *InstanceRepository
	stepRepo       *StepRepository
	ruleRepo       *RuleRepository
	historyRepo    *HistoryRepository
	documentRepo   *DocumentRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. Accepts a plain path or a file:// URL.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		definitionRepo: &DefinitionRepository{store: newStore(cleanRoot, "definitions")},
		instanceRepo:   &InstanceRepository{store: newStore(cleanRoot, "instances")},
		stepRepo:       &StepRepository{store: newStore(cleanRoot, "steps")},
		ruleRepo:       &RuleRepository{store: newStore(cleanRoot, "rules")},
		historyRepo:    &HistoryRepository{store: newStore(cleanRoot, "history")},
		documentRepo:   &DocumentRepository{store: newStore(cleanRoot, "documents")},
	}
}

func (p *Persistence) Definitions() persistence.DefinitionRepository { return p.definitionRepo }
func (p *Persistence) Instances() persistence.InstanceRepository     { return p.instanceRepo }
func (p *Persistence) Steps() persistence.StepRepository             { return p.stepRepo }
func (p *Persistence) Rules() persistence.RuleRepository             { return p.ruleRepo }
func (p *Persistence) History() persistence.HistoryRepository        { return p.historyRepo }
func (p *Persistence) Documents() persistence.DocumentRepository     { return p.documentRepo }

// Close performs any necessary cleanup. Nothing to clean up for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists or can be created.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return os.MkdirAll(p.root, 0o755)
}

// store is a directory of JSON records keyed by ID.
type store struct {
	dir string
}

func newStore(root, entity string) *store {
	return &store{dir: filepath.Join(root, entity)}
}

func (s *store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// raw returns the undecoded record bytes, or nil when the record is absent.
func (s *store) raw(id string) ([]byte, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read %s: %w", s.path(id), err)
	}

	return data, nil
}

func (s *store) read(id string, out any) (bool, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s: %w", s.path(id), err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", s.path(id), err)
	}

	return true, nil
}

func (s *store) write(id string, record any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", id, err)
	}

	if err := os.WriteFile(s.path(id), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path(id), err)
	}

	return nil
}

// each loads every record in the store and hands it to visit, which decodes
// into its own target type.
func (s *store) each(visit func(data []byte) error) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("failed to list %s: %w", s.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}

		if err := visit(data); err != nil {
			return err
		}
	}

	return nil
}
