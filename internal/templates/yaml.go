package templates

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/insuratask/insuratask/internal/store"
)

// File is the on-disk YAML layout for template definitions.
type File struct {
	Templates []Input `yaml:"templates"`
}

// ImportResult counts what Import did.
type ImportResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// Export serialises every template definition as YAML.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	list, err := s.repo.ListTemplates(ctx, false)
	if err != nil {
		return nil, err
	}
	f := File{Templates: make([]Input, 0, len(list))}
	for _, t := range list {
		f.Templates = append(f.Templates, InputFromTemplate(t))
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode templates: %w", err)
	}
	return data, nil
}

// Import creates templates from YAML. Templates whose name already exists are
// replaced when overwrite is set and skipped otherwise. Invalid entries are
// reported in the result and do not stop the import.
func (s *Service) Import(ctx context.Context, data []byte, overwrite bool) (*ImportResult, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	res := &ImportResult{}
	for i, in := range f.Templates {
		existing, err := s.repo.GetTemplateByName(ctx, in.Name)
		switch {
		case err == nil && !overwrite:
			res.Skipped++
			continue
		case err == nil:
			_, err = s.Update(ctx, existing.ID, in)
			if err == nil {
				res.Updated++
			}
		case errors.Is(err, store.ErrNotFound):
			_, err = s.Create(ctx, in)
			if err == nil {
				res.Created++
			}
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("template %d (%s): %v", i+1, in.Name, err))
		}
	}
	return res, nil
}
