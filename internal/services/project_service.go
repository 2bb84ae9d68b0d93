package services

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"portfolio.dev/internal/models"
)

var (
	// ErrProjectsUnavailable is returned when the projects file cannot be read
	ErrProjectsUnavailable = errors.New("projects file unavailable")
	// ErrProjectsInvalid is returned when the projects file is not a valid project set
	ErrProjectsInvalid = errors.New("projects file invalid")
	// ErrProjectNotFound is returned by Get for an unknown project name
	ErrProjectNotFound = errors.New("project not found")
)

// ProjectStore reads the project list from disk. Nothing is cached, so
// edits to the file show up on the next request.
type ProjectStore struct {
	path string
}

// NewProjectStore creates a ProjectStore backed by the JSON file at path
func NewProjectStore(path string) *ProjectStore {
	return &ProjectStore{path: path}
}

// Path returns the file the store reads from
func (s *ProjectStore) Path() string {
	return s.path
}

// rawProject mirrors models.Project with pointer fields so that a missing
// key can be told apart from a zero value.
type rawProject struct {
	Name           *string   `json:"name"`
	Language       *[]string `json:"language"`
	Description    *string   `json:"description"`
	Implementation *string   `json:"implementation"`
	Link           *string   `json:"link"`
	Image          *string   `json:"image"`
	Rank           *int      `json:"rank"`
}

// Load reads and parses the projects file and returns every project
// ordered by rank, lowest first.
func (s *ProjectStore) Load() ([]models.Project, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProjectsUnavailable, err)
	}

	projects, err := parseProjects(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProjectsInvalid, s.path, err)
	}

	sortByRank(projects)
	return projects, nil
}

// GetByName returns the project with the given display name
func (s *ProjectStore) GetByName(name string) (*models.Project, error) {
	projects, err := s.Load()
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if projects[i].Name == name {
			return &projects[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
}

// parseProjects decodes the keyed project document into a flat slice
func parseProjects(data []byte) ([]models.Project, error) {
	var raw map[string]rawProject
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("expected a JSON object of projects")
	}

	projects := make([]models.Project, 0, len(raw))
	for key, rp := range raw {
		p, err := rp.toProject()
		if err != nil {
			return nil, fmt.Errorf("project %q: %w", key, err)
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func (rp rawProject) toProject() (models.Project, error) {
	var missing []string
	if rp.Name == nil {
		missing = append(missing, "name")
	}
	if rp.Language == nil {
		missing = append(missing, "language")
	}
	if rp.Description == nil {
		missing = append(missing, "description")
	}
	if rp.Implementation == nil {
		missing = append(missing, "implementation")
	}
	if rp.Link == nil {
		missing = append(missing, "link")
	}
	if rp.Image == nil {
		missing = append(missing, "image")
	}
	if rp.Rank == nil {
		missing = append(missing, "rank")
	}
	if len(missing) > 0 {
		return models.Project{}, fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}
	if *rp.Rank < 0 {
		return models.Project{}, fmt.Errorf("rank must be non-negative, got %d", *rp.Rank)
	}

	return models.Project{
		Name:           *rp.Name,
		Language:       *rp.Language,
		Description:    *rp.Description,
		Implementation: *rp.Implementation,
		Link:           *rp.Link,
		Image:          *rp.Image,
		Rank:           *rp.Rank,
	}, nil
}

// sortByRank orders projects by rank ascending. Map iteration order is
// random, so equal ranks fall back to name and link.
func sortByRank(projects []models.Project) {
	slices.SortFunc(projects, func(a, b models.Project) int {
		return cmp.Or(
			cmp.Compare(a.Rank, b.Rank),
			strings.Compare(a.Name, b.Name),
			strings.Compare(a.Link, b.Link),
		)
	})
}
