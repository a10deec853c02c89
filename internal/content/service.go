package content

import (
	"context"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/shared"
)

// RepositoryPort defines data access methods for sections and elements.
type RepositoryPort interface {
	Parent() authz.ResourceType
	Sections(ctx context.Context, parentID int64) ([]Section, error)
	Section(ctx context.Context, parentID, sectionID int64) (Section, error)
	CreateSection(ctx context.Context, parentID int64, in SectionInput) (Section, error)
	UpdateSection(ctx context.Context, parentID, sectionID int64, in SectionInput) (Section, error)
	DeleteSection(ctx context.Context, parentID, sectionID int64) error
	Elements(ctx context.Context, parentID, sectionID int64) ([]Element, error)
	Element(ctx context.Context, parentID, sectionID, elementID int64) (Element, error)
	CreateElement(ctx context.Context, parentID, sectionID int64, in ElementInput) (Element, error)
	UpdateElement(ctx context.Context, parentID, sectionID, elementID int64, in ElementInput) (Element, error)
	DeleteElement(ctx context.Context, parentID, sectionID, elementID int64) error
	ClearElements(ctx context.Context, parentID, sectionID int64) (int64, error)
}

// Service checks the parent's grants before touching its content. Reading
// content needs READ on the parent and changing it needs UPDATE.
type Service struct {
	repo   RepositoryPort
	authz  authz.Checker
	parent authz.ResourceType
}

// NewService builds a Service for the parent type of repo.
func NewService(repo RepositoryPort, checker authz.Checker) *Service {
	return &Service{repo: repo, authz: checker, parent: repo.Parent()}
}

func (s *Service) require(ctx context.Context, actor, parentID int64, ops authz.Operations) error {
	return authz.RequireID(ctx, s.authz, s.parent, parentID, ops, actor)
}

// Sections lists the sections of a parent.
func (s *Service) Sections(ctx context.Context, actor, parentID int64) ([]Section, error) {
	if err := s.require(ctx, actor, parentID, authz.Read); err != nil {
		return nil, err
	}
	return s.repo.Sections(ctx, parentID)
}

// Section returns one section.
func (s *Service) Section(ctx context.Context, actor, parentID, sectionID int64) (Section, error) {
	if err := s.require(ctx, actor, parentID, authz.Read); err != nil {
		return Section{}, err
	}
	return s.repo.Section(ctx, parentID, sectionID)
}

// CreateSection adds a section to a parent.
func (s *Service) CreateSection(ctx context.Context, actor, parentID int64, in SectionInput) (Section, error) {
	if err := s.require(ctx, actor, parentID, authz.Update); err != nil {
		return Section{}, err
	}
	if err := normalizeSection(&in); err != nil {
		return Section{}, err
	}
	return s.repo.CreateSection(ctx, parentID, in)
}

// UpdateSection rewrites a section.
func (s *Service) UpdateSection(ctx context.Context, actor, parentID, sectionID int64, in SectionInput) (Section, error) {
	if err := s.require(ctx, actor, parentID, authz.Update); err != nil {
		return Section{}, err
	}
	if err := normalizeSection(&in); err != nil {
		return Section{}, err
	}
	return s.repo.UpdateSection(ctx, parentID, sectionID, in)
}

// DeleteSection removes a section and its elements.
func (s *Service) DeleteSection(ctx context.Context, actor, parentID, sectionID int64) error {
	if err := s.require(ctx, actor, parentID, authz.Update); err != nil {
		return err
	}
	return s.repo.DeleteSection(ctx, parentID, sectionID)
}

// Elements lists the elements of a section.
func (s *Service) Elements(ctx context.Context, actor, parentID, sectionID int64) ([]Element, error) {
	if err := s.require(ctx, actor, parentID, authz.Read); err != nil {
		return nil, err
	}
	return s.repo.Elements(ctx, parentID, sectionID)
}

// Element returns one element.
func (s *Service) Element(ctx context.Context, actor, parentID, sectionID, elementID int64) (Element, error) {
	if err := s.require(ctx, actor, parentID, authz.Read); err != nil {
		return Element{}, err
	}
	return s.repo.Element(ctx, parentID, sectionID, elementID)
}

// CreateElement adds an element to a section.
func (s *Service) CreateElement(ctx context.Context, actor, parentID, sectionID int64, in ElementInput) (Element, error) {
	if err := s.require(ctx, actor, parentID, authz.Update); err != nil {
		return Element{}, err
	}
	if err := normalizeElement(&in); err != nil {
		return Element{}, err
	}
	return s.repo.CreateElement(ctx, parentID, sectionID, in)
}

// UpdateElement rewrites an element.
func (s *Service) UpdateElement(ctx context.Context, actor, parentID, sectionID, elementID int64, in ElementInput) (Element, error) {
	if err := s.require(ctx, actor, parentID, authz.Update); err != nil {
		return Element{}, err
	}
	if elementID <= 0 {
		return Element{}, shared.NewValidationError("id", "required")
	}
	if err := normalizeElement(&in); err != nil {
		return Element{}, err
	}
	return s.repo.UpdateElement(ctx, parentID, sectionID, elementID, in)
}

// DeleteElement removes one element.
func (s *Service) DeleteElement(ctx context.Context, actor, parentID, sectionID, elementID int64) error {
	if err := s.require(ctx, actor, parentID, authz.Update); err != nil {
		return err
	}
	return s.repo.DeleteElement(ctx, parentID, sectionID, elementID)
}

// ClearElements removes every element of a section.
func (s *Service) ClearElements(ctx context.Context, actor, parentID, sectionID int64) (int64, error) {
	if err := s.require(ctx, actor, parentID, authz.Update); err != nil {
		return 0, err
	}
	return s.repo.ClearElements(ctx, parentID, sectionID)
}

func normalizeSection(in *SectionInput) error {
	in.Headline = shared.NormalizeName(in.Headline)
	if in.Headline == "" {
		return shared.NewValidationError("headline", "required")
	}
	return nil
}

func normalizeElement(in *ElementInput) error {
	in.Type = shared.NormalizeName(in.Type)
	if in.Type == "" {
		return shared.NewValidationError("type", "required")
	}
	return nil
}
