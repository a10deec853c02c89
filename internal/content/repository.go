package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/platform/db"
	"github.com/noodle-soup/noodle/internal/shared"
)

type statements struct {
	listSections  string
	getSection    string
	insertSection string
	updateSection string
	deleteSection string
	sectionExists string
	listElements  string
	getElement    string
	insertElement string
	updateElement string
	deleteElement string
	clearElements string
}

func buildStatements(column string) statements {
	owned := `section_id IN (SELECT id FROM content_section WHERE ` + column + ` = $2)`
	return statements{
		listSections:  `SELECT id, course_id, template_id, headline, order_index FROM content_section WHERE ` + column + ` = $1 ORDER BY order_index, id`,
		getSection:    `SELECT id, course_id, template_id, headline, order_index FROM content_section WHERE id = $1 AND ` + column + ` = $2`,
		insertSection: `INSERT INTO content_section (` + column + `, headline, order_index) VALUES ($1, $2, $3) RETURNING id`,
		updateSection: `UPDATE content_section SET headline = $3, order_index = $4 WHERE id = $1 AND ` + column + ` = $2`,
		deleteSection: `DELETE FROM content_section WHERE id = $1 AND ` + column + ` = $2`,
		sectionExists: `SELECT EXISTS (SELECT 1 FROM content_section WHERE id = $1 AND ` + column + ` = $2)`,
		listElements:  `SELECT id, section_id, order_index, type, content FROM content_element WHERE section_id = $1 AND ` + owned + ` ORDER BY order_index, id`,
		getElement:    `SELECT id, section_id, order_index, type, content FROM content_element WHERE id = $3 AND section_id = $1 AND ` + owned,
		insertElement: `INSERT INTO content_element (section_id, order_index, type, content) VALUES ($1, $2, $3, $4) RETURNING id`,
		updateElement: `UPDATE content_element SET order_index = $4, type = $5, content = $6 WHERE id = $3 AND section_id = $1 AND ` + owned,
		deleteElement: `DELETE FROM content_element WHERE id = $3 AND section_id = $1 AND ` + owned,
		clearElements: `DELETE FROM content_element WHERE section_id = $1 AND ` + owned,
	}
}

// Repository stores the content of one parent type.
type Repository struct {
	db     db.TxBeginner
	parent authz.ResourceType
	sql    statements
}

// NewRepository returns a repository for the sections of parent, which must
// be authz.Course or authz.Template.
func NewRepository(conn db.TxBeginner, parent authz.ResourceType) *Repository {
	var column string
	switch parent {
	case authz.Course:
		column = "course_id"
	case authz.Template:
		column = "template_id"
	default:
		panic(fmt.Sprintf("content: unsupported parent type %s", parent))
	}
	return &Repository{db: conn, parent: parent, sql: buildStatements(column)}
}

// Parent returns the resource type owning the sections.
func (r *Repository) Parent() authz.ResourceType { return r.parent }

// Sections lists the sections of a parent ordered by their index.
func (r *Repository) Sections(ctx context.Context, parentID int64) ([]Section, error) {
	rows, err := r.db.Query(ctx, r.sql.listSections, parentID)
	if err != nil {
		return nil, shared.NewStoreError("list sections", err)
	}
	defer rows.Close()
	out := []Section{}
	for rows.Next() {
		var s Section
		if err := rows.Scan(&s.ID, &s.CourseID, &s.TemplateID, &s.Headline, &s.OrderIndex); err != nil {
			return nil, shared.NewStoreError("list sections", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.NewStoreError("list sections", err)
	}
	return out, nil
}

// Section loads one section of a parent.
func (r *Repository) Section(ctx context.Context, parentID, sectionID int64) (Section, error) {
	var s Section
	err := r.db.QueryRow(ctx, r.sql.getSection, sectionID, parentID).
		Scan(&s.ID, &s.CourseID, &s.TemplateID, &s.Headline, &s.OrderIndex)
	if errors.Is(err, pgx.ErrNoRows) {
		return Section{}, shared.ErrNotFound
	}
	if err != nil {
		return Section{}, shared.NewStoreError("get section", err)
	}
	return s, nil
}

// CreateSection appends a section to a parent.
func (r *Repository) CreateSection(ctx context.Context, parentID int64, in SectionInput) (Section, error) {
	s := r.section(parentID, in)
	err := r.db.QueryRow(ctx, r.sql.insertSection, parentID, in.Headline, s.OrderIndex).Scan(&s.ID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Section{}, shared.ErrNotFound
		}
		return Section{}, shared.NewStoreError("create section", err)
	}
	return s, nil
}

// UpdateSection rewrites the headline and index of a section.
func (r *Repository) UpdateSection(ctx context.Context, parentID, sectionID int64, in SectionInput) (Section, error) {
	s := r.section(parentID, in)
	s.ID = sectionID
	tag, err := r.db.Exec(ctx, r.sql.updateSection, sectionID, parentID, in.Headline, s.OrderIndex)
	if err != nil {
		return Section{}, shared.NewStoreError("update section", err)
	}
	if tag.RowsAffected() == 0 {
		return Section{}, shared.ErrNotFound
	}
	return s, nil
}

// DeleteSection removes a section together with its elements.
func (r *Repository) DeleteSection(ctx context.Context, parentID, sectionID int64) error {
	tag, err := r.db.Exec(ctx, r.sql.deleteSection, sectionID, parentID)
	if err != nil {
		return shared.NewStoreError("delete section", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) section(parentID int64, in SectionInput) Section {
	s := Section{Headline: in.Headline, OrderIndex: in.order()}
	if r.parent == authz.Course {
		s.CourseID = &parentID
	} else {
		s.TemplateID = &parentID
	}
	return s
}

// Elements lists the elements of a section of a parent.
func (r *Repository) Elements(ctx context.Context, parentID, sectionID int64) ([]Element, error) {
	rows, err := r.db.Query(ctx, r.sql.listElements, sectionID, parentID)
	if err != nil {
		return nil, shared.NewStoreError("list elements", err)
	}
	defer rows.Close()
	out := []Element{}
	for rows.Next() {
		var e Element
		if err := rows.Scan(&e.ID, &e.SectionID, &e.OrderIndex, &e.Type, &e.Content); err != nil {
			return nil, shared.NewStoreError("list elements", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.NewStoreError("list elements", err)
	}
	return out, nil
}

// Element loads one element.
func (r *Repository) Element(ctx context.Context, parentID, sectionID, elementID int64) (Element, error) {
	var e Element
	err := r.db.QueryRow(ctx, r.sql.getElement, sectionID, parentID, elementID).
		Scan(&e.ID, &e.SectionID, &e.OrderIndex, &e.Type, &e.Content)
	if errors.Is(err, pgx.ErrNoRows) {
		return Element{}, shared.ErrNotFound
	}
	if err != nil {
		return Element{}, shared.NewStoreError("get element", err)
	}
	return e, nil
}

// CreateElement adds an element to a section. The ownership check and the
// insert share a transaction so the section cannot move between them.
func (r *Repository) CreateElement(ctx context.Context, parentID, sectionID int64, in ElementInput) (Element, error) {
	e := Element{SectionID: sectionID, OrderIndex: in.order(), Type: in.Type, Content: in.Content}
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var owned bool
		if err := tx.QueryRow(ctx, r.sql.sectionExists, sectionID, parentID).Scan(&owned); err != nil {
			return shared.NewStoreError("create element", err)
		}
		if !owned {
			return shared.ErrNotFound
		}
		if err := tx.QueryRow(ctx, r.sql.insertElement, sectionID, e.OrderIndex, e.Type, e.Content).Scan(&e.ID); err != nil {
			return shared.NewStoreError("create element", err)
		}
		return nil
	})
	if err != nil {
		return Element{}, err
	}
	return e, nil
}

// UpdateElement rewrites an element in place.
func (r *Repository) UpdateElement(ctx context.Context, parentID, sectionID, elementID int64, in ElementInput) (Element, error) {
	e := Element{ID: elementID, SectionID: sectionID, OrderIndex: in.order(), Type: in.Type, Content: in.Content}
	tag, err := r.db.Exec(ctx, r.sql.updateElement, sectionID, parentID, elementID, e.OrderIndex, e.Type, e.Content)
	if err != nil {
		return Element{}, shared.NewStoreError("update element", err)
	}
	if tag.RowsAffected() == 0 {
		return Element{}, shared.ErrNotFound
	}
	return e, nil
}

// DeleteElement removes one element.
func (r *Repository) DeleteElement(ctx context.Context, parentID, sectionID, elementID int64) error {
	tag, err := r.db.Exec(ctx, r.sql.deleteElement, sectionID, parentID, elementID)
	if err != nil {
		return shared.NewStoreError("delete element", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ClearElements removes every element of a section and reports how many
// were deleted.
func (r *Repository) ClearElements(ctx context.Context, parentID, sectionID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, r.sql.clearElements, sectionID, parentID)
	if err != nil {
		return 0, shared.NewStoreError("clear elements", err)
	}
	return tag.RowsAffected(), nil
}
