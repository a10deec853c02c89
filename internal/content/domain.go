// Package content manages the sections of a course or template and the
// elements inside each section.
package content

// Section is an ordered block of a course or a template. Exactly one of
// CourseID and TemplateID is set.
type Section struct {
	ID         int64  `json:"id"`
	CourseID   *int64 `json:"parentCourseId,omitempty"`
	TemplateID *int64 `json:"parentTemplateId,omitempty"`
	Headline   string `json:"headline"`
	OrderIndex int32  `json:"orderIndex"`
}

// SectionInput is the writable part of a Section.
type SectionInput struct {
	Headline   string `json:"headline" validate:"max=1024"`
	OrderIndex *int32 `json:"orderIndex"`
}

// Element is one piece of content inside a section.
type Element struct {
	ID         int64   `json:"id"`
	SectionID  int64   `json:"parentSectionId"`
	OrderIndex int32   `json:"orderIndex"`
	Type       string  `json:"type"`
	Content    *string `json:"content"`
}

// ElementInput is the writable part of an Element. ID is only read by the
// collection-level update, which addresses the element through the body.
type ElementInput struct {
	ID         int64   `json:"id" validate:"omitempty,gt=0"`
	Type       string  `json:"type" validate:"required,max=64"`
	Content    *string `json:"content"`
	OrderIndex *int32  `json:"orderIndex"`
}

func (in SectionInput) order() int32 {
	if in.OrderIndex == nil {
		return 0
	}
	return *in.OrderIndex
}

func (in ElementInput) order() int32 {
	if in.OrderIndex == nil {
		return 0
	}
	return *in.OrderIndex
}
