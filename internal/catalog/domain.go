// Package catalog serves the named top-level learning resources: courses and
// templates. Both share one shape and differ only in their resource type.
package catalog

// Entry is a course or a template.
type Entry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Input is the writable part of an Entry.
type Input struct {
	Name string `json:"name" validate:"max=255"`
}

// MaxList caps listings.
const MaxList = 1024
