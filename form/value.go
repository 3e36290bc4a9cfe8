package form

import (
	"sort"

	"github.com/rgaviola/osca-forms/model"
)

// Value is one entry of the live edit buffer. The set of shapes is closed:
// scalar controls hold a string, checklists hold a selection set, and the
// upload pair holds an in-memory file.
type Value interface {
	isFormValue()
	Empty() bool
}

type Scalar string

func (Scalar) isFormValue() {}
func (s Scalar) Empty() bool {
	return s == ""
}

// Checklist is a checkbox field's in-memory selection. It stays a set for
// the whole session; the comma string exists only in form_data.
type Checklist map[string]struct{}

func (Checklist) isFormValue() {}
func (c Checklist) Empty() bool {
	return len(c) == 0
}

func (c Checklist) Has(option string) bool {
	_, ok := c[option]
	return ok
}

// Selected returns the selection in the given option order, with any
// selections unknown to the current schema appended as-is. Selection order
// never matters; rendering and serialization both follow schema order.
func (c Checklist) Selected(optionOrder []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, opt := range optionOrder {
		if c.Has(opt) {
			out = append(out, opt)
			seen[opt] = true
		}
	}
	var unknown []string
	for opt := range c {
		if !seen[opt] {
			unknown = append(unknown, opt)
		}
	}
	sort.Strings(unknown)
	return append(out, unknown...)
}

type File struct {
	Upload *model.Upload
}

func (File) isFormValue() {}
func (f File) Empty() bool {
	return f.Upload == nil
}
