package htmlscan

// Result is the output of one Scan call.
type Result struct {
	// Tags holds every parsed element in document order.
	Tags []*Tag

	// Title, Description and KeywordsStr stay nil when the document
	// carries no matching non-excluded element.
	Title       *string
	Description *string
	KeywordsStr *string

	// SearchableStr is the whitespace-normalized text outside
	// excluded regions.
	SearchableStr string
}

// Parent returns the parent of t, if any.
func (r *Result) Parent(t *Tag) (*Tag, bool) {
	if t == nil || t.Parent < 0 || t.Parent >= len(r.Tags) {
		return nil, false
	}
	return r.Tags[t.Parent], true
}

// Children returns the direct children of t in document order.
func (r *Result) Children(t *Tag) []*Tag {
	children := make([]*Tag, 0, len(t.Children))
	for _, i := range t.Children {
		children = append(children, r.Tags[i])
	}
	return children
}

// Ancestors returns the parent chain of t, nearest first.
func (r *Result) Ancestors(t *Tag) []*Tag {
	var ancestors []*Tag
	for parent, ok := r.Parent(t); ok; parent, ok = r.Parent(parent) {
		ancestors = append(ancestors, parent)
	}
	return ancestors
}

// Roots returns the tags without a parent.
func (r *Result) Roots() []*Tag {
	var roots []*Tag
	for _, t := range r.Tags {
		if t.Parent < 0 {
			roots = append(roots, t)
		}
	}
	return roots
}

// TagsByName returns all tags with the given lower-case name.
func (r *Result) TagsByName(name string) []*Tag {
	var tags []*Tag
	for _, t := range r.Tags {
		if t.Name == name {
			tags = append(tags, t)
		}
	}
	return tags
}

// TitleOr returns the title or fallback when unset.
func (r *Result) TitleOr(fallback string) string {
	if r.Title == nil {
		return fallback
	}
	return *r.Title
}
