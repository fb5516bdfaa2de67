package atom

// Entry is a single feed entry. Every field except Authors is nil until the
// element it comes from has been seen; an element with no text yields a
// non-nil empty string.
type Entry struct {
	Title   *string  `json:"title,omitempty" yaml:"title,omitempty"`
	Link    *string  `json:"link,omitempty" yaml:"link,omitempty"`
	ID      *string  `json:"id,omitempty" yaml:"id,omitempty"`
	Updated *string  `json:"updated,omitempty" yaml:"updated,omitempty"`
	Content *string  `json:"content,omitempty" yaml:"content,omitempty"`
	Authors []Author `json:"authors" yaml:"authors"`
}

// Author is a person attached to exactly one Entry.
type Author struct {
	Name  *string `json:"name,omitempty" yaml:"name,omitempty"`
	URI   *string `json:"uri,omitempty" yaml:"uri,omitempty"`
	Email *string `json:"email,omitempty" yaml:"email,omitempty"`
}

// ParseResult is the outcome of one parse call. Err may be set while Entries
// still holds the records built before the failure.
type ParseResult struct {
	Entries []Entry
	Raw     []byte
	Err     error
}

// Value returns the text of an optional field, or "" when it is absent.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
