package atom

import "strings"

// sink names the field that receives character data. Fields are resolved by
// index on every write, so no pointer into entries outlives a single call.
type sink struct {
	field  field
	entry  int
	author int
	// depth of the element that opened the sink
	depth int
}

// ParseState is the per-parse bookkeeping of the state machine.
type ParseState struct {
	depth        int
	insideEntry  bool
	insideAuthor bool
	sink         sink
}

// Depth returns the nesting level of the innermost open element. The
// document root is at depth 1.
func (s ParseState) Depth() int {
	return s.depth
}

// Builder turns start, end and character data events into entries. It is
// driven either by Run or directly by a caller that owns its own XML event
// source. A Builder must not be shared between documents.
type Builder struct {
	state   ParseState
	entries []Entry
}

// NewBuilder returns a Builder with fresh state.
func NewBuilder() *Builder {
	return &Builder{entries: []Entry{}}
}

// Entries returns the entries built so far, in document order.
func (b *Builder) Entries() []Entry {
	return b.entries
}

// State returns a copy of the current parse state.
func (b *Builder) State() ParseState {
	return b.state
}

// StartElement handles an opening tag.
func (b *Builder) StartElement(name string, attrs []Attr) {
	st := &b.state
	st.depth++
	t := classify(name)

	switch {
	case st.depth == 2 && t == tagEntry:
		b.entries = append(b.entries, Entry{Authors: []Author{}})
		st.insideEntry = true
		st.sink = sink{}
	case st.depth == 3 && st.insideEntry:
		b.startEntryChild(t, attrs)
	case st.depth == 4 && st.insideAuthor:
		b.startAuthorChild(t)
	case st.depth < 4:
		st.sink = sink{}
	}
}

func (b *Builder) startEntryChild(t tag, attrs []Attr) {
	st := &b.state
	idx := len(b.entries) - 1
	entry := &b.entries[idx]

	if f, ok := entryFields[t]; ok {
		empty := ""
		switch f {
		case fieldTitle:
			entry.Title = &empty
		case fieldID:
			entry.ID = &empty
		case fieldUpdated:
			entry.Updated = &empty
		case fieldContent:
			entry.Content = &empty
		}
		st.sink = sink{field: f, entry: idx, depth: st.depth}
		return
	}

	st.sink = sink{}
	switch t {
	case tagLink:
		for _, attr := range attrs {
			if strings.EqualFold(attr.Name, "href") {
				href := attr.Value
				entry.Link = &href
				break
			}
		}
	case tagAuthor:
		entry.Authors = append(entry.Authors, Author{})
		st.insideAuthor = true
	}
}

func (b *Builder) startAuthorChild(t tag) {
	st := &b.state
	f, ok := authorFields[t]
	if !ok {
		return
	}
	idx := len(b.entries) - 1
	authors := b.entries[idx].Authors
	if len(authors) == 0 {
		return
	}
	aidx := len(authors) - 1
	author := &authors[aidx]

	empty := ""
	switch f {
	case fieldAuthorName:
		author.Name = &empty
	case fieldAuthorURI:
		author.URI = &empty
	case fieldAuthorEmail:
		author.Email = &empty
	}
	st.sink = sink{field: f, entry: idx, author: aidx, depth: st.depth}
}

// EndElement handles a closing tag. Closing the element that opened the sink
// clears it, so text between a leaf's end tag and the next start tag is
// dropped.
func (b *Builder) EndElement(name string) {
	st := &b.state
	switch classify(name) {
	case tagEntry:
		st.insideEntry = false
	case tagAuthor:
		st.insideAuthor = false
	}
	if st.sink.field != fieldNone && st.sink.depth == st.depth {
		st.sink = sink{}
	}
	st.depth--
}

// CharacterData appends text to the active field, if any. A single text run
// may arrive in several calls.
func (b *Builder) CharacterData(text string) {
	if p := b.target(); p != nil {
		*p += text
	}
}

func (b *Builder) target() *string {
	s := b.state.sink
	if s.field == fieldNone || s.entry >= len(b.entries) {
		return nil
	}
	entry := &b.entries[s.entry]
	switch s.field {
	case fieldTitle:
		return entry.Title
	case fieldID:
		return entry.ID
	case fieldUpdated:
		return entry.Updated
	case fieldContent:
		return entry.Content
	}

	if s.author >= len(entry.Authors) {
		return nil
	}
	author := &entry.Authors[s.author]
	switch s.field {
	case fieldAuthorName:
		return author.Name
	case fieldAuthorURI:
		return author.URI
	case fieldAuthorEmail:
		return author.Email
	}
	return nil
}
