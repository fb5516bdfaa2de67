package atom

import "strings"

type tag uint8

const (
	tagOther tag = iota
	tagEntry
	tagTitle
	tagID
	tagUpdated
	tagContent
	tagLink
	tagAuthor
	tagName
	tagURI
	tagEmail
)

var tagNames = []struct {
	name string
	tag  tag
}{
	{"entry", tagEntry},
	{"title", tagTitle},
	{"id", tagID},
	{"updated", tagUpdated},
	{"content", tagContent},
	{"link", tagLink},
	{"author", tagAuthor},
	{"name", tagName},
	{"uri", tagURI},
	{"email", tagEmail},
}

// classify maps an element name onto the tags the parser reacts to.
// Matching is case-insensitive.
func classify(name string) tag {
	for _, t := range tagNames {
		if strings.EqualFold(name, t.name) {
			return t.tag
		}
	}
	return tagOther
}

// field selects which text field of the record under construction receives
// character data.
type field uint8

const (
	fieldNone field = iota
	fieldTitle
	fieldID
	fieldUpdated
	fieldContent
	fieldAuthorName
	fieldAuthorURI
	fieldAuthorEmail
)

var entryFields = map[tag]field{
	tagTitle:   fieldTitle,
	tagID:      fieldID,
	tagUpdated: fieldUpdated,
	tagContent: fieldContent,
}

var authorFields = map[tag]field{
	tagName:  fieldAuthorName,
	tagURI:   fieldAuthorURI,
	tagEmail: fieldAuthorEmail,
}
