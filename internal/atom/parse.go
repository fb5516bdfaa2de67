package atom

import (
	"bytes"
	"errors"
	"io"
)

// Run drives a fresh Builder with events from src until the document ends or
// src fails. On failure the entries built so far are returned with the error.
func Run(src EventSource) ([]Entry, error) {
	b := NewBuilder()
	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			return b.Entries(), nil
		}
		if err != nil {
			return b.Entries(), err
		}
		switch ev.Kind {
		case EventStart:
			b.StartElement(ev.Name, ev.Attrs)
		case EventEnd:
			b.EndElement(ev.Name)
		case EventText:
			b.CharacterData(ev.Text)
		}
	}
}

// ParseBytes parses an Atom document held in memory.
func ParseBytes(data []byte) *ParseResult {
	entries, err := Run(NewEventSource(bytes.NewReader(data)))
	return &ParseResult{
		Entries: entries,
		Raw:     data,
		Err:     err,
	}
}

// Parse reads r to the end and parses it. A read failure is reported as a
// TokenizeError with ErrCodeRead and no entries.
func Parse(r io.Reader) *ParseResult {
	data, err := io.ReadAll(r)
	if err != nil {
		return &ParseResult{
			Entries: []Entry{},
			Raw:     data,
			Err: &TokenizeError{
				Code:    ErrCodeRead,
				Message: err.Error(),
				Line:    1,
				Column:  1,
				Err:     err,
			},
		}
	}
	return ParseBytes(data)
}
