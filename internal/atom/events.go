package atom

import (
	"bufio"
	"io"

	xpp "github.com/mmcdole/goxpp"
	"golang.org/x/net/html/charset"
)

// EventKind identifies the kind of an XML event.
type EventKind uint8

const (
	EventStart EventKind = iota + 1
	EventEnd
	EventText
)

// Attr is one attribute of a start tag, in document order.
type Attr struct {
	Name  string
	Value string
}

// Event is a single tokenization event. Name is set for start and end
// events, Attrs for start events and Text for character data.
type Event struct {
	Kind  EventKind
	Name  string
	Attrs []Attr
	Text  string
}

// EventSource delivers well-nested XML events in document order. Next
// returns io.EOF once the document is exhausted and a *TokenizeError when
// the input is malformed.
type EventSource interface {
	Next() (Event, error)
}

// NewEventSource returns a strict EventSource reading from r. Documents that
// declare a non UTF-8 encoding are decoded before tokenization.
func NewEventSource(r io.Reader) EventSource {
	pos := newPositionReader(r)
	return &xppSource{
		pos:    pos,
		parser: xpp.NewXMLPullParser(pos, true, charset.NewReaderLabel),
	}
}

type xppSource struct {
	pos     *positionReader
	parser  *xpp.XMLPullParser
	started bool
	done    bool
}

func (s *xppSource) Next() (Event, error) {
	if s.done {
		return Event{}, io.EOF
	}
	for {
		ev, err := s.parser.Next()
		if err != nil {
			line, column := s.pos.position()
			return Event{}, newTokenizeError(err, line, column)
		}
		switch ev {
		case xpp.StartTag:
			s.started = true
			return Event{Kind: EventStart, Name: s.parser.Name, Attrs: convertAttrs(s.parser)}, nil
		case xpp.EndTag:
			return Event{Kind: EventEnd, Name: s.parser.Name}, nil
		case xpp.Text:
			return Event{Kind: EventText, Text: s.parser.Text}, nil
		case xpp.EndDocument:
			s.done = true
			if !s.started {
				line, column := s.pos.position()
				return Event{}, &TokenizeError{
					Code:    ErrCodeNoElements,
					Message: ErrCodeNoElements.String(),
					Line:    line,
					Column:  column,
				}
			}
			return Event{}, io.EOF
		}
	}
}

func convertAttrs(p *xpp.XMLPullParser) []Attr {
	if len(p.Attrs) == 0 {
		return nil
	}
	attrs := make([]Attr, 0, len(p.Attrs))
	// Space is the resolved namespace URI, so x:href arrives as
	// "urn:x:href" and never matches a bare attribute name.
	for _, a := range p.Attrs {
		name := a.Name.Local
		if a.Name.Space != "" {
			name = a.Name.Space + ":" + name
		}
		attrs = append(attrs, Attr{Name: name, Value: a.Value})
	}
	return attrs
}

// positionReader counts lines and columns of the bytes handed to the
// tokenizer. It implements io.ByteReader so encoding/xml reads from it
// directly instead of buffering ahead.
type positionReader struct {
	r      *bufio.Reader
	line   int
	column int
}

func newPositionReader(r io.Reader) *positionReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &positionReader{r: br, line: 1}
}

func (p *positionReader) ReadByte() (byte, error) {
	c, err := p.r.ReadByte()
	if err != nil {
		return c, err
	}
	p.advance(c)
	return c, nil
}

func (p *positionReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	for _, c := range buf[:n] {
		p.advance(c)
	}
	return n, err
}

func (p *positionReader) advance(c byte) {
	if c == '\n' {
		p.line++
		p.column = 0
		return
	}
	p.column++
}

func (p *positionReader) position() (int, int) {
	return p.line, max(p.column, 1)
}
