package atom

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies a tokenization failure.
type ErrorCode int

const (
	ErrCodeSyntax ErrorCode = iota + 1
	ErrCodeUnexpectedEOF
	ErrCodeTagMismatch
	ErrCodeInvalidChar
	ErrCodeEncoding
	ErrCodeNoElements
	ErrCodeRead
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeSyntax:
		return "syntax error"
	case ErrCodeUnexpectedEOF:
		return "unexpected end of input"
	case ErrCodeTagMismatch:
		return "mismatched tag"
	case ErrCodeInvalidChar:
		return "invalid character"
	case ErrCodeEncoding:
		return "unsupported encoding"
	case ErrCodeNoElements:
		return "no element found"
	case ErrCodeRead:
		return "read error"
	default:
		return fmt.Sprintf("error code %d", int(c))
	}
}

// TokenizeError reports malformed input. Line and Column are 1-based and
// point at the position the tokenizer had reached when it gave up.
type TokenizeError struct {
	Code    ErrorCode
	Message string
	Line    int
	Column  int
	Err     error
}

func (e *TokenizeError) Error() string {
	return fmt.Sprintf("xml parsing error [%d] - %s at %d:%d", int(e.Code), e.Message, e.Line, e.Column)
}

func (e *TokenizeError) Unwrap() error {
	return e.Err
}

func newTokenizeError(err error, line, column int) *TokenizeError {
	var tokErr *TokenizeError
	if errors.As(err, &tokErr) {
		return tokErr
	}
	out := &TokenizeError{
		Code:    ErrCodeSyntax,
		Message: err.Error(),
		Line:    line,
		Column:  column,
		Err:     err,
	}
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		out.Message = syntaxErr.Msg
		out.Code = syntaxCode(syntaxErr.Msg)
		return out
	}
	msg := strings.ToLower(out.Message)
	if strings.Contains(msg, "charset") || strings.Contains(msg, "encoding") {
		out.Code = ErrCodeEncoding
	}
	return out
}

func syntaxCode(msg string) ErrorCode {
	switch {
	case msg == "unexpected EOF":
		return ErrCodeUnexpectedEOF
	case strings.Contains(msg, "closed by"), strings.HasPrefix(msg, "unexpected end element"):
		return ErrCodeTagMismatch
	case strings.Contains(msg, "invalid UTF-8"), strings.Contains(msg, "illegal character"):
		return ErrCodeInvalidChar
	default:
		return ErrCodeSyntax
	}
}
