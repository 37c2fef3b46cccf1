package contract

import "fmt"

// Code is a btouch diagnostic number, rendered as BI<code>.
type Code int

const (
	ErrNoSignature      Code = 1001 // no marshal strategy for a type
	ErrUnknownKind      Code = 1002 // unknown kind of type
	ErrCallbackNoParams Code = 1003 // callback without parameters
	ErrMissingEventArgs Code = 1004 // missing EventArgs/DelegateName
	ErrEventArgsSuffix  Code = 1005 // EventArgs name ends in "EventArgs"
	ErrMissingDefault   Code = 1006 // missing DefaultValue on a value-returning callback
	ErrUnknownAttribute Code = 1007 // unknown or misplaced attribute
	ErrMalformedSnippet Code = 1008 // unbalanced snippet or Wrap expression
	ErrMissingSelector  Code = 1009 // member without Export or Bind
	ErrUnknownContract  Code = 1010 // unknown contract type reference
	ErrInvalidName      Code = 1011 // name is not a valid C# identifier
	ErrFieldClash       Code = 1012 // cached field reused with another type
	ErrUnsupportedField Code = 1014 // Field constant of an unsupported type
)

// BindingError is a fatal diagnostic. A generator run stops at the first one.
type BindingError struct {
	Code    Code
	Message string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("error BI%d: btouch: %s", e.Code, e.Message)
}

// Errorf builds a BindingError.
func Errorf(code Code, format string, args ...any) *BindingError {
	return &BindingError{Code: code, Message: fmt.Sprintf(format, args...)}
}
