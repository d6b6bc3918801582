package engine

import "fmt"

// ErrorCode is the OCPP-J CALLERROR errorCode taxonomy (spec §4.3).
type ErrorCode string

const (
	NotImplemented               ErrorCode = "NotImplemented"
	NotSupported                 ErrorCode = "NotSupported"
	InternalError                ErrorCode = "InternalError"
	ProtocolError                ErrorCode = "ProtocolError"
	SecurityError                ErrorCode = "SecurityError"
	FormationViolation           ErrorCode = "FormationViolation"
	PropertyConstraintViolation  ErrorCode = "PropertyConstraintViolation"
	OccurenceConstraintViolation ErrorCode = "OccurenceConstraintViolation"
	TypeConstraintViolation      ErrorCode = "TypeConstraintViolation"
	GenericError                 ErrorCode = "GenericError"
)

// OCPPError is a CALLERROR carrying code/description/details, used both
// for outbound CALLERROR construction and as the error handed to a
// CALL's errorCallback.
type OCPPError struct {
	Code        ErrorCode
	Description string
	Details     interface{}
}

func (e *OCPPError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewOCPPError builds an OCPPError with no details.
func NewOCPPError(code ErrorCode, description string) *OCPPError {
	return &OCPPError{Code: code, Description: description}
}

// AsOCPPError converts any error raised while handling a CALL into an
// OCPPError, defaulting to InternalError (spec §4.3 step 3, §7).
func AsOCPPError(err error) *OCPPError {
	if err == nil {
		return nil
	}
	if oe, ok := err.(*OCPPError); ok {
		return oe
	}
	return &OCPPError{Code: InternalError, Description: err.Error()}
}
