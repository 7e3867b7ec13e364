package creator

import "errors"

// ErrorClass groups registry failures by how a caller should react.
type ErrorClass string

const (
	// ClassValidation failures are fixed by resubmitting corrected input.
	ClassValidation ErrorClass = "validation"
	// ClassAuthorization failures are policy rejections.
	ClassAuthorization ErrorClass = "authorization"
	// ClassArithmetic failures leave the record at its pre-call state.
	ClassArithmetic ErrorClass = "arithmetic"
	// ClassAddress failures reject malformed record addresses before any read or write.
	ClassAddress ErrorClass = "address"
)

// ErrorCode is a stable numeric identifier surfaced to callers.
type ErrorCode uint32

const (
	CodeMathOverflow ErrorCode = 6000 + iota
	CodeContentTooLong
	CodeCreatorNotActive
	CodeUnauthorizedAccess
	CodeInvalidCreator
	CodeContentNotFound
	CodeContentNotActive
	CodeInvalidLimit
	CodeTooManyComments
	CodeEmptyContent
	CodeEmptyComment
	CodeInvalidContentIndex
	CodeBumpNotFound
	CodeEmptyTitle
	CodeCommentTooLong
	CodeInvalidFilter
	CodeInvalidAddress
	CodeAccountInUse
	CodeInvalidAmount
	CodeTransferFailed
	CodeModulePaused
	CodeInvalidContentType
)

// Error is a registry failure with a stable code.
type Error struct {
	Code    ErrorCode
	Name    string
	Message string
	Class   ErrorClass
}

func (e *Error) Error() string {
	return "creator engine: " + e.Message
}

func newError(code ErrorCode, name, msg string, class ErrorClass) *Error {
	err := &Error{Code: code, Name: name, Message: msg, Class: class}
	registry[code] = err
	return err
}

var registry = map[ErrorCode]*Error{}

var (
	ErrMathOverflow        = newError(CodeMathOverflow, "MathOverflow", "Math overflow error", ClassArithmetic)
	ErrContentTooLong      = newError(CodeContentTooLong, "ContentTooLong", "Content title, description or content is too long", ClassValidation)
	ErrCreatorNotActive    = newError(CodeCreatorNotActive, "CreatorNotActive", "Creator is not active", ClassAuthorization)
	ErrUnauthorizedAccess  = newError(CodeUnauthorizedAccess, "UnauthorizedAccess", "Unauthorized access", ClassAuthorization)
	ErrInvalidCreator      = newError(CodeInvalidCreator, "InvalidCreator", "Invalid creator", ClassValidation)
	ErrContentNotFound     = newError(CodeContentNotFound, "ContentNotFound", "Content not found", ClassValidation)
	ErrContentNotActive    = newError(CodeContentNotActive, "ContentNotActive", "Content is not active", ClassAuthorization)
	ErrInvalidLimit        = newError(CodeInvalidLimit, "InvalidLimit", "Invalid limit for content fetch", ClassValidation)
	ErrTooManyComments     = newError(CodeTooManyComments, "TooManyComments", "Too many comments", ClassValidation)
	ErrEmptyContent        = newError(CodeEmptyContent, "EmptyContent", "Empty content not allowed", ClassValidation)
	ErrEmptyComment        = newError(CodeEmptyComment, "EmptyComment", "Empty comment not allowed", ClassValidation)
	ErrInvalidContentIndex = newError(CodeInvalidContentIndex, "InvalidContentIndex", "Invalid content index", ClassValidation)
	ErrBumpNotFound        = newError(CodeBumpNotFound, "BumpNotFound", "Bump not found", ClassAddress)
	ErrEmptyTitle          = newError(CodeEmptyTitle, "EmptyTitle", "Empty title not allowed", ClassValidation)
	ErrCommentTooLong      = newError(CodeCommentTooLong, "CommentTooLong", "Comment is too long", ClassValidation)
	ErrInvalidFilter       = newError(CodeInvalidFilter, "InvalidFilter", "Invalid content type filter", ClassValidation)
	ErrInvalidAddress      = newError(CodeInvalidAddress, "InvalidAddress", "Address does not match its derivation", ClassAddress)
	ErrAccountInUse        = newError(CodeAccountInUse, "AccountInUse", "Account address already in use", ClassValidation)
	ErrInvalidAmount       = newError(CodeInvalidAmount, "InvalidAmount", "Amount must be positive", ClassValidation)
	ErrTransferFailed      = newError(CodeTransferFailed, "TransferFailed", "Token transfer failed", ClassValidation)
	ErrModulePaused        = newError(CodeModulePaused, "ModulePaused", "Registry module is paused", ClassAuthorization)
	ErrInvalidContentType  = newError(CodeInvalidContentType, "InvalidContentType", "Invalid content type", ClassValidation)
)

// LookupError returns the registered error for code.
func LookupError(code ErrorCode) (*Error, bool) {
	err, ok := registry[code]
	return err, ok
}

// AsError extracts the registry error carried by err, if any.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
