package texcomp

import (
	"errors"
	"fmt"
)

// Code is a status code surfaced to callers of the texcomp API.
//
// Every failure returned by this package is an *Error carrying one of these
// codes. Use CodeOf to extract the code of an arbitrary error, or errors.Is
// with one of the package sentinels.
type Code uint8

const (
	// CodeOK means the operation succeeded.
	CodeOK Code = iota

	// CodeUnableToInitComputeLib means an Encoder or Pipeline plugin was
	// resolved but failed to initialize.
	CodeUnableToInitComputeLib

	// CodeNoShaderCodeDefined means no kernel source was given and the
	// Encoder has no default for the requested backend.
	CodeNoShaderCodeDefined

	// CodeMemAllocForMipSet means MipSet or MipLevel storage could not be
	// allocated.
	CodeMemAllocForMipSet

	// CodeFailedHostSetup means a conversion could not set up or run its
	// backend. The underlying cause is available via errors.Unwrap.
	CodeFailedHostSetup

	// CodeUnsupportedSourceFormat means the source data could not be decoded.
	CodeUnsupportedSourceFormat

	// CodeUnableToLoadEncoder means no Encoder plugin exists for a format.
	CodeUnableToLoadEncoder

	// CodeUnableToCreateEncoder means an Encoder could not build a block encoder.
	CodeUnableToCreateEncoder

	// CodePluginFileNotFound means no Image plugin handles a file extension.
	CodePluginFileNotFound

	// CodeUnableToLoadFile means an Image plugin failed to load a file.
	CodeUnableToLoadFile

	// CodeInvalidDestTexture means the destination texture or path is invalid.
	CodeInvalidDestTexture

	// CodeInvalidSourceTexture means the source texture is empty or malformed.
	CodeInvalidSourceTexture

	// CodeGeneric is an unclassified failure.
	CodeGeneric

	// CodeAborted means an operation was invoked with no active backend,
	// or a feedback callback requested cancellation.
	CodeAborted

	// CodeUnsupportedFormat means no Encoder plugin is registered for the
	// requested destination format.
	CodeUnsupportedFormat

	// CodeUnsupportedBackend means no Pipeline plugin is registered for the
	// requested backend kind, or the platform cannot run it.
	CodeUnsupportedBackend

	// CodeUnsupportedDestinationFormat means neither a plugin nor the generic
	// writer can produce the requested file type.
	CodeUnsupportedDestinationFormat
)

var codeNames = [...]string{
	CodeOK:                           "OK",
	CodeUnableToInitComputeLib:       "UnableToInitComputeLib",
	CodeNoShaderCodeDefined:          "NoShaderCodeDefined",
	CodeMemAllocForMipSet:            "MemAllocForMipSet",
	CodeFailedHostSetup:              "FailedHostSetup",
	CodeUnsupportedSourceFormat:      "UnsupportedSourceFormat",
	CodeUnableToLoadEncoder:          "UnableToLoadEncoder",
	CodeUnableToCreateEncoder:        "UnableToCreateEncoder",
	CodePluginFileNotFound:           "PluginFileNotFound",
	CodeUnableToLoadFile:             "UnableToLoadFile",
	CodeInvalidDestTexture:           "InvalidDestTexture",
	CodeInvalidSourceTexture:         "InvalidSourceTexture",
	CodeGeneric:                      "Generic",
	CodeAborted:                      "Aborted",
	CodeUnsupportedFormat:            "UnsupportedFormat",
	CodeUnsupportedBackend:           "UnsupportedBackend",
	CodeUnsupportedDestinationFormat: "UnsupportedDestinationFormat",
}

// String returns the canonical name of the code.
func (c Code) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("Code(%d)", uint8(c))
}

// Error is the error type returned by texcomp operations.
type Error struct {
	Code Code
	Op   string // operation that failed, e.g. "acquire", "load"
	Err  error  // underlying cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := "texcomp: "
	if e.Op != "" {
		msg += e.Op + ": "
	}
	msg += e.Code.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a bare *Error sentinel with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Code == e.Code
}

// Sentinels for use with errors.Is.
var (
	ErrUnableToInitComputeLib       = &Error{Code: CodeUnableToInitComputeLib}
	ErrNoShaderCodeDefined          = &Error{Code: CodeNoShaderCodeDefined}
	ErrMemAllocForMipSet            = &Error{Code: CodeMemAllocForMipSet}
	ErrFailedHostSetup              = &Error{Code: CodeFailedHostSetup}
	ErrUnsupportedSourceFormat      = &Error{Code: CodeUnsupportedSourceFormat}
	ErrUnableToLoadEncoder          = &Error{Code: CodeUnableToLoadEncoder}
	ErrUnableToCreateEncoder        = &Error{Code: CodeUnableToCreateEncoder}
	ErrPluginFileNotFound           = &Error{Code: CodePluginFileNotFound}
	ErrUnableToLoadFile             = &Error{Code: CodeUnableToLoadFile}
	ErrInvalidDestTexture           = &Error{Code: CodeInvalidDestTexture}
	ErrInvalidSourceTexture         = &Error{Code: CodeInvalidSourceTexture}
	ErrGeneric                      = &Error{Code: CodeGeneric}
	ErrAborted                      = &Error{Code: CodeAborted}
	ErrUnsupportedFormat            = &Error{Code: CodeUnsupportedFormat}
	ErrUnsupportedBackend           = &Error{Code: CodeUnsupportedBackend}
	ErrUnsupportedDestinationFormat = &Error{Code: CodeUnsupportedDestinationFormat}
)

// newError builds an *Error for op with the given code and cause.
func newError(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf returns the status code of err.
// It returns CodeOK for nil and CodeGeneric for errors not produced by texcomp.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeGeneric
}
