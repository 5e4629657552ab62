package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string of the form "<MODULE>_<NNN>".
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
)

// Molecule module error codes
const (
	ErrCodeMoleculeInvalidSMILES    ErrorCode = "MOL_001"
	ErrCodeMoleculeInvalidFormat    ErrorCode = "MOL_003"
	ErrCodeMoleculeNotFound         ErrorCode = "MOL_004"
	ErrCodeMoleculeAlreadyExists    ErrorCode = "MOL_005"
	ErrCodeSubstructureSearchFailed ErrorCode = "MOL_012"
	ErrCodeSearchTimeout            ErrorCode = "MOL_013"
	ErrCodeUploadUnsupportedType    ErrorCode = "MOL_014"
)

// Short aliases used at call sites.
const (
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("")
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeValidation   = ErrCodeValidation
	CodeTimeout      = ErrCodeTimeout

	CodeMoleculeInvalidSMILES = ErrCodeMoleculeInvalidSMILES
	CodeMoleculeInvalidFormat = ErrCodeMoleculeInvalidFormat
	CodeMoleculeNotFound      = ErrCodeMoleculeNotFound
	CodeMoleculeExists        = ErrCodeMoleculeAlreadyExists
	CodeSearchFailed          = ErrCodeSubstructureSearchFailed
	CodeSearchTimeout         = ErrCodeSearchTimeout
	CodeUnsupportedUpload     = ErrCodeUploadUnsupportedType
)

// ErrorCodeHTTPStatus maps codes to HTTP status codes.  A duplicate
// identifier is a 400, not a 409, to stay compatible with existing clients.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,

	ErrCodeMoleculeInvalidSMILES:    http.StatusBadRequest,
	ErrCodeMoleculeInvalidFormat:    http.StatusBadRequest,
	ErrCodeMoleculeNotFound:         http.StatusNotFound,
	ErrCodeMoleculeAlreadyExists:    http.StatusBadRequest,
	ErrCodeSubstructureSearchFailed: http.StatusInternalServerError,
	ErrCodeSearchTimeout:            http.StatusGatewayTimeout,
	ErrCodeUploadUnsupportedType:    http.StatusBadRequest,
}

// ErrorCodeMessage maps codes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",

	ErrCodeMoleculeInvalidSMILES:    "invalid SMILES string",
	ErrCodeMoleculeInvalidFormat:    "Invalid file format. Each line must be 'identifier:SMILES'",
	ErrCodeMoleculeNotFound:         "molecule not found",
	ErrCodeMoleculeAlreadyExists:    "molecule identifier already exists",
	ErrCodeSubstructureSearchFailed: "substructure search failed",
	ErrCodeSearchTimeout:            "substructure search timed out",
	ErrCodeUploadUnsupportedType:    "Invalid file format. Only text files are supported.",
}

// HTTPStatusForCode returns the HTTP status for code, defaulting to 500.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for code.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError reports whether code maps to a 4xx status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError reports whether code maps to a 5xx status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of code.
func ModuleForCode(code ErrorCode) string {
	parts := strings.SplitN(string(code), "_", 2)
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
