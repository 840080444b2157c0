package api

type apiErrorCode uint
type apiErrorType string

const (
	// Public error messages (included in response objects)

	// ErrParamValidationFailedCode code for param validation failed error
	ErrParamValidationFailedCode apiErrorCode = 1
	// ErrParamValidationFailedType type for param validation failed error
	ErrParamValidationFailedType apiErrorType = "ErrParamValidationFailed"

	// ErrSQLTimeout error message returned when timeout due to SQL connection
	ErrSQLTimeout = "The node is under heavy pressure, please try again later"
	// ErrSQLTimeoutCode code for sql timeout error
	ErrSQLTimeoutCode apiErrorCode = 2
	// ErrSQLTimeoutType type for sql timeout type
	ErrSQLTimeoutType apiErrorType = "ErrSQLTimeout"

	// ErrNotFoundCode code for items that do not exist in the HistoryDB or
	// the StateDB
	ErrNotFoundCode apiErrorCode = 3
	// ErrNotFoundType type for not found error
	ErrNotFoundType apiErrorType = "ErrNotFound"

	// ErrOperationRejectedCode code for operations rejected by the engine.
	// The engine error code is returned in the engineCode field.
	ErrOperationRejectedCode apiErrorCode = 4
	// ErrOperationRejectedType type for operations rejected by the engine
	ErrOperationRejectedType apiErrorType = "ErrOperationRejected"

	// ErrTooManyRequests error message returned when the operations rate
	// limit is reached
	ErrTooManyRequests = "Too many operations, please try again later"
	// ErrTooManyRequestsCode code for rate limited operations
	ErrTooManyRequestsCode apiErrorCode = 5
	// ErrTooManyRequestsType type for rate limited operations
	ErrTooManyRequestsType apiErrorType = "ErrTooManyRequests"

	// ErrInternalCode code for unexpected errors of the node
	ErrInternalCode apiErrorCode = 6
	// ErrInternalType type for unexpected errors of the node
	ErrInternalType apiErrorType = "ErrInternal"

	// Internal error messages (used for logs or handling errors returned from internal components)

	// errCtxTimeout error message received internally when context reaches timeout
	errCtxTimeout = "context deadline exceeded"
)

type apiError struct {
	Err  error
	Code apiErrorCode
	Type apiErrorType
}

func (a apiError) Error() string {
	return a.Err.Error()
}
