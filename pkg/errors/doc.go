// Package errors provides structured error handling with error codes for simple-ums.
//
// Services return *Error values carrying an ErrorCode. Handlers translate them at the
// HTTP boundary with HTTPStatus and put Message into the response envelope.
//
// # Basic Usage
//
//	import apperrors "github.com/tendant/simple-ums/pkg/errors"
//
//	err := apperrors.NotFound("User", id)        // 404, "User Not Found for [42]"
//	err := apperrors.Missing("password", "User")  // 400
//	err := apperrors.PermissionDenied("USER_READ") // 403, "Permission Denied: USER_READ"
//	err := apperrors.FromPostgres(pgErr)          // 23503/23505 -> 409
//	err := apperrors.FromValidation(verr)         // aggregated 400
//
// # Status Mapping
//
//   - ErrCodeMissingRequired, ErrCodeValidationFailed: 400
//   - ErrCodeUnauthorized, ErrCodeTokenInvalid: 401
//   - ErrCodeForbidden, ErrCodeUserNotActive: 403
//   - ErrCodeNotFound: 404
//   - ErrCodeConflict: 409
//   - ErrCodeRateLimited: 429
//   - anything else: 500
package errors
