// Package validation binds request data and validates it.
//
// Request types carry validator tags and implement Validatable. Failures
// become a 400 errs.HTTPError with one FieldError per offending field.
package validation
