// Package sanitizer normalizes customer input before validation and storage.
//
// All functions are idempotent and never return errors: input that cannot be
// normalized comes back empty or unchanged, leaving the rejection to the
// validator.
package sanitizer
