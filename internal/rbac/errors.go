package rbac

import (
	"errors"
	"fmt"
)

// Sentinel errors. A denied decision is (false, nil); these errors mean the
// decision itself could not be made or a rule is broken.
var (
	// ErrNotFound is returned when a user, group or rule that was assumed to
	// exist is missing. HasGroup reports it as a plain false.
	ErrNotFound = errors.New("rbac: not found")

	// ErrMalformedRule marks a record rule whose domain cannot be compiled.
	// Decisions treat such rules fail-safe and only return the error when the
	// engine is built WithStrictDomains.
	ErrMalformedRule = errors.New("rbac: malformed record rule")

	// ErrStorage wraps every persistence failure. Decisions never allow when
	// it is returned.
	ErrStorage = errors.New("rbac: storage unavailable")

	// ErrInvalidOperation is returned for an operation outside the enum.
	ErrInvalidOperation = errors.New("rbac: invalid operation")
)

// IsNotFoundErr returns true if err is or wraps ErrNotFound.
func IsNotFoundErr(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsMalformedRuleErr returns true if err is or wraps ErrMalformedRule.
func IsMalformedRuleErr(err error) bool {
	return errors.Is(err, ErrMalformedRule)
}

// IsStorageErr returns true if err is or wraps ErrStorage.
func IsStorageErr(err error) bool {
	return errors.Is(err, ErrStorage)
}

// RuleError describes one record rule that could not be compiled for a user.
type RuleError struct {
	Identifier string
	Model      string
	Operation  Operation
	Global     bool
	Err        error
}

func (e *RuleError) Error() string {
	scope := "scoped"
	if e.Global {
		scope = "global"
	}
	return fmt.Sprintf("rbac: %s rule %s on %s/%s: %v", scope, e.Identifier, e.Model, e.Operation, e.Err)
}

func (e *RuleError) Unwrap() []error { return []error{ErrMalformedRule, e.Err} }

// StorageError wraps err with ErrStorage unless it already is one.
func StorageError(op string, err error) error {
	if err == nil || errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
