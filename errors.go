package signalflow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents specific error conditions in the control loop
type ErrorCode int

const (
	// No error occurred
	ErrCodeNone ErrorCode = iota
	// Approach is not part of the configured set
	ErrCodeUnknownApproach
	// Configuration violates an invariant
	ErrCodeInvalidConfiguration
	// Machine is not started
	ErrCodeMachineNotStarted
	// Machine was already started
	ErrCodeAlreadyStarted
	// Machine has been reset and no longer accepts commands
	ErrCodeMachineStopped
)

// ConfigurationError represents an invalid configuration or an invalid decision
type ConfigurationError struct {
	Component string
	Issue     string
	Issues    []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Issues) > 1 {
		return fmt.Sprintf("configuration error in %s: %d issues: %s", e.Component, len(e.Issues), strings.Join(e.Issues, "; "))
	}
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Issue)
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(component, issue string) *ConfigurationError {
	return &ConfigurationError{
		Component: component,
		Issue:     issue,
		Issues:    []string{issue},
	}
}

// NewUnknownApproachError creates the error returned for a decision naming an approach
// outside the configured set
func NewUnknownApproachError(approach Approach) *ConfigurationError {
	return NewConfigurationError("Decision", fmt.Sprintf("unknown approach '%s'", approach))
}

// MachineError represents signal machine lifecycle errors
type MachineError struct {
	Code      ErrorCode
	Operation string
	Message   string
}

func (e *MachineError) Error() string {
	return fmt.Sprintf("machine error during %s: %s", e.Operation, e.Message)
}

// Is matches machine errors by code so sentinels work with errors.Is
func (e *MachineError) Is(target error) bool {
	t, ok := target.(*MachineError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewMachineError creates a new machine error
func NewMachineError(code ErrorCode, operation string, message string) *MachineError {
	return &MachineError{
		Code:      code,
		Operation: operation,
		Message:   message,
	}
}

var (
	// ErrMachineNotStarted is returned when the machine owner goroutine is not running
	ErrMachineNotStarted = NewMachineError(ErrCodeMachineNotStarted, "", "signal machine is not started")

	// ErrAlreadyStarted is returned when Start is called twice
	ErrAlreadyStarted = NewMachineError(ErrCodeAlreadyStarted, "", "signal machine is already started")

	// ErrMachineStopped is returned after Reset
	ErrMachineStopped = NewMachineError(ErrCodeMachineStopped, "", "signal machine has been reset")
)

// ErrorCollector collects multiple errors during validation
type ErrorCollector struct {
	errors []error
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		errors: make([]error, 0),
	}
}

// Add adds an error to the collector
func (ec *ErrorCollector) Add(err error) {
	if err != nil {
		ec.errors = append(ec.errors, err)
	}
}

// Addf adds a formatted error to the collector
func (ec *ErrorCollector) Addf(format string, args ...any) {
	ec.errors = append(ec.errors, fmt.Errorf(format, args...))
}

// HasErrors returns whether any errors were collected
func (ec *ErrorCollector) HasErrors() bool {
	return len(ec.errors) > 0
}

// Errors returns all collected errors
func (ec *ErrorCollector) Errors() []error {
	return ec.errors
}

// AsConfigurationError folds the collected errors into a single ConfigurationError.
// It returns nil when nothing was collected.
func (ec *ErrorCollector) AsConfigurationError(component string) error {
	if len(ec.errors) == 0 {
		return nil
	}

	issues := make([]string, 0, len(ec.errors))
	for _, err := range ec.errors {
		issues = append(issues, err.Error())
	}

	return &ConfigurationError{
		Component: component,
		Issue:     issues[0],
		Issues:    issues,
	}
}

// IsConfigurationError checks if an error is a ConfigurationError
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsMachineError checks if an error is a MachineError
func IsMachineError(err error) bool {
	var target *MachineError
	return errors.As(err, &target)
}

// GetErrorCode returns the error code for known error types
func GetErrorCode(err error) ErrorCode {
	var configErr *ConfigurationError
	if errors.As(err, &configErr) {
		if configErr.Component == "Decision" {
			return ErrCodeUnknownApproach
		}
		return ErrCodeInvalidConfiguration
	}

	var machineErr *MachineError
	if errors.As(err, &machineErr) {
		return machineErr.Code
	}

	return ErrCodeNone
}
