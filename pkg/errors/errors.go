package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeValidation represents invalid user input (unknown city, category...)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeExtraction represents a first page without usable embedded data
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeFetch represents a page that no fetch strategy could retrieve
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeRateLimit represents a source that asked us to back off
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// SearchError represents an error raised while serving a marketplace search
type SearchError struct {
	Type      ErrorType
	Component string
	Message   string
	Err       error
	Time      time.Time
}

// Error implements the error interface
func (e *SearchError) Error() string {
	if e.Component == "" {
		if e.Err != nil {
			return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
		}
		return fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Component, e.Message)
}

// Unwrap returns the underlying error
func (e *SearchError) Unwrap() error {
	return e.Err
}

// New creates a new SearchError
func New(errType ErrorType, component, message string, err error) *SearchError {
	return &SearchError{
		Type:      errType,
		Component: component,
		Message:   message,
		Err:       err,
		Time:      time.Now(),
	}
}

// NewValidation creates a new validation error
func NewValidation(component, message string) *SearchError {
	return New(ErrorTypeValidation, component, message, nil)
}

// NewExtraction creates a new extraction error
func NewExtraction(component, message string) *SearchError {
	return New(ErrorTypeExtraction, component, message, nil)
}

// NewFetch creates a new fetch error
func NewFetch(component, message string, err error) *SearchError {
	return New(ErrorTypeFetch, component, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(component string, duration time.Duration) *SearchError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, component, message, nil)
}

// NewCache creates a new cache error
func NewCache(component, message string, err error) *SearchError {
	return New(ErrorTypeCache, component, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(component, message string, err error) *SearchError {
	return New(ErrorTypePublisher, component, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *SearchError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// TypeOf returns the ErrorType of the first SearchError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var se *SearchError
	if stderrors.As(err, &se) {
		return se.Type
	}
	return ""
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return TypeOf(err) == ErrorTypeValidation }

// IsExtraction reports whether err is an extraction error
func IsExtraction(err error) bool { return TypeOf(err) == ErrorTypeExtraction }

// IsFetch reports whether err is a fetch error
func IsFetch(err error) bool { return TypeOf(err) == ErrorTypeFetch }

// IsRateLimit reports whether err is a rate limit error
func IsRateLimit(err error) bool { return TypeOf(err) == ErrorTypeRateLimit }
