// Package apierrors implements the error taxonomy and envelope of
// spec.md §7, grounded in the Python prototype's error_handling.py
// format_error_response/get_error_suggestions.
package apierrors

import "fmt"

// Kind is one of the closed set of error types the tool facade may
// surface.
type Kind string

const (
	NotFound             Kind = "NotFound"
	Network              Kind = "Network"
	RateLimited          Kind = "RateLimited"
	VersionNotSatisfiable Kind = "VersionNotSatisfiable"
	InvalidInput         Kind = "InvalidInput"
	UpstreamServerError  Kind = "UpstreamServerError"
	CacheError           Kind = "CacheError"
)

// TripsBreaker reports whether an error of this kind counts as a
// circuit-breaker failure, per spec.md §7's propagation policy.
func (k Kind) TripsBreaker() bool {
	return k == Network || k == UpstreamServerError
}

// Error is the typed error carried through the fetch pipeline; the
// tool facade renders it into the wire Envelope.
type Error struct {
	Kind        Kind
	Message     string
	Suggestions []string
	Context     map[string]any
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error wrapping cause with the given kind/message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithSuggestions attaches identifier-aware suggestions and returns e
// for chaining.
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = suggestions
	return e
}

// WithContext attaches structured context and returns e for chaining.
func (e *Error) WithContext(ctx map[string]any) *Error {
	e.Context = ctx
	return e
}

// Envelope is the wire shape every tool returns on failure, per
// spec.md §7.
type Envelope struct {
	Error       bool           `json:"error"`
	ErrorType   Kind           `json:"error_type"`
	Message     string         `json:"message"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

// ToEnvelope renders e into its wire form. now is injected (RFC3339)
// so callers control the clock, keeping this package free of a
// hard time.Now() dependency for reproducible tests.
func (e *Error) ToEnvelope(nowRFC3339 string) Envelope {
	return Envelope{
		Error:       true,
		ErrorType:   e.Kind,
		Message:     e.Message,
		Suggestions: e.Suggestions,
		Context:     e.Context,
		Timestamp:   nowRFC3339,
	}
}

// GenericSuggestions returns the default not-context-aware suggestion
// list for kind, mirroring the prototype's suggestions_map.
func GenericSuggestions(kind Kind) []string {
	switch kind {
	case NotFound:
		return []string{
			"Check if the name is spelled correctly",
			"Verify that the item exists in the specified library",
			"Try the search tool for similar items",
			"Common libraries: widgets, material, cupertino, painting, rendering",
		}
	case Network:
		return []string{
			"Check your network connection",
			"The documentation server may be temporarily unavailable",
			"Try again in a few moments",
		}
	case RateLimited:
		return []string{
			"You've made too many requests in a short time",
			"Wait a few minutes before retrying",
		}
	case UpstreamServerError:
		return []string{
			"The upstream documentation server returned an error",
			"Try again in a few moments",
		}
	case CacheError:
		return []string{
			"The local cache encountered an error",
			"The request will proceed without caching",
		}
	case VersionNotSatisfiable:
		return []string{
			"No published version satisfies the requested constraint",
			"Try a wider range or a keyword such as latest or stable",
		}
	case InvalidInput:
		return []string{
			"Check the identifier and options for typos",
			"See the tool description for the accepted identifier forms",
		}
	default:
		return nil
	}
}
