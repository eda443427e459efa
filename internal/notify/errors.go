package notify

import "fmt"

// ConfigurationError reports missing mail settings. It is returned before
// any delivery is attempted.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("mail configuration incomplete: missing %v", e.Missing)
}

// SendError wraps a failed delivery with the provider's diagnostic.
type SendError struct {
	Provider   string
	Diagnostic string
	Err        error
}

func (e *SendError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("%s: send failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: send failed: %s: %v", e.Provider, e.Diagnostic, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
