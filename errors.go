package catalyst

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrConfig reports invalid or missing agent configuration.
type ErrConfig struct {
	Reason string
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("config: %s", e.Reason)
}

// ErrLLM reports a failure from a language model provider.
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP reports a non-2xx HTTP response from a provider API.
// RetryAfter carries the server-requested delay when the response
// included a Retry-After header; zero means none was given.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ErrParse reports a malformed LM response that could not be coerced
// into the expected structure. Raw holds the offending content.
type ErrParse struct {
	Reason string
	Raw    string
}

func (e *ErrParse) Error() string {
	return fmt.Sprintf("parse: %s", e.Reason)
}

// ErrHalt is returned by a Guard to stop message processing and reply
// with Response instead of invoking the agent.
type ErrHalt struct {
	Response string
}

func (e *ErrHalt) Error() string {
	return "processing halted: " + e.Response
}

// ParseRetryAfter parses a Retry-After header value, which is either a
// delay in seconds or an HTTP date. Returns 0 for empty or unparseable
// values.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
