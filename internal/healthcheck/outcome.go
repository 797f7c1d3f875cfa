// Package healthcheck probes indexed URLs for liveness and prunes the
// entries whose target has gone away.
package healthcheck

import (
	"fmt"
	"net/url"
	"strings"
)

// Record is one indexed entry to check.
type Record struct {
	ID  int64
	URL string
}

// Status classifies a checked URL.
type Status int

// Status values
const (
	StatusHealthy Status = iota + 1
	StatusDead
	StatusMalformed
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDead:
		return "dead"
	case StatusMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the classification of one Record. StatusCode is zero when no
// response was received. Err keeps the probe failure for logging.
type Outcome struct {
	Record
	Status     Status
	StatusCode int
	Err        error
}

// Outcomes is a batch of outcomes in input order.
type Outcomes []Outcome

// ByURL maps each checked URL to its outcome.
func (o Outcomes) ByURL() map[string]Outcome {
	byURL := make(map[string]Outcome, len(o))
	for _, outcome := range o {
		byURL[outcome.URL] = outcome
	}
	return byURL
}

// Count returns how many outcomes have the given status.
func (o Outcomes) Count(status Status) int {
	n := 0
	for _, outcome := range o {
		if outcome.Status == status {
			n++
		}
	}
	return n
}

// Classify maps a probe response to a status. Any 2xx or 3xx answer is
// healthy; transport failures and every other code are dead.
func Classify(code int, err error) Status {
	if err != nil {
		return StatusDead
	}
	if code >= 200 && code < 400 {
		return StatusHealthy
	}
	return StatusDead
}

// IsMalformed reports whether raw cannot be probed: it does not parse, is
// relative, has no host or uses a scheme other than http or https.
func IsMalformed(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return true
	}
	if !u.IsAbs() || u.Host == "" {
		return true
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return false
	}
	return true
}
