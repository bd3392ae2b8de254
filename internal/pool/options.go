package pool

import (
	"fmt"
	"strings"

	"github.com/coachpo/poolkit/internal/observability"
)

// Policy selects how Acquire behaves on an empty free stack.
type Policy int

const (
	// PolicyStrict fails with ErrPoolExhausted.
	PolicyStrict Policy = iota
	// PolicyElastic creates one more instance and grows capacity.
	PolicyElastic
)

func (p Policy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	case PolicyElastic:
		return "elastic"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// MarshalText encodes the policy name.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a policy name.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePolicy maps "strict" or "elastic" (case-insensitive) to a Policy. An
// empty string means strict.
func ParsePolicy(raw string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "strict":
		return PolicyStrict, nil
	case "elastic":
		return PolicyElastic, nil
	default:
		return PolicyStrict, fmt.Errorf("pool: unknown policy %q", raw)
	}
}

// Option configures a pool at construction.
type Option func(*settings)

type settings struct {
	policy  Policy
	logger  observability.Logger
	metrics *Metrics
}

func newSettings(opts []Option) settings {
	s := settings{
		policy: PolicyStrict,
		logger: observability.Log(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.logger == nil {
		s.logger = observability.Noop()
	}
	return s
}

// WithPolicy selects the acquire policy.
func WithPolicy(policy Policy) Option {
	return func(s *settings) {
		s.policy = policy
	}
}

// WithLogger overrides the global logger for this pool.
func WithLogger(logger observability.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithMetrics reports the pool through m.
func WithMetrics(m *Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}
