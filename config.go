package session

import (
	"github.com/cruciblehq/sessionkernel/internal/logging"
	"github.com/cruciblehq/sessionkernel/reactor"
)

// Config holds the immutable settings a Session is constructed with.
type Config struct {
	SessionID        string
	Folder           string
	MaxContextTokens int
	SystemPrompt     string
	Custom           map[string]string

	logger          logging.Logger
	reactorImpl     reactor.Reactor
	ringCapacity    int
	channelCapacity int
}

// reactorConfig projects Config down to the fields the reactor context
// needs, without exposing session-internal construction fields.
func (c Config) reactorConfig() reactor.Config {
	return reactor.Config{
		SessionID:        c.SessionID,
		Folder:           c.Folder,
		MaxContextTokens: c.MaxContextTokens,
		SystemPrompt:     c.SystemPrompt,
	}
}

const (
	defaultRingCapacity    = 256
	defaultChannelCapacity = 64
)

// Option configures a Session at construction time, following the same
// functional-options shape used across this module's ambient stack.
type Option interface {
	apply(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) apply(c *Config) { f(c) }

// WithSessionID overrides the generated session identifier. Default is a
// freshly generated UUID.
func WithSessionID(id string) Option {
	return optionFunc(func(c *Config) { c.SessionID = id })
}

// WithMaxContextTokens sets the token budget that triggers compaction
// once the reactor context's accumulated estimate reaches or exceeds it.
// Zero (the default) disables compaction entirely.
func WithMaxContextTokens(n int) Option {
	return optionFunc(func(c *Config) { c.MaxContextTokens = n })
}

// WithSystemPrompt records the system prompt persisted in the
// SessionStarted event.
func WithSystemPrompt(prompt string) Option {
	return optionFunc(func(c *Config) { c.SystemPrompt = prompt })
}

// WithCustom attaches an arbitrary key/value pair to Config.Custom. The
// pairs are not passed to the reactor (reactorConfig does not copy them)
// and are not recorded in the SessionStarted event; they do not affect
// runtime behavior.
func WithCustom(key, value string) Option {
	return optionFunc(func(c *Config) {
		if c.Custom == nil {
			c.Custom = map[string]string{}
		}
		c.Custom[key] = value
	})
}

// WithLogger attaches a structured logger. Default is a no-op logger.
func WithLogger(log logging.Logger) Option {
	return optionFunc(func(c *Config) { c.logger = log })
}

// WithReactor attaches a Reactor implementation. Default is
// reactor.DefaultReactor{}.
func WithReactor(r reactor.Reactor) Option {
	return optionFunc(func(c *Config) { c.reactorImpl = r })
}

// WithRingCapacity overrides the event ring's capacity (rounded up to a
// power of two by ring.New). Default is 256.
func WithRingCapacity(n int) Option {
	return optionFunc(func(c *Config) { c.ringCapacity = n })
}

// WithChannelCapacity overrides the inbound event channel's buffer size.
// Default is 64.
func WithChannelCapacity(n int) Option {
	return optionFunc(func(c *Config) { c.channelCapacity = n })
}

func resolveConfig(folder string, opts []Option) Config {
	cfg := Config{
		Folder:          folder,
		logger:          logging.NoOp(),
		reactorImpl:     reactor.DefaultReactor{},
		ringCapacity:    defaultRingCapacity,
		channelCapacity: defaultChannelCapacity,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.apply(&cfg)
	}
	return cfg
}
