package lazy

import (
	"github.com/hanpama/gqlpath/internal/eventbus"
	"github.com/hanpama/gqlpath/internal/section"
)

type Options struct {
	// ResultCache serves repeated expressions on an unchanged document
	// without matching again.
	ResultCache bool

	// SectionCache reuses parsed sections across calls.
	SectionCache bool

	// SelfCheck verifies every freshly computed answer against a full
	// document evaluation. Divergence fails the call with
	// ErrMatchEvaluation.
	SelfCheck bool

	// Bus receives evaluation events. nil disables them.
	Bus *eventbus.Bus

	// Source reads documents. nil reads through afs.
	Source section.Source
}

type Option func(*Options)

func WithResultCache(enable bool) Option  { return func(o *Options) { o.ResultCache = enable } }
func WithSectionCache(enable bool) Option { return func(o *Options) { o.SectionCache = enable } }
func WithSelfCheck(enable bool) Option    { return func(o *Options) { o.SelfCheck = enable } }
func WithEventBus(b *eventbus.Bus) Option { return func(o *Options) { o.Bus = b } }
func WithSource(src section.Source) Option {
	return func(o *Options) { o.Source = src }
}

func defaultOptions() Options {
	return Options{ResultCache: true, SectionCache: true}
}
