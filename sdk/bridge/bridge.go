// Package bridge exposes MIDI input and output endpoints through opaque
// handles and uniform result envelopes, so they can be driven from callers
// that cannot hold Go values or see Go errors, such as the C ABI in
// cmd/crtmidi.
//
// Every fallible operation returns a Result. Operations that cannot fail for
// data-dependent reasons return plain values and panic with a
// *ContractViolation when handed a handle they cannot use.
package bridge

import (
	"github.com/leandrodaf/midibridge/internal/midiio"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"go.uber.org/multierr"
)

// Bridge owns every handle it issues.
type Bridge struct {
	logger  contracts.Logger
	options contracts.Options
	handles *registry
}

// New creates a Bridge configured with opts.
//
// opts ...contracts.Option: logger, log level, log file, default client name
// and default queue size limit.
//
// Returns:
//   - *Bridge: a bridge with no live handles.
func New(opts ...contracts.Option) *Bridge {
	options := applyDefaultOptions(opts...)
	return &Bridge{
		logger:  options.Logger,
		options: options,
		handles: newRegistry(),
	}
}

// Logger returns the logger the bridge reports through.
func (b *Bridge) Logger() contracts.Logger { return b.logger }

// Live returns the number of handles not yet deleted.
func (b *Bridge) Live() int { return b.handles.len() }

// Close destroys every live handle. Handles issued before Close must not be
// used afterwards.
func (b *Bridge) Close() error {
	var err error
	for h, e := range b.handles.drain() {
		switch v := e.value.(type) {
		case *input:
			err = multierr.Append(err, v.in.Close())
		case *output:
			err = multierr.Append(err, v.Close())
		}
		b.logger.Debug("handle released on close", b.logger.Field().Uint64("handle", uint64(h)))
	}
	if err != nil {
		b.logger.Error("bridge shutdown failed", b.logger.Field().Error("error", err))
	}
	return err
}

func (b *Bridge) clientName(name string) string {
	if name == "" {
		return b.options.ClientName
	}
	return name
}

// CompiledAPIs lists the backends built into this binary.
func CompiledAPIs() []contracts.API { return midiio.CompiledAPIs() }

// APIName returns the short lower-case name of api, or "" when api is out of range.
func APIName(api contracts.API) string {
	if !api.Valid() {
		return ""
	}
	return api.String()
}

// APIDisplayName returns the human readable name of api, or "" when api is out of range.
func APIDisplayName(api contracts.API) string {
	if !api.Valid() {
		return ""
	}
	return api.DisplayName()
}
