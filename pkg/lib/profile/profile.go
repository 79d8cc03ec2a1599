package profile

import (
	"net/http"
	"net/http/pprof"
)

// Handler names accepted by Only.
const (
	Index   = "index"
	Cmdline = "cmdline"
	CPU     = "profile"
	Symbol  = "symbol"
	Trace   = "trace"
)

var handlers = map[string]struct {
	path    string
	handler http.HandlerFunc
}{
	Index:   {"/debug/pprof/", pprof.Index},
	Cmdline: {"/debug/pprof/cmdline", pprof.Cmdline},
	CPU:     {"/debug/pprof/profile", pprof.Profile},
	Symbol:  {"/debug/pprof/symbol", pprof.Symbol},
	Trace:   {"/debug/pprof/trace", pprof.Trace},
}

type profileConfig struct {
	enabled map[string]bool
}

// Option applies a configuration option to the given config.
type Option func(p *profileConfig)

// Only restricts registration to the named handlers.
func Only(names ...string) Option {
	return func(p *profileConfig) {
		for _, n := range names {
			p.enabled[n] = true
		}
	}
}

// RegisterHandlers registers pprof handlers with the given ServeMux. If
// no options are given, every handler is registered. Named profiles
// such as heap and goroutine are served by the index handler.
func RegisterHandlers(mux *http.ServeMux, options ...Option) {
	config := &profileConfig{enabled: make(map[string]bool)}
	for _, o := range options {
		o(config)
	}
	for name, h := range handlers {
		if len(options) == 0 || config.enabled[name] {
			mux.Handle(h.path, h.handler)
		}
	}
}
