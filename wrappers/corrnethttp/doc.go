/*
Package corrnethttp provides correlation wrappers for net/http Handlers.

Summary

corrnethttp provides wrappers for all the standard `net/http` types: Handler,
HandlerFunc, and ServeMux, plus a RoundTripper for outbound calls.

See the examples/nethttp/ and examples/nethttpfunc/ folders at the top level
of this repository for sample programs that demonstrate how to use these
wrappers.

For best results, wrap the mux passed to http.ListenAndServe - this will get
you a span for every HTTP request handled by the server. The `nethttp`
example demonstrates this approach.

Wrapping individual handlers or HandleFuncs will generate spans only for the
endpoints that are wrapped; 404s, for example, will not generate spans. See
`nethttpfunc` in the example directory for this approach.

Wrap the Transport of an http.Client with WrapRoundTripper to record every
outbound call and hand its correlation identifiers to the next service in
both header formats.

*/
package corrnethttp
