package corrnethttp

import (
	"net/http"
	"reflect"
	"runtime"

	"github.com/rambhatt-msft/correlate-go/client"
	"github.com/rambhatt-msft/correlate-go/timer"
	"github.com/rambhatt-msft/correlate-go/trace"
	"github.com/rambhatt-msft/correlate-go/wrappers/common"
	"github.com/rambhatt-msft/correlate-go/wrappers/config"
)

// WrapHandler will create a span per invocation of this handler with all the
// standard HTTP fields attached, continuing whatever trace the request's
// correlation headers describe.
func WrapHandler(handler http.Handler) http.Handler {
	return WrapHandlerWithConfig(handler, config.HTTPIncomingConfig{})
}

// WrapHandlerWithConfig will create a span per invocation of this handler. If
// passed a config.HTTPIncomingConfig with an HTTPParserHook, the hook decides
// which trace the request continues instead of the standard correlation
// headers (e.g. the ids may arrive in a proprietary format).
func WrapHandlerWithConfig(handler http.Handler, cfg config.HTTPIncomingConfig) http.Handler {
	// if we can cache handlerName here, let's do so for efficiency's sake
	handlerName := runtime.FuncForPC(reflect.ValueOf(handler).Pointer()).Name()
	wrappedHandler := func(w http.ResponseWriter, r *http.Request) {
		// get a new context with our trace from the request
		ctx, span := common.StartSpanOrTraceFromHTTPWithHook(r, cfg.HTTPParserHook)
		defer span.Send()
		// push the context with our trace and span on to the request
		r = r.WithContext(ctx)

		// replace the writer with our wrapper to catch the status code
		wrappedWriter := common.NewResponseWriter(w)
		// add the name of the handler func we're about to invoke
		if handlerName != "" {
			span.AddField("handler.name", handlerName)
			span.AddField("name", handlerName)
		}

		handler.ServeHTTP(wrappedWriter, r)
		if wrappedWriter.Status == 0 {
			wrappedWriter.Status = 200
		}
		span.AddField("response.status_code", wrappedWriter.Status)
	}
	return http.HandlerFunc(wrappedHandler)
}

// WrapHandlerFunc will create a span per invocation of this handler function
// with all the standard HTTP fields attached.
func WrapHandlerFunc(hf func(http.ResponseWriter, *http.Request)) func(http.ResponseWriter, *http.Request) {
	handlerFuncName := runtime.FuncForPC(reflect.ValueOf(hf).Pointer()).Name()
	return func(w http.ResponseWriter, r *http.Request) {
		// get a new context with our trace from the request
		ctx, span := common.StartSpanOrTraceFromHTTP(r)
		defer span.Send()
		// push the context with our trace and span on to the request
		r = r.WithContext(ctx)

		// replace the writer with our wrapper to catch the status code
		wrappedWriter := common.NewResponseWriter(w)
		// add the name of the handler func we're about to invoke
		if handlerFuncName != "" {
			span.AddField("handler_func_name", handlerFuncName)
			span.AddField("name", handlerFuncName)
		}

		hf(wrappedWriter, r)
		if wrappedWriter.Status == 0 {
			wrappedWriter.Status = 200
		}
		span.AddField("response.status_code", wrappedWriter.Status)
	}
}

// WrapMuxHandler wraps an http.ServeMux and returns an http.Handler. It is
// intended to be used to wrap a ServeMux when it is passed to
// http.ListenAndServe after all the handlers have been added to the ServeMux,
// so every route (including 404s) gets a span.
func WrapMuxHandler(mux *http.ServeMux) http.Handler {
	wrappedHandler := func(w http.ResponseWriter, r *http.Request) {
		// get a new context with our trace from the request
		ctx, span := common.StartSpanOrTraceFromHTTP(r)
		defer span.Send()
		// push the context with our trace and span on to the request
		r = r.WithContext(ctx)

		// replace the writer with our wrapper to catch the status code
		wrappedWriter := common.NewResponseWriter(w)

		handler, pat := mux.Handler(r)
		handlerName := runtime.FuncForPC(reflect.ValueOf(handler).Pointer()).Name()
		hType := reflect.TypeOf(handler).String()
		span.AddField("mux.handler.pattern", pat)
		span.AddField("mux.handler.type", hType)
		if handlerName != "" {
			span.AddField("mux.handler.name", handlerName)
			span.AddField("name", handlerName)
		}

		handler.ServeHTTP(wrappedWriter, r)
		if wrappedWriter.Status == 0 {
			wrappedWriter.Status = 200
		}
		span.AddField("response.status_code", wrappedWriter.Status)
	}
	return http.HandlerFunc(wrappedHandler)
}

// WrapRoundTripper wraps an http transport for outgoing HTTP calls. Using a
// wrapped transport will send an event for each outbound call you make, and
// attach the correlation headers that let the receiving service continue the
// trace. Include a context with outbound requests when possible to tie the
// call to the trace it was made from.
func WrapRoundTripper(r http.RoundTripper) http.RoundTripper {
	return WrapRoundTripperWithConfig(r, config.HTTPOutgoingConfig{})
}

// WrapRoundTripperWithConfig wraps an http transport for outgoing HTTP calls.
// If passed a config.HTTPOutgoingConfig with an HTTPPropagationHook, the hook
// supplies the headers attached to each outbound request in place of the
// standard correlation headers.
func WrapRoundTripperWithConfig(r http.RoundTripper, cfg config.HTTPOutgoingConfig) http.RoundTripper {
	return &corrTripper{
		wrt:             r,
		propagationHook: cfg.HTTPPropagationHook,
	}
}

type corrTripper struct {
	wrt             http.RoundTripper
	propagationHook config.HTTPTracePropagationHook
}

func (ct *corrTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	span := trace.GetSpanFromContext(ctx)

	if span == nil {
		// there is no trace, just send an event
		tm := timer.Start()
		ev := client.NewBuilder().NewEvent()
		defer ev.Send()

		// add in common request headers.
		reqprops := common.GetRequestProps(r)
		for k, v := range reqprops {
			ev.AddField(k, v)
		}
		// change the type of the event to represent outbound instead of inbound
		ev.AddField("meta.type", "http_client")
		resp, err := ct.wrt.RoundTrip(r)

		if err != nil {
			ev.AddField("error", err.Error())
		} else {
			ev.AddField("resp.status_code", resp.StatusCode)
		}
		dur := tm.Finish()
		ev.AddField("duration_ms", dur)
		return resp, err
	}
	// we have a trace, let's use it and pass along trace context in addition
	// to making a span around this outbound http call
	ctx, span = span.CreateChild(ctx)
	defer span.Send()
	r = r.WithContext(ctx)
	if ct.propagationHook != nil {
		for k, v := range ct.propagationHook(r, span.TraceContext()) {
			r.Header.Set(k, v)
		}
	} else {
		common.InjectTraceHeaders(span, r.Header)
	}

	span.AddField("meta.type", "http_client")
	reqprops := common.GetRequestProps(r)
	for k, v := range reqprops {
		span.AddField(k, v)
	}

	resp, err := ct.wrt.RoundTrip(r)

	if err != nil {
		span.AddField("error", err.Error())
	} else {
		span.AddField("resp.status_code", resp.StatusCode)
	}

	return resp, err
}
