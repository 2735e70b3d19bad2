package corrgorilla

import (
	"net/http"
	"reflect"
	"runtime"

	"github.com/gorilla/mux"
	"github.com/rambhatt-msft/correlate-go/trace"
	"github.com/rambhatt-msft/correlate-go/wrappers/common"
)

// Middleware adds trace correlation to a gorilla mux. Each request gets a
// span continuing the trace named by the inbound correlation headers, with
// the matched route and its variables attached.
func Middleware(handler http.Handler) http.Handler {
	wrappedHandler := func(w http.ResponseWriter, r *http.Request) {
		ctx, span := common.StartSpanOrTraceFromHTTP(r)
		defer span.Send()
		// push the context with our trace and span on to the request
		r = r.WithContext(ctx)

		// replace the writer with our wrapper to catch the status code
		wrappedWriter := common.NewResponseWriter(w)

		for k, v := range mux.Vars(r) {
			span.AddField("gorilla.vars."+k, v)
		}
		if route := mux.CurrentRoute(r); route != nil {
			addRouteFields(span, route)
		}

		handler.ServeHTTP(wrappedWriter, r)
		if wrappedWriter.Status == 0 {
			wrappedWriter.Status = 200
		}
		span.AddField("response.status_code", wrappedWriter.Status)
	}
	return http.HandlerFunc(wrappedHandler)
}

// addRouteFields names the span after the matched route. A name the user set
// on the route wins over the handler's function or struct name.
func addRouteFields(span *trace.Span, route *mux.Route) {
	chosen := route.GetHandler()
	switch v := reflect.ValueOf(chosen); v.Kind() {
	case reflect.Func:
		funcName := runtime.FuncForPC(v.Pointer()).Name()
		span.AddField("handler.fnname", funcName)
		if funcName != "" {
			span.AddField("name", funcName)
		}
	case reflect.Struct:
		if structName := v.Type().Name(); structName != "" {
			span.AddField("name", structName)
		}
	}
	if name := route.GetName(); name != "" {
		span.AddField("handler.name", name)
		span.AddField("name", name)
	}
	if path, err := route.GetPathTemplate(); err == nil {
		span.AddField("handler.route", path)
	}
}
