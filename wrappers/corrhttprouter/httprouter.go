package corrhttprouter

import (
	"net/http"
	"reflect"
	"runtime"

	"github.com/julienschmidt/httprouter"
	"github.com/rambhatt-msft/correlate-go/wrappers/common"
)

// Middleware wraps an httprouter Handle, correlating the request and
// capturing route parameters.
func Middleware(handle httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx, span := common.StartSpanOrTraceFromHTTP(r)
		defer span.Send()
		// push the context with our trace and span on to the request
		r = r.WithContext(ctx)

		// pull out any variables in the URL, add the thing we're matching, etc.
		for _, param := range ps {
			span.AddField("handler.vars."+param.Key, param.Value)
		}
		name := runtime.FuncForPC(reflect.ValueOf(handle).Pointer()).Name()
		span.AddField("handler.name", name)
		if name != "" {
			span.AddField("name", name)
		}

		// replace the writer with our wrapper to catch the status code
		wrappedWriter := common.NewResponseWriter(w)
		handle(wrappedWriter, r, ps)

		if wrappedWriter.Status == 0 {
			wrappedWriter.Status = 200
		}
		span.AddField("response.status_code", wrappedWriter.Status)
	}
}
