package corrgoji

import (
	"net/http"
	"reflect"
	"runtime"
	"strings"

	"github.com/rambhatt-msft/correlate-go/wrappers/common"
	"goji.io/v3/middleware"
	"goji.io/v3/pat"
)

// Middleware is specifically to use with goji's router.Use() function for
// inserting middleware
func Middleware(handler http.Handler) http.Handler {
	wrappedHandler := func(w http.ResponseWriter, r *http.Request) {
		ctx, span := common.StartSpanOrTraceFromHTTP(r)
		defer span.Send()
		// push the context with our new span and trace on to the request
		r = r.WithContext(ctx)

		// replace the writer with our wrapper to catch the status code
		wrappedWriter := common.NewResponseWriter(w)

		// get bits about the handler goji matched. The request is still
		// served through the chain so later middleware keeps running.
		matched := middleware.Handler(ctx)
		if matched == nil {
			span.AddField("handler.name", "http.NotFound")
		} else {
			hType := reflect.TypeOf(matched)
			span.AddField("handler.type", hType.String())
			name := runtime.FuncForPC(reflect.ValueOf(matched).Pointer()).Name()
			span.AddField("handler.name", name)
			span.AddField("name", name)
		}
		// find any matched patterns
		pm := middleware.Pattern(ctx)
		if p, ok := pm.(*pat.Pattern); ok {
			span.AddField("goji.pat", p.String())
			span.AddField("goji.methods", p.HTTPMethods())
			span.AddField("goji.path_prefix", p.PathPrefix())
			// pat.Param panics when asked for a name the pattern does not
			// bind, so only pull the variable out of patterns that have one
			if prefix := p.PathPrefix() + ":"; strings.HasPrefix(p.String(), prefix) {
				patvar := strings.TrimPrefix(p.String(), prefix)
				span.AddField("goji.pat."+patvar, pat.Param(r, patvar))
			}
		}
		handler.ServeHTTP(wrappedWriter, r)
		if wrappedWriter.Status == 0 {
			wrappedWriter.Status = 200
		}
		span.AddField("response.status_code", wrappedWriter.Status)
	}
	return http.HandlerFunc(wrappedHandler)
}
