package common

import (
	"context"
	"database/sql"
	"runtime"
	"strings"

	libhoney "github.com/honeycombio/libhoney-go"
	"github.com/rambhatt-msft/correlate-go/timer"
	"github.com/rambhatt-msft/correlate-go/trace"
)

// BuildDBEvent tries to bring together most of the things that need to
// happen for an event to wrap a DB call in both the sql and sqlx packages.
// It returns an event and a function which, when called, dispatches the
// event that it created. This lets it finish a timer around the call
// automatically. This function is only used when no context is available to
// the caller - if context is available, use BuildDBSpan() instead to get
// the call into the active trace.
func BuildDBEvent(bld *libhoney.Builder, stats sql.DBStats, query string, args ...interface{}) (*libhoney.Event, func(error)) {
	timer := timer.Start()
	ev := bld.NewEvent()
	fn := func(err error) {
		duration := timer.Finish()
		ev.AddField("duration_ms", duration)
		if err != nil {
			ev.AddField("db.error", err)
		}
		ev.Metadata, _ = ev.Fields()["name"]
		ev.Send()
	}

	// get the name of the function that called this one. Strip the package and type
	pc, _, _, _ := runtime.Caller(1)
	callName := runtime.FuncForPC(pc).Name()
	callNameChunks := strings.Split(callName, ".")
	ev.AddField("db.call", callNameChunks[len(callNameChunks)-1])
	ev.AddField("name", callNameChunks[len(callNameChunks)-1])

	if query != "" {
		ev.AddField("db.query", query)
	}
	if args != nil {
		ev.AddField("db.query_args", args)
	}
	addDBStatsToEvent(ev, stats)
	return ev, fn
}

// BuildDBSpan does the same things as BuildDBEvent except that it has
// access to a trace from the context and takes advantage of that to add the
// DB calls into the trace. A call made with no active trace gets a single
// span trace of its own.
func BuildDBSpan(ctx context.Context, bld *libhoney.Builder, stats sql.DBStats, query string, args ...interface{}) (context.Context, *trace.Span, func(error)) {
	timer := timer.Start()
	parent := trace.GetSpanFromContext(ctx)
	var span *trace.Span
	if parent == nil {
		var tr *trace.Trace
		ctx, tr = trace.NewTrace(ctx, "")
		span = tr.GetRootSpan()
	} else {
		ctx, span = parent.CreateChild(ctx)
	}
	fn := func(err error) {
		duration := timer.Finish()
		if err != nil {
			span.AddField("db.error", err)
		}
		span.AddRollupField("db.duration_ms", duration)
		span.AddRollupField("db.call_count", 1)
		span.Finish()
	}

	// copy identity fields assembled on the builder (tx ids, statement ids,
	// prepared queries) onto the span. The copy runs before the meta.type set
	// below so db spans always type as "db".
	for k, v := range bld.Fields() {
		span.AddField(k, v)
	}
	span.AddField("meta.type", "db")
	// get the name of the function that called this one. Strip the package and type
	pc, _, _, _ := runtime.Caller(1)
	callName := runtime.FuncForPC(pc).Name()
	callNameChunks := strings.Split(callName, ".")
	span.AddField("db.call", callNameChunks[len(callNameChunks)-1])
	span.AddField("name", callNameChunks[len(callNameChunks)-1])

	if query != "" {
		span.AddField("db.query", query)
	}
	if args != nil {
		span.AddField("db.query_args", args)
	}
	addDBStatsToSpan(span, stats)
	return ctx, span, fn
}

func addDBStatsToEvent(ev *libhoney.Event, stats sql.DBStats) {
	ev.AddField("db.open_conns", stats.OpenConnections)
}

func addDBStatsToSpan(span *trace.Span, stats sql.DBStats) {
	span.AddField("db.open_conns", stats.OpenConnections)
}
