package correcho

import (
	"sync"

	echo "github.com/labstack/echo/v4"
	"github.com/rambhatt-msft/correlate-go/wrappers/common"
)

// EchoWrapper provides trace correlation for the Echo router via middleware.
type EchoWrapper struct {
	handlerNames map[string]string
	once         sync.Once
}

// New returns a new EchoWrapper struct
func New() *EchoWrapper {
	return &EchoWrapper{}
}

// Middleware returns an echo.MiddlewareFunc to be used with Echo.Use()
func (e *EchoWrapper) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			// continue the trace the request's correlation headers describe,
			// or start one
			ctx, span := common.StartSpanOrTraceFromHTTP(r)
			defer span.Send()
			// push the context with our trace and span on to the request
			c.SetRequest(r.WithContext(ctx))

			handlerName := e.handlerName(c)
			span.AddField("handler.name", handlerName)
			span.AddField("name", handlerName)

			// add route related fields
			span.AddField("route", c.Path())
			span.AddField("route.handler", handlerName)
			for _, name := range c.ParamNames() {
				span.AddField("route.params."+name, c.Param(name))
			}

			err := next(c)
			// echo handlers hand errors back rather than writing them, so the
			// error only reaches the response after this middleware returns
			if err != nil {
				span.AddField("error", err.Error())
			}

			span.AddField("response.status_code", c.Response().Status)
			span.AddField("response.size", c.Response().Size)

			return err
		}
	}
}

// handlerName resolves the name of the handler registered for this request's
// route. Echo hands out anonymous wrapper funcs from c.Handler(), so the
// registered names are collected from the router on the first request and
// looked up by method and path after that.
func (e *EchoWrapper) handlerName(c echo.Context) string {
	e.once.Do(func() {
		routes := c.Echo().Routes()
		e.handlerNames = make(map[string]string, len(routes))
		for _, r := range routes {
			e.handlerNames[r.Method+r.Path] = r.Name
		}
	})

	if name := e.handlerNames[c.Request().Method+c.Path()]; name != "" {
		return name
	}
	return "handler"
}
