package corrgoji

import (
	"net/http"
	"net/http/httptest"
	"testing"

	libhoney "github.com/honeycombio/libhoney-go"
	"github.com/honeycombio/libhoney-go/transmission"
	correlate "github.com/rambhatt-msft/correlate-go"
	"github.com/stretchr/testify/assert"
	goji "goji.io/v3"
	"goji.io/v3/pat"
)

func TestGojiMiddleware(t *testing.T) {
	// set up the event client to catch events instead of send them
	mo := &transmission.MockSender{}
	client, err := libhoney.NewClient(libhoney.ClientConfig{
		APIKey:       "placeholder",
		Dataset:      "placeholder",
		APIHost:      "placeholder",
		Transmission: mo})
	assert.Equal(t, nil, err)
	correlate.Init(correlate.Config{Client: client})

	// build the goji mux with Middleware
	mux := goji.NewMux()
	mux.Use(Middleware)
	mux.HandleFunc(pat.Get("/hello/:name"), func(_ http.ResponseWriter, _ *http.Request) {})
	mux.HandleFunc(pat.Get("/ping"), func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(204)
	})

	t.Run("pattern with a variable", func(t *testing.T) {
		r, _ := http.NewRequest("GET", "/hello/pooh", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)

		evs := mo.Events()
		assert.Equal(t, 1, len(evs), "one event is created with one request through the Middleware")
		fields := evs[0].Data
		assert.Equal(t, 200, fields["response.status_code"], "successfully served request should have status 200")
		assert.Equal(t, "/hello/:name", fields["goji.pat"], "matched pattern should be captured")
		assert.Equal(t, "pooh", fields["goji.pat.name"], "pattern variable should be captured")
		name, ok := fields["handler.name"]
		assert.True(t, ok, "handler.name field must exist on middleware generated event")
		assert.NotEqual(t, "", name)
	})

	t.Run("pattern without a variable", func(t *testing.T) {
		r, _ := http.NewRequest("GET", "/ping", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)

		evs := mo.Events()
		assert.Equal(t, 2, len(evs))
		fields := evs[1].Data
		assert.Equal(t, 204, fields["response.status_code"])
		assert.Equal(t, "/ping", fields["goji.pat"])
	})

	t.Run("no match serves 404", func(t *testing.T) {
		r, _ := http.NewRequest("GET", "/heffalump", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)

		evs := mo.Events()
		assert.Equal(t, 3, len(evs))
		fields := evs[2].Data
		assert.Equal(t, "http.NotFound", fields["handler.name"])
		assert.Equal(t, 404, fields["response.status_code"])
	})
}
