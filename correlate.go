package correlate

import (
	"context"
	"fmt"
	"os"

	libhoney "github.com/honeycombio/libhoney-go"
	"github.com/honeycombio/libhoney-go/transmission"
	"github.com/rambhatt-msft/correlate-go/client"
	"github.com/rambhatt-msft/correlate-go/trace"
)

const (
	defaultWriteKey   = "writekey-placeholder"
	defaultDataset    = "correlate-go"
	defaultSampleRate = 1
)

// Config is the place to configure where events go, how they are
// credentialed, and the hooks that run around each send.
type Config struct {
	// WriteKey is the authentication token for the event sink. default:
	// writekey-placeholder
	WriteKey string
	// Dataset is the name of the dataset to which events will be sent.
	// default: correlate-go
	Dataset string
	// ServiceName identifies your application. While optional, setting this
	// field is extremely valuable when you instrument multiple services. If
	// set it will be added to all events as `service_name`
	ServiceName string
	// SampleRate is a positive integer indicating the rate at which to sample
	// events. default: 1
	SampleRate uint
	// APIHost is the hostname of the server events are sent to. When unset,
	// the transmission library's default host is used.
	APIHost string
	// STDOUT when set to true will print events to STDOUT *instead* of
	// sending them; useful for development. default: false
	STDOUT bool
	// Mute when set to true will disable sending entirely; useful for tests
	// and CI. default: false
	Mute bool
	// Debug will emit verbose logging to STDOUT when true. If you're having
	// trouble getting events out, set this to true in a dev environment.
	Debug bool

	// SamplerHook is called with the fields of each span before it is sent.
	// It returns whether to keep the span and the sample rate to claim for
	// it. When unset, every span is kept.
	SamplerHook func(map[string]interface{}) (bool, int)
	// PresendHook is called with the fields of each span just before send.
	// The function registered here may mutate the map to add, change, or
	// drop fields.
	PresendHook func(map[string]interface{})

	// Client, when set, is used to send events instead of a client built
	// from the fields above. Useful mostly for testing with a mock
	// transmission.
	Client *libhoney.Client
}

// Init sets up the library to send events. Call it before any traces are
// started; spans created earlier go nowhere but do not break the app.
func Init(config Config) {
	if config.WriteKey == "" {
		config.WriteKey = defaultWriteKey
	}
	if config.Dataset == "" {
		config.Dataset = defaultDataset
	}
	if config.SampleRate == 0 {
		config.SampleRate = defaultSampleRate
	}
	if config.Client == nil {
		var transmissionImpl transmission.Sender
		if config.STDOUT {
			transmissionImpl = &transmission.WriterSender{}
		}
		if config.Mute {
			transmissionImpl = &transmission.DiscardSender{}
		}
		clientConfig := libhoney.ClientConfig{
			APIKey:       config.WriteKey,
			Dataset:      config.Dataset,
			SampleRate:   config.SampleRate,
			Transmission: transmissionImpl,
		}
		if config.APIHost != "" {
			clientConfig.APIHost = config.APIHost
		}
		c, err := libhoney.NewClient(clientConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "correlate: unable to set up event client: %v\n", err)
			return
		}
		config.Client = c
	}
	client.Set(config.Client)

	// set the version in both the useragent and in all events
	libhoney.UserAgentAddition = fmt.Sprintf("correlate/%s", version)
	client.AddField("meta.correlate_version", version)

	if config.ServiceName != "" {
		client.AddField("service_name", config.ServiceName)
	}
	if hostname, err := os.Hostname(); err == nil {
		client.AddField("meta.local_hostname", hostname)
	}

	if config.SamplerHook != nil {
		trace.GlobalConfig.SamplerHook = config.SamplerHook
	}
	if config.PresendHook != nil {
		trace.GlobalConfig.PresendHook = config.PresendHook
	}

	if config.Debug {
		go readResponses(client.TxResponses())
	}
}

// Flush sends any pending events immediately. This is optional; events are
// flushed on a timer otherwise. It is useful to flush before a process is
// about to be frozen or torn down. Pass the context from the active request,
// if any, so its trace gets sent along too.
func Flush(ctx context.Context) {
	if tr := trace.GetTraceFromContext(ctx); tr != nil {
		tr.Send()
	}
	client.Flush()
}

// Close shuts down the library. Closing flushes any pending events and
// blocks until they have been sent. It is optional to call Close, and
// prohibited to try and send an event after it.
func Close() {
	client.Close()
}

// AddField allows you to add a single field to the span active in the given
// context, anywhere downstream of an instrumented request. After adding the
// appropriate middleware or wrapping a Handler, feel free to call AddField
// freely within your code. Pass it the context from the request
// (`r.Context()`) and the key and value you wish to add. Fields are
// implicitly prefixed with `app.`.
func AddField(ctx context.Context, key string, val interface{}) {
	span := trace.GetSpanFromContext(ctx)
	if span == nil {
		return
	}
	namespacedKey := fmt.Sprintf("app.%s", key)
	span.AddField(namespacedKey, val)
}

// AddFieldToTrace adds the field to every span of the currently active
// trace that is sent from this process, including spans that have already
// finished. This is good for context that is scoped to the request rather
// than to one unit of work, eg user IDs or feature flags. Fields are
// implicitly prefixed with `app.`.
func AddFieldToTrace(ctx context.Context, key string, val interface{}) {
	tr := trace.GetTraceFromContext(ctx)
	if tr == nil {
		return
	}
	namespacedKey := fmt.Sprintf("app.%s", key)
	tr.AddField(namespacedKey, val)
}

// StartSpan lets you start a new span as a child of an already instrumented
// handler. If there isn't an existing wrapped handler in the context when
// this is called, it will start a new trace. Spans automatically get a
// `duration_ms` field when they are ended; end them with the returned
// span's Send. The returned context carries the new span, so pass it down
// to anything that should nest beneath it.
func StartSpan(ctx context.Context, name string) (context.Context, *trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	span := trace.GetSpanFromContext(ctx)
	var newSpan *trace.Span
	if span != nil {
		ctx, newSpan = span.CreateChild(ctx)
	} else {
		var tr *trace.Trace
		ctx, tr = trace.NewTrace(ctx, "")
		newSpan = tr.GetRootSpan()
	}
	newSpan.AddField("name", name)
	return ctx, newSpan
}

// readResponses pulls from the response queue and spits them to STDOUT for
// debugging
func readResponses(responses chan transmission.Response) {
	for r := range responses {
		var metadata string
		if r.Metadata != nil {
			metadata = fmt.Sprintf("%s", r.Metadata)
		}
		if r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300 {
			message := "Successfully sent event"
			if metadata != "" {
				message += fmt.Sprintf(": %s", metadata)
			}
			fmt.Printf("%s\n", message)
		} else {
			fmt.Printf("Error sending event! %s had code %d, err %v and response body %s \n",
				metadata, r.StatusCode, r.Err, r.Body)
		}
	}
}
