package common

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	libhoney "github.com/honeycombio/libhoney-go"
	"github.com/honeycombio/libhoney-go/transmission"
	"github.com/rambhatt-msft/correlate-go/client"
	"github.com/rambhatt-msft/correlate-go/trace"
	"github.com/stretchr/testify/assert"
)

func setupLibhoney(t *testing.T) *transmission.MockSender {
	mo := &transmission.MockSender{}
	c, err := libhoney.NewClient(libhoney.ClientConfig{
		APIKey:       "placeholder",
		Dataset:      "placeholder",
		APIHost:      "placeholder",
		Transmission: mo,
	})
	assert.NoError(t, err)
	client.Set(c)
	return mo
}

func TestBuildDBEvent(t *testing.T) {
	mo := setupLibhoney(t)
	bld := client.NewBuilder()

	ev, sender := BuildDBEvent(bld, sql.DBStats{}, "select 1")
	assert.NotNil(t, ev)
	sender(nil)

	evs := mo.Events()
	assert.Equal(t, 1, len(evs), "finishing the call should send the event")
	fields := evs[0].Data
	assert.Equal(t, "select 1", fields["db.query"])
	assert.Equal(t, "TestBuildDBEvent", fields["db.call"], "the db call gets named after the calling function")
	assert.NotNil(t, fields["duration_ms"], "the call should be timed")
	assert.Nil(t, fields["db.error"], "no error field on a clean call")
}

func TestBuildDBEventWithError(t *testing.T) {
	mo := setupLibhoney(t)
	bld := client.NewBuilder()

	_, sender := BuildDBEvent(bld, sql.DBStats{}, "select 1")
	sender(errors.New("too many connections"))

	evs := mo.Events()
	assert.Equal(t, 1, len(evs))
	assert.NotNil(t, evs[0].Data["db.error"], "a failed call should carry its error")
}

func TestBuildDBSpan(t *testing.T) {
	mo := setupLibhoney(t)
	bld := client.NewBuilder()

	ctx, tr := trace.NewTrace(context.Background(), "")
	ctx, span, sender := BuildDBSpan(ctx, bld, sql.DBStats{}, "select * from users where id = ?", 1)
	assert.Equal(t, tr.GetRootSpan(), span.GetParent(), "the db span should join the active trace")
	assert.Equal(t, span, trace.GetSpanFromContext(ctx), "the db span should ride the returned context")
	sender(nil)
	tr.Send()

	evs := mo.Events()
	assert.Equal(t, 2, len(evs), "should have sent the root span and the db span")
	var rootFields, dbFields map[string]interface{}
	for _, ev := range evs {
		if ev.Data["meta.span_type"] == "root" {
			rootFields = ev.Data
		} else {
			dbFields = ev.Data
		}
	}
	assert.Equal(t, "db", dbFields["meta.type"])
	assert.Equal(t, "select * from users where id = ?", dbFields["db.query"])
	assert.NotNil(t, dbFields["db.query_args"])
	assert.Equal(t, float64(1), rootFields["rollup.db.call_count"],
		"the trace root should roll up the db call count")
	assert.NotNil(t, rootFields["rollup.db.duration_ms"],
		"the trace root should roll up time spent in the db")
}

func TestBuildDBSpanCarriesBuilderFields(t *testing.T) {
	mo := setupLibhoney(t)
	bld := client.NewBuilder()
	bld.AddField("db.tx_id", "stable-tx-id")
	bld.AddField("db.query", "update flavors set stock = stock - 1")
	bld.AddField("meta.type", "sql")

	ctx, tr := trace.NewTrace(context.Background(), "")
	_, _, sender := BuildDBSpan(ctx, bld, sql.DBStats{}, "")
	sender(nil)
	tr.Send()

	evs := mo.Events()
	assert.Equal(t, 2, len(evs))
	var dbFields map[string]interface{}
	for _, ev := range evs {
		if ev.Data["meta.span_type"] != "root" {
			dbFields = ev.Data
		}
	}
	assert.Equal(t, "stable-tx-id", dbFields["db.tx_id"],
		"identity staged on the builder should reach spans in the trace")
	assert.Equal(t, "update flavors set stock = stock - 1", dbFields["db.query"],
		"a query prepared onto the builder should reach spans even when the call passes none")
	assert.Equal(t, "db", dbFields["meta.type"],
		"spans in a trace always type as db no matter what the builder carries")
}

func TestBuildDBSpanWithoutTrace(t *testing.T) {
	mo := setupLibhoney(t)
	bld := client.NewBuilder()

	_, span, sender := BuildDBSpan(context.Background(), bld, sql.DBStats{}, "select 1")
	assert.NotNil(t, span, "a call outside any trace still gets a span")
	sender(nil)

	evs := mo.Events()
	assert.Equal(t, 1, len(evs), "a call outside any trace becomes its own single span trace")
	assert.Equal(t, "root", evs[0].Data["meta.span_type"])
}
