package corrsqlx_test

import (
	"context"
	"fmt"
	"log"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/go-sql-driver/mysql"
	libhoney "github.com/honeycombio/libhoney-go"
	"github.com/honeycombio/libhoney-go/transmission"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	correlate "github.com/rambhatt-msft/correlate-go"
	"github.com/rambhatt-msft/correlate-go/wrappers/corrsqlx"
)

func Example() {
	// Initialize correlate. The only required field is WriteKey.
	correlate.Init(correlate.Config{
		WriteKey: "abcabc123123",
		Dataset:  "sqlx",
		// for demonstration, send the event to STDOUT instead of the API.
		// Remove the STDOUT setting when filling in a real write key.
		// NOTE: This should *only* be set to true in development environments.
		// Setting to true in Production environments can cause problems.
		STDOUT: true,
	})
	// and make sure we close to force flushing all pending events before shutdown
	defer correlate.Close()

	// open a regular sqlx connection
	odb, err := sqlx.Open("mysql", "root:@tcp(127.0.0.1)/donut")
	if err != nil {
		fmt.Printf("connection err: %s\n", err)
		return
	}

	// replace it with a wrapped corrsqlx.DB
	db := corrsqlx.WrapDB(odb)
	// and start up a trace for these statements to join
	ctx, span := correlate.StartSpan(context.Background(), "start")
	defer span.Send()

	db.MustExecContext(ctx, "insert into flavors (flavor) values ('rose')")
	fv := "rose"
	rows, err := db.QueryxContext(ctx, "SELECT id FROM flavors WHERE flavor=?", fv)
	if err != nil {
		log.Fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%d is %s\n", id, fv)
	}
	if err := rows.Err(); err != nil {
		log.Fatal(err)
	}
}

func setupCorrelate(t *testing.T) *transmission.MockSender {
	mo := &transmission.MockSender{}
	client, err := libhoney.NewClient(libhoney.ClientConfig{
		APIKey:       "placeholder",
		Dataset:      "placeholder",
		APIHost:      "placeholder",
		Transmission: mo})
	assert.Equal(t, nil, err)
	correlate.Init(correlate.Config{Client: client})
	return mo
}

func TestDBBindNamed(t *testing.T) {
	setupCorrelate(t)

	// sqlx.Open doesn't dial, so no server needs to be listening. BindNamed
	// only needs the driver name to pick the bindvar style.
	odb, err := sqlx.Open("mysql", "root:@tcp(127.0.0.1)/donut")
	if err != nil {
		t.Fatalf("opening a lazy connection should not fail: %s", err)
	}

	db := corrsqlx.WrapDB(odb)

	originalQ := `select :named`
	originalArgs := struct {
		Named string `db:"named"`
	}{"namedValue"}

	q, args, err := db.BindNamed(originalQ, originalArgs)
	assert.Nil(t, err)

	expectedQ, expectedArgs, err := db.GetWrappedDB().BindNamed(originalQ, originalArgs)
	assert.Nil(t, err)

	assert.Equal(t, expectedQ, q)
	assert.Equal(t, expectedArgs, args)
}

func TestSQLXMiddleware(t *testing.T) {
	mo := setupCorrelate(t)

	// Open a mock sql connection.
	odb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer odb.Close()
	sqlxodb := sqlx.NewDb(odb, "sqlmock")

	mock.ExpectExec("insert into flavors.+").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM flavors.+").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	// replace it with a wrapped corrsqlx.DB
	db := corrsqlx.WrapDB(sqlxodb)
	// and start up a trace to capture all the calls
	ctx, span := correlate.StartSpan(context.Background(), "start")

	// from here on, all SQL calls will emit events.

	_, err = db.ExecContext(ctx, "insert into flavors (flavor) values ('rose')")
	assert.Nil(t, err)
	fv := "rose"
	rows, err := db.QueryContext(ctx, "SELECT id FROM flavors WHERE flavor=?", fv)
	if err != nil {
		log.Fatal(err)
	}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			log.Fatal(err)
		}
	}
	assert.Nil(t, rows.Err())
	rows.Close()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}

	span.Send()

	evs := mo.Events()
	assert.Equal(t, 3, len(evs), "the root span and both db spans should arrive")
	var rootFields map[string]interface{}
	var dbCalls []string
	for _, ev := range evs {
		if ev.Data["meta.span_type"] == "root" {
			rootFields = ev.Data
			continue
		}
		assert.Equal(t, "db", ev.Data["meta.type"])
		assert.NotNil(t, ev.Data["db.query"])
		dbCalls = append(dbCalls, ev.Data["db.call"].(string))
	}
	assert.ElementsMatch(t, []string{"ExecContext", "QueryContext"}, dbCalls)
	assert.Equal(t, float64(2), rootFields["rollup.db.call_count"],
		"the trace root should count both db calls")
	assert.NotNil(t, rootFields["rollup.db.duration_ms"])
}

func TestGetRecordsDestType(t *testing.T) {
	mo := setupCorrelate(t)

	odb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer odb.Close()
	sqlxodb := sqlx.NewDb(odb, "sqlmock")

	mock.ExpectQuery("SELECT id FROM flavors.+").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))

	db := corrsqlx.WrapDB(sqlxodb)

	var id int
	err = db.Get(&id, "SELECT id FROM flavors LIMIT 1")
	assert.Nil(t, err)
	assert.Equal(t, 4, id)

	evs := mo.Events()
	assert.Equal(t, 1, len(evs), "a call with no context sends a plain event")
	fields := evs[0].Data
	assert.Equal(t, "sqlx", fields["meta.type"])
	assert.Equal(t, "*int", fields["db.dest_type"])
	assert.Equal(t, "Get", fields["db.call"])
}

func TestBeginxTagsTransaction(t *testing.T) {
	mo := setupCorrelate(t)

	odb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer odb.Close()
	sqlxodb := sqlx.NewDb(odb, "sqlmock")

	mock.ExpectBegin()
	mock.ExpectExec("update flavors.+").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	db := corrsqlx.WrapDB(sqlxodb)
	tx, err := db.Beginx()
	assert.Nil(t, err)
	_, err = tx.Exec("update flavors set stock = stock - 1")
	assert.Nil(t, err)
	assert.Nil(t, tx.Commit())

	evs := mo.Events()
	assert.Equal(t, 3, len(evs), "begin, exec and commit should each send an event")
	txid := evs[0].Data["db.tx_id"]
	assert.NotNil(t, txid, "the begin event should name the new transaction")
	assert.Equal(t, txid, evs[1].Data["db.tx_id"], "statements in the transaction should carry its id")
	assert.Equal(t, txid, evs[2].Data["db.tx_id"], "the commit should carry the transaction id")
}
