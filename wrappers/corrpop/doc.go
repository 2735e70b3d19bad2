// Package corrpop wraps the gobuffalo/pop ORM.
//
// corrpop implements the store interface pop talks to its database through.
// Set it as the Store on a pop connection and every query pop issues emits an
// event. One caveat: statements issued inside a pop transaction run on the
// raw sqlx transaction, so you'll see events for the begin and the commit or
// rollback but not for the statements in between.
package corrpop
