/*
Package memory is collstore's in-process reference backend: maps plus
inverted indexes, guarded by one mutex per collection so concurrent callers
see serialisable behaviour. A single-goroutine event-loop design would get
this for free from scheduling alone; Go schedules real parallel callers, so
the mutex makes the same guarantee explicit (see DESIGN.md Open Question (b)).

Connection URLs are memory://<instance>[?simulatedLatency=<ms>]. Two
connections to the same instance name share the same underlying collections,
which is how collstore's test suite and multi-client examples simulate an
in-process shared server.
*/
package memory
