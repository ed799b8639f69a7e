/*
Package wire implements the binary RPC protocol brokers speak to each
other: length-prefixed frames carrying an api key, a correlation id, and a
request or response body of big-endian primitives and length-prefixed
strings.

Two services share the surface. The master service answers
GetNextInstance and RegisterMOMInstance; the message service answers
SendMessage, ReceiveMessage and CreateTopic. Every broker serves the
message service; only the current master serves the master service, but a
single Server carries both so promotion needs no listener swap.

Clients open one connection per call with explicit dial and call
deadlines and never retry; retry-by-failover belongs to the dispatcher.
*/
package wire
