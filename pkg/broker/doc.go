/*
Package broker runs one instance of the middleware.

Every broker serves SendMessage, ReceiveMessage and CreateTopic against
the shared topic registry, registers itself with the current master at
startup, synchronizes topic metadata from the local state file, and runs
the master watchdog. When the watchdog confirms the master is gone and
this instance wins the election, the broker starts the master role
in-process; the single binary carries both roles.
*/
package broker
