// Package supervisor owns the running/stopped lifecycle of the external
// server process. Its state machine guarantees stop-before-start ordering
// on restart and that no two instances are ever concurrently starting or
// running for the same logical server.
package supervisor
