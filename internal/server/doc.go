// Package server runs the process's auxiliary HTTP listener, which serves
// Prometheus metrics and a liveness probe next to the command line swarm.
//
// Manager starts the listener in the background, reports asynchronous
// serve failures on Errors and drains connections on Shutdown.
package server
