// Package integration provides end-to-end tests for the asteroid radar server.
// They run the complete application against a fake NeoWs feed and exercise the
// refresh loop, the record store and the HTTP API together.
package integration
