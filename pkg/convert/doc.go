// Package convert turns store entities into the JSON envelope returned by
// every endpoint, and binds and validates request bodies.
package convert
