// Package api handles incoming HTTP requests, request validation, and
// response formatting for the generation service. It adapts HTTP concerns
// to the task queue, the provider catalog, and the key authority, keeping
// wire formats and status mapping out of those packages.
package api
