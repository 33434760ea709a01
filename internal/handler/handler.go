// Package handler is the HTTP layer between the router and the services.
//
// Handlers bind and validate requests with the validation package, call a
// service, and write the result as JSON or as a Server-Sent Events stream.
package handler
