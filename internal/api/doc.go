// Package api defines wire-format types and converters for the IPC and HTTP
// API layer, plus the Service both transports delegate to.
//
// DTOs use camelCase JSON tags. Timestamps are RFC3339 in UTC with
// milliseconds. Stage names are exposed verbatim alongside a human label.
//
// Service translates requests into engine calls and engine results into
// DTOs. Errors pass through unchanged so callers can map them with
// services.HTTPStatus or services.Kind.
package api
