// Package api is the concrete HTTP/query layer spec.md treats as an
// external collaborator: it turns bbox queries into group.Coordinator
// requests and exposes liveness, Prometheus metrics and a Swagger UI
// alongside them.
package api
