// Package http exposes the agenda over a JSON HTTP API.
//
// The router serves the following endpoints:
//   - GET /records, POST /records: list records (filters: owner, area,
//     context, type, status, from, to) and create one. Creation responds with
//     {"record","conflicts"}; a record whose conflicts block it is stored
//     under review.
//   - GET /records/{id}, PATCH /records/{id}, DELETE /records/{id}: fetch,
//     partially update and remove a record. PATCH responds like POST.
//   - POST /records/check: dry-run conflict detection for a record payload.
//   - POST /records/{id}/resolutions: apply one of the suggested remedies.
//     Body: {"existingId","action"}.
//   - GET /free-time?start=&end=&min_gap=: generated free blocks between two
//     RFC 3339 instants.
//   - GET /history, POST /history/undo, POST /history/redo: undo/redo state.
//   - GET /config, PUT /config: the area/context/type taxonomy.
//   - GET /healthz: liveness probe.
//
// Request and response DTOs live alongside their handlers.
package http
