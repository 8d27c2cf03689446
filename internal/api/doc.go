// Package api serves the pantry over HTTP: inventory CRUD with multipart
// photo upload, a WebSocket stream of inventory snapshots, recipe
// generation, locally stored photos, and Prometheus metrics.
//
// # Endpoints
//
//	GET    /api/health
//	GET    /api/inventory?search=<substr>
//	POST   /api/inventory            multipart: name, price, quantity, image_url, image
//	PUT    /api/inventory/{id}       multipart, same fields
//	DELETE /api/inventory/{id}
//	GET    /api/inventory/stream     WebSocket, one JSON message per snapshot
//	POST   /api/recipe
//	GET    /assets/...               fs asset backend only
//	GET    /metrics
//
// A draft with a blank name, price, or quantity is answered with 204 and
// changes nothing. Errors are JSON bodies of the form {"error", "kind"} with
// the status derived from the services error marker.
//
// Only one recipe generation runs at a time; a second request while one is
// in flight gets 409.
//
// # Authentication
//
// When paths.api_token is set every /api route except /api/health requires
// "Authorization: Bearer <token>". Browsers cannot set headers on WebSocket
// upgrades, so the stream also accepts ?token=<token>.
package api
