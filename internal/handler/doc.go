// Package handler implements the HTTP command channel.
//
// Routes (gin):
//
//	POST /api/ping                       probe one address
//	GET  /api/browse                     sweep progress and detected hosts
//	POST /api/browse                     start a manual sweep (202, 409 busy)
//	POST /api/browse/stop                stop the running sweep
//	PUT  /api/browse/hosts/:ip/ignore    set the ignore flag of a detected host
//	GET  /api/interfaces                 host network interfaces
//	GET  /api/tasks                      monitored endpoints
//	POST /api/devices/stage              stage detected hosts for saving
//	POST /api/devices/save               append staged hosts to the config
//	GET  /api/notifications/schema       panel for the pending notification
//	GET  /events                         Server-Sent Events
//
// Error responses are JSON: {error, details}.
package handler
