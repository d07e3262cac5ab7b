// Package linkpm keeps the USB hub between the host and a cellular modem
// powered only while the link needs it. It drives the hub through
// off, resuming, preactive and active, coordinates the sideband wakeup lines
// with the modem and forces the hub off before the system suspends.
//
// Every state change happens on a single work queue goroutine, callers
// interact through queued events and blocking calls like Activate.
package linkpm
