// Package reservation reserves an exact number of healthy hosts.
//
// Engine.Reserve runs rounds against the Inventory Service until enough
// hosts are held or the try budget runs out, optionally probing each host
// over SSH. Whatever happens, a caller never ends up holding a partial
// reservation: when the target is missed every host touched by the call is
// released again.
//
// Reservation state lives in the host's reason string, with status tags
// such as [QUEUED] or [UNAVAILABLE] embedded in it. reason.go is the only
// place that builds or inspects those strings.
package reservation
