// Package inventory provides a typed client for the fleet Inventory Service.
//
// The Inventory Service is the single source of truth for hosts, hostgroups
// (profiles) and reservation state. A host is reserved when its RESERVED
// parameter carries a non-empty reason string; exclusivity is enforced by
// the service itself.
//
// The API interface is implemented by the HTTP Client, by MockClient for
// unit tests and by Fake, an in-memory inventory for scenario tests.
package inventory
