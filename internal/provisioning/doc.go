// Package provisioning turns reserved hosts into hosts of a requested profile.
//
// # Workflow
//
// Provision reserves hosts of the requested profile through the reservation
// engine. When the profile has no free hosts and profile changes are
// allowed, it reserves hosts of any provisionable profile instead and
// rebuilds them. Rebuilds run concurrently through an async.Queue, one job
// per host.
//
// # Rebuild
//
// Rebuild tags a host as building, points it at the new profile, reboots it
// and optionally waits for the build to finish. WaitForHostBuilt polls the
// inventory once per PollInterval and returns ErrBuildTimeout when the
// budget runs out:
//
//	BuildingUnreachable -> BuildingReachableCheckPending -> Done
//
// Every host held by a failed provisioning run is released before
// Provision returns.
package provisioning
