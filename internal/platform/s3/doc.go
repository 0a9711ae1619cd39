// Package s3 uploads provisioning artifacts to S3-compatible object storage.
//
// Artifact locations are written as "s3://bucket/key" and parsed with
// ParseURI. Credentials and the endpoint come from the storage section of
// the fleetctl configuration.
package s3
