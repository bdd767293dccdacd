// Package cvmfs defines the data model of a CVMFS server inventory: server
// identities, repository manifests and status records, server metadata, and
// GeoAPI queries, together with the parsers and checks that build them from
// the documents a server publishes over HTTP.
package cvmfs
