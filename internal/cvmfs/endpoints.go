package cvmfs

import (
	"fmt"
	"strings"
)

// DefaultGeoapiServers returns the well-known stratum-1 hosts used as GeoAPI
// candidates when a caller asks for the defaults.
func DefaultGeoapiServers() []Hostname {
	return []Hostname{
		"cvmfs-s1fnal.opensciencegrid.org",
		"cvmfs-stratum-one.cern.ch",
		"cvmfs-stratum-one.ihep.ac.cn",
	}
}

// RepositoriesJSONURL is the self-description endpoint.
func RepositoriesJSONURL(host Hostname) string {
	return fmt.Sprintf("http://%s/cvmfs/info/v1/repositories.json", host)
}

// MetaJSONURL is the contact metadata endpoint.
func MetaJSONURL(host Hostname) string {
	return fmt.Sprintf("http://%s/cvmfs/info/v1/meta.json", host)
}

// ManifestURL is the repository manifest endpoint.
func ManifestURL(host Hostname, repository string) string {
	return fmt.Sprintf("http://%s/cvmfs/%s/.cvmfspublished", host, repository)
}

// StatusURL is the repository status endpoint.
func StatusURL(host Hostname, repository string) string {
	return fmt.Sprintf("http://%s/cvmfs/%s/.cvmfs_status.json", host, repository)
}

// GeoapiURL is the proximity-ranking endpoint for the given probe repository.
func GeoapiURL(host Hostname, repository, token string, candidates []Hostname) string {
	return fmt.Sprintf("http://%s/cvmfs/%s/api/v1.0/geo/%s/%s",
		host, repository, token, strings.Join(HostnameStrings(candidates), ","))
}
