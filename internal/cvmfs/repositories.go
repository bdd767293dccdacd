package cvmfs

import (
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// RepositoryDescriptor is one entry of a server's self-description.
type RepositoryDescriptor struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// RepositoriesJSON is the self-description a server publishes at
// cvmfs/info/v1/repositories.json.
type RepositoriesJSON struct {
	Schema          *int                   `json:"schema"`
	LastGeoDBUpdate LooseTimestamp         `json:"last_geodb_update"`
	CVMFSVersion    *string                `json:"cvmfs_version"`
	OSID            *string                `json:"os_id"`
	OSVersionID     *string                `json:"os_version_id"`
	OSPrettyName    *string                `json:"os_pretty_name"`
	Repositories    []RepositoryDescriptor `json:"repositories"`
	Replicas        []RepositoryDescriptor `json:"replicas"`
}

// ParseRepositoriesJSON decodes a self-description. The schema number is mandatory.
func ParseRepositoriesJSON(data []byte) (RepositoriesJSON, error) {
	var doc RepositoriesJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return RepositoriesJSON{}, fmt.Errorf("%w: repositories json: %v", ErrParse, err)
	}
	if doc.Schema == nil {
		return RepositoriesJSON{}, fmt.Errorf("%w: repositories json: missing schema", ErrParse)
	}
	return doc, nil
}

// RepositoriesAndReplicas lists hosted repositories followed by replicas.
func (r RepositoriesJSON) RepositoriesAndReplicas() []RepositoryDescriptor {
	out := make([]RepositoryDescriptor, 0, len(r.Repositories)+len(r.Replicas))
	out = append(out, r.Repositories...)
	return append(out, r.Replicas...)
}

// RepoMetadata is the part of ServerMetadata owned by the self-description.
type RepoMetadata struct {
	SchemaVersion   *int
	CVMFSVersion    *semver.Version
	LastGeoDBUpdate LooseTimestamp
	OSVersionID     *string
	OSPrettyName    *string
	OSID            *string
}

// Metadata extracts the self-description's metadata fields. A software
// version that is not semver-like fails with ErrConversion.
func (r RepositoriesJSON) Metadata() (RepoMetadata, error) {
	meta := RepoMetadata{
		SchemaVersion:   r.Schema,
		LastGeoDBUpdate: r.LastGeoDBUpdate,
		OSVersionID:     r.OSVersionID,
		OSPrettyName:    r.OSPrettyName,
		OSID:            r.OSID,
	}
	if r.CVMFSVersion != nil {
		v, err := semver.NewVersion(*r.CVMFSVersion)
		if err != nil {
			return RepoMetadata{}, fmt.Errorf("%w: cvmfs_version %q: %v", ErrConversion, *r.CVMFSVersion, err)
		}
		meta.CVMFSVersion = v
	}
	return meta, nil
}
