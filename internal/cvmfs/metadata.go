package cvmfs

import (
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// MetaJSON is the human-authored contact file at cvmfs/info/v1/meta.json.
type MetaJSON struct {
	Administrator string          `json:"administrator"`
	Email         string          `json:"email"`
	Organisation  string          `json:"organisation"`
	Custom        json.RawMessage `json:"custom"`
}

// ParseMetaJSON decodes a contact file.
func ParseMetaJSON(data []byte) (MetaJSON, error) {
	var meta MetaJSON
	if err := json.Unmarshal(data, &meta); err != nil {
		return MetaJSON{}, fmt.Errorf("%w: meta json: %v", ErrParse, err)
	}
	return meta, nil
}

// ServerMetadata merges self-description fields with contact fields. The two
// groups are disjoint.
type ServerMetadata struct {
	SchemaVersion   *int            `json:"schema_version"`
	CVMFSVersion    *semver.Version `json:"cvmfs_version"`
	LastGeoDBUpdate LooseTimestamp  `json:"last_geodb_update"`
	OSVersionID     *string         `json:"os_version_id"`
	OSPrettyName    *string         `json:"os_pretty_name"`
	OSID            *string         `json:"os_id"`
	Administrator   *string         `json:"administrator"`
	Email           *string         `json:"email"`
	Organisation    *string         `json:"organisation"`
	Custom          json.RawMessage `json:"custom"`
}

// MergeMetadata starts from the contact fields (all empty when contact is
// nil) and overlays the self-description fields.
func MergeMetadata(repo RepoMetadata, contact *MetaJSON) ServerMetadata {
	var out ServerMetadata
	if contact != nil {
		c := *contact
		out.Administrator = &c.Administrator
		out.Email = &c.Email
		out.Organisation = &c.Organisation
		if len(c.Custom) > 0 {
			out.Custom = c.Custom
		}
	}
	out.SchemaVersion = repo.SchemaVersion
	out.CVMFSVersion = repo.CVMFSVersion
	out.LastGeoDBUpdate = repo.LastGeoDBUpdate
	out.OSVersionID = repo.OSVersionID
	out.OSPrettyName = repo.OSPrettyName
	out.OSID = repo.OSID
	return out
}
