package cvmfs

import (
	"encoding/json"
	"fmt"
)

// StatusRecord is the content of a repository's .cvmfs_status.json.
type StatusRecord struct {
	LastSnapshot LooseTimestamp `json:"last_snapshot"`
	LastGC       LooseTimestamp `json:"last_gc"`
}

// ParseStatusRecord decodes a status document. Absent timestamps are allowed.
func ParseStatusRecord(data []byte) (StatusRecord, error) {
	var rec StatusRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return StatusRecord{}, fmt.Errorf("%w: status json: %v", ErrParse, err)
	}
	return rec, nil
}
