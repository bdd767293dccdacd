package report

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/cvmfs-scraper/internal/cvmfs"
	"github.com/JakeFAU/cvmfs-scraper/internal/metrics"
)

// Server status values.
const (
	StatusPopulated = "populated"
	StatusFailed    = "failed"
)

// Report is the serializable result of one fleet scrape.
type Report struct {
	RunID       string         `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time      `json:"generated_at" yaml:"generated_at"`
	Attempted   int            `json:"attempted" yaml:"attempted"`
	Succeeded   int            `json:"succeeded" yaml:"succeeded"`
	Failed      int            `json:"failed" yaml:"failed"`
	Servers     []ServerRecord `json:"servers" yaml:"servers"`
}

// ServerRecord is one server's outcome.
type ServerRecord struct {
	Hostname        string             `json:"hostname" yaml:"hostname"`
	Type            string             `json:"type" yaml:"type"`
	Backend         string             `json:"backend" yaml:"backend"`
	BackendDetected string             `json:"backend_detected,omitempty" yaml:"backend_detected,omitempty"`
	Status          string             `json:"status" yaml:"status"`
	Error           string             `json:"error,omitempty" yaml:"error,omitempty"`
	Repositories    []RepositoryRecord `json:"repositories,omitempty" yaml:"repositories,omitempty"`
	Metadata        *MetadataRecord    `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Geoapi          *GeoapiRecord      `json:"geoapi,omitempty" yaml:"geoapi,omitempty"`
}

// RepositoryRecord summarizes one repository's manifest and status.
type RepositoryRecord struct {
	Name               string     `json:"name" yaml:"name"`
	Revision           int32      `json:"revision" yaml:"revision"`
	PublishedAt        time.Time  `json:"published_at" yaml:"published_at"`
	RootCatalogHash    string     `json:"root_catalog_hash" yaml:"root_catalog_hash"`
	RootCatalogSize    int64      `json:"root_catalog_size" yaml:"root_catalog_size"`
	CatalogTTL         int32      `json:"catalog_ttl" yaml:"catalog_ttl"`
	GarbageCollectable bool       `json:"garbage_collectable" yaml:"garbage_collectable"`
	AlternativeName    bool       `json:"alternative_name" yaml:"alternative_name"`
	LastSnapshot       string     `json:"last_snapshot,omitempty" yaml:"last_snapshot,omitempty"`
	LastSnapshotAt     *time.Time `json:"last_snapshot_at,omitempty" yaml:"last_snapshot_at,omitempty"`
	LastGC             string     `json:"last_gc,omitempty" yaml:"last_gc,omitempty"`
	LastGCAt           *time.Time `json:"last_gc_at,omitempty" yaml:"last_gc_at,omitempty"`
}

// MetadataRecord is the merged server metadata.
type MetadataRecord struct {
	SchemaVersion   *int    `json:"schema_version,omitempty" yaml:"schema_version,omitempty"`
	CVMFSVersion    string  `json:"cvmfs_version,omitempty" yaml:"cvmfs_version,omitempty"`
	LastGeoDBUpdate string  `json:"last_geodb_update,omitempty" yaml:"last_geodb_update,omitempty"`
	OSID            *string `json:"os_id,omitempty" yaml:"os_id,omitempty"`
	OSVersionID     *string `json:"os_version_id,omitempty" yaml:"os_version_id,omitempty"`
	OSPrettyName    *string `json:"os_pretty_name,omitempty" yaml:"os_pretty_name,omitempty"`
	Administrator   *string `json:"administrator,omitempty" yaml:"administrator,omitempty"`
	Email           *string `json:"email,omitempty" yaml:"email,omitempty"`
	Organisation    *string `json:"organisation,omitempty" yaml:"organisation,omitempty"`
	Custom          any     `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// GeoapiRecord is the GeoAPI probe result and, when an expected order was
// supplied, the outcome of checking it.
type GeoapiRecord struct {
	Candidates      []string `json:"candidates" yaml:"candidates"`
	Response        []uint32 `json:"response" yaml:"response"`
	ResolvedOrder   []string `json:"resolved_order,omitempty" yaml:"resolved_order,omitempty"`
	MatchesExpected *bool    `json:"matches_expected,omitempty" yaml:"matches_expected,omitempty"`
	CheckError      string   `json:"check_error,omitempty" yaml:"check_error,omitempty"`
}

// Build assembles a report from fleet outcomes. When expectedOrder is
// non-empty every GeoAPI response is checked against it by hostname.
func Build(
	runID string,
	generatedAt time.Time,
	results []cvmfs.ScrapedServer,
	expectedOrder []cvmfs.Hostname,
	logger *zap.Logger,
) Report {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	r := Report{
		RunID:       runID,
		GeneratedAt: generatedAt.UTC(),
		Attempted:   len(results),
		Servers:     make([]ServerRecord, 0, len(results)),
	}
	for _, result := range results {
		rec := ServerRecord{
			Hostname: result.Server().Hostname.String(),
			Type:     string(result.Server().Type),
			Backend:  string(result.Server().Backend),
		}
		switch v := result.(type) {
		case *cvmfs.PopulatedServer:
			r.Succeeded++
			rec.Status = StatusPopulated
			rec.BackendDetected = string(v.BackendDetected)
			rec.Repositories = repositoryRecords(v.Repositories)
			rec.Metadata = metadataRecord(v.Metadata)
			rec.Geoapi = geoapiRecord(v.Geoapi, expectedOrder, logger)
		case *cvmfs.FailedServer:
			r.Failed++
			rec.Status = StatusFailed
			if v.Err != nil {
				rec.Error = v.Err.Error()
			}
		}
		r.Servers = append(r.Servers, rec)
	}
	return r
}

func repositoryRecords(repos []cvmfs.PopulatedRepository) []RepositoryRecord {
	out := make([]RepositoryRecord, 0, len(repos))
	for _, repo := range repos {
		m := repo.Manifest
		out = append(out, RepositoryRecord{
			Name:               repo.Name,
			Revision:           repo.Revision(),
			PublishedAt:        time.Unix(m.Timestamp, 0).UTC(),
			RootCatalogHash:    m.RootCatalogHash.String(),
			RootCatalogSize:    m.RootCatalogSize,
			CatalogTTL:         m.CatalogTTL,
			GarbageCollectable: m.GarbageCollectable,
			AlternativeName:    m.AlternativeName,
			LastSnapshot:       repo.Status.LastSnapshot.Raw(),
			LastSnapshotAt:     instant(repo.Status.LastSnapshot),
			LastGC:             repo.Status.LastGC.Raw(),
			LastGCAt:           instant(repo.Status.LastGC),
		})
	}
	return out
}

// instant coerces an advisory timestamp, dropping values that do not parse.
func instant(ts cvmfs.LooseTimestamp) *time.Time {
	t, ok, err := ts.Time()
	if err != nil || !ok {
		return nil
	}
	return &t
}

func metadataRecord(m cvmfs.ServerMetadata) *MetadataRecord {
	rec := &MetadataRecord{
		SchemaVersion:   m.SchemaVersion,
		LastGeoDBUpdate: m.LastGeoDBUpdate.Raw(),
		OSID:            m.OSID,
		OSVersionID:     m.OSVersionID,
		OSPrettyName:    m.OSPrettyName,
		Administrator:   m.Administrator,
		Email:           m.Email,
		Organisation:    m.Organisation,
	}
	if m.CVMFSVersion != nil {
		rec.CVMFSVersion = m.CVMFSVersion.String()
	}
	if len(m.Custom) > 0 {
		var custom any
		if err := json.Unmarshal(m.Custom, &custom); err == nil {
			rec.Custom = custom
		}
	}
	return rec
}

func geoapiRecord(q cvmfs.GeoapiQuery, expected []cvmfs.Hostname, logger *zap.Logger) *GeoapiRecord {
	rec := &GeoapiRecord{
		Candidates: cvmfs.HostnameStrings(q.Candidates),
		Response:   q.Response,
	}
	if q.IsEmpty() {
		return rec
	}
	if resolved, err := q.ResolveHostnames(); err == nil {
		rec.ResolvedOrder = cvmfs.HostnameStrings(resolved)
	}
	if len(expected) == 0 {
		return rec
	}

	match, err := q.CheckOrderByHostname(expected, logger)
	switch {
	case err != nil:
		rec.CheckError = err.Error()
		metrics.ObserveGeoapiCheck("error")
	case match:
		rec.MatchesExpected = &match
		metrics.ObserveGeoapiCheck("match")
	default:
		rec.MatchesExpected = &match
		metrics.ObserveGeoapiCheck("mismatch")
		logger.Warn("geoapi order differs from expected",
			zap.String("hostname", q.Hostname.String()),
			zap.Strings("resolved", rec.ResolvedOrder),
			zap.Strings("expected", cvmfs.HostnameStrings(expected)))
	}
	return rec
}
