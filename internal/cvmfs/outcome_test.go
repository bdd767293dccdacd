package cvmfs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScrapedServer_Variants(t *testing.T) {
	t.Parallel()

	id := NewServer(ServerTypeReplica, BackendAutoDetect, "s1.example.org")
	populated := &PopulatedServer{
		Identity:        id,
		BackendDetected: BackendObjectStore,
		Repositories: []PopulatedRepository{
			{Name: "atlas.cern.ch", Manifest: Manifest{Name: "atlas.cern.ch", Revision: 12}},
		},
	}
	failed := &FailedServer{Identity: id, Err: ErrEmptyRepositoryList}

	require.True(t, IsPopulated(populated))
	require.False(t, IsPopulated(failed))
	require.Equal(t, id, populated.Server())
	require.Equal(t, id, failed.Server())

	p, err := AsPopulated(populated)
	require.NoError(t, err)
	require.True(t, p.HasRepository("atlas.cern.ch"))
	require.False(t, p.HasRepository("cms.cern.ch"))
	require.Equal(t, int32(12), p.Repositories[0].Revision())

	_, err = AsPopulated(failed)
	require.EqualError(t, err, "s1.example.org is a failed server")

	f, err := AsFailed(failed)
	require.NoError(t, err)
	require.True(t, errors.Is(f, ErrValidation))
	require.Contains(t, f.Error(), "s1.example.org")

	_, err = AsFailed(populated)
	require.EqualError(t, err, "s1.example.org is a populated server")
}

func TestEndpointURLs(t *testing.T) {
	t.Parallel()

	host := Hostname("s1.example.org")
	require.Equal(t, "http://s1.example.org/cvmfs/info/v1/repositories.json", RepositoriesJSONURL(host))
	require.Equal(t, "http://s1.example.org/cvmfs/info/v1/meta.json", MetaJSONURL(host))
	require.Equal(t, "http://s1.example.org/cvmfs/atlas.cern.ch/.cvmfspublished", ManifestURL(host, "atlas.cern.ch"))
	require.Equal(t, "http://s1.example.org/cvmfs/atlas.cern.ch/.cvmfs_status.json", StatusURL(host, "atlas.cern.ch"))
	require.Equal(t,
		"http://s1.example.org/cvmfs/atlas.cern.ch/api/v1.0/geo/tok/a.example.org,b.example.org",
		GeoapiURL(host, "atlas.cern.ch", "tok", []Hostname{hostA, hostB}))
	require.Len(t, DefaultGeoapiServers(), 3)
}
