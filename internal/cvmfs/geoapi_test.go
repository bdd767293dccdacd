package cvmfs

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var (
	hostA = Hostname("a.example.org")
	hostB = Hostname("b.example.org")
	hostC = Hostname("c.example.org")
	hostD = Hostname("d.example.org")
)

func TestGeoapiQuery_CheckOrderByIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response []uint32
		want     bool
	}{
		{name: "identity", response: []uint32{0, 1, 2}, want: true},
		{name: "swapped", response: []uint32{1, 0, 2}, want: false},
		{name: "reversed", response: []uint32{2, 1, 0}, want: false},
		{name: "short", response: []uint32{0, 1}, want: false},
		{name: "long", response: []uint32{0, 1, 2, 3}, want: false},
		{name: "empty", response: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := GeoapiQuery{
				Hostname:   "s1.example.org",
				Candidates: []Hostname{hostA, hostB, hostC},
				Response:   tt.response,
			}
			require.Equal(t, tt.want, q.CheckOrderByIndex([]uint32{0, 1, 2}))
		})
	}
}

func TestGeoapiQuery_CheckOrderByHostname(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response []uint32
		expected []Hostname
		want     bool
	}{
		{name: "matching order", response: []uint32{0, 1, 2}, expected: []Hostname{hostA, hostB, hostC}, want: true},
		{name: "resolved permutation", response: []uint32{2, 0, 1}, expected: []Hostname{hostC, hostA, hostB}, want: true},
		{name: "wrong order", response: []uint32{1, 0, 2}, expected: []Hostname{hostA, hostB, hostC}, want: false},
		{name: "expected missing candidate", response: []uint32{0, 1, 2}, expected: []Hostname{hostA, hostB}, want: false},
		{name: "expected extra host", response: []uint32{0, 1, 2}, expected: []Hostname{hostA, hostB, hostC, hostD}, want: false},
		{name: "expected different host", response: []uint32{0, 1, 2}, expected: []Hostname{hostA, hostB, hostD}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := GeoapiQuery{
				Hostname:   "s1.example.org",
				Candidates: []Hostname{hostA, hostB, hostC},
				Response:   tt.response,
			}
			got, err := q.CheckOrderByHostname(tt.expected, zap.NewNop())
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestGeoapiQuery_CheckOrderByHostname_LogsBothDiscrepancies(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	q := GeoapiQuery{
		Hostname:   "s1.example.org",
		Candidates: []Hostname{hostA, hostB, hostC},
		Response:   []uint32{0, 1, 2},
	}
	got, err := q.CheckOrderByHostname([]Hostname{hostA, hostB, hostD}, zap.New(core))
	require.NoError(t, err)
	require.False(t, got)
	require.Equal(t, 2, logs.Len())
	require.Equal(t, []any{"c.example.org"}, logs.All()[0].ContextMap()["hosts"])
	require.Equal(t, []any{"d.example.org"}, logs.All()[1].ContextMap()["hosts"])
}

func TestGeoapiQuery_CheckOrderByHostname_LengthMismatchIsError(t *testing.T) {
	t.Parallel()

	q := GeoapiQuery{
		Hostname:   "s1.example.org",
		Candidates: []Hostname{hostA, hostB, hostC},
		Response:   []uint32{0, 1},
	}
	_, err := q.CheckOrderByHostname([]Hostname{hostA, hostB, hostC}, nil)
	require.ErrorIs(t, err, ErrGeoapi)
	require.Contains(t, err.Error(), "expected 3, got 2")
}

func TestGeoapiQuery_ResolveHostnames(t *testing.T) {
	t.Parallel()

	q := GeoapiQuery{Candidates: []Hostname{hostA, hostB, hostC}, Response: []uint32{2, 0, 1}}
	got, err := q.ResolveHostnames()
	require.NoError(t, err)
	require.Equal(t, []Hostname{hostC, hostA, hostB}, got)

	q.Response = []uint32{0, 1, 3}
	_, err = q.ResolveHostnames()
	require.ErrorIs(t, err, ErrGeoapi)
}

func TestParseGeoapiResponse(t *testing.T) {
	t.Parallel()

	got, err := ParseGeoapiResponse("2,1,3\n")
	require.NoError(t, err)
	require.Equal(t, []uint32{2, 1, 3}, got)

	for _, body := range []string{"", "1,,2", "a,b", "1,-2", "1, 2"} {
		_, err := ParseGeoapiResponse(body)
		require.ErrorIs(t, err, ErrGeoapi, body)
	}
}

func TestGeoapiQuery_IsEmpty(t *testing.T) {
	t.Parallel()

	require.True(t, GeoapiQuery{}.IsEmpty())
	require.False(t, GeoapiQuery{Response: []uint32{0}}.IsEmpty())
}
