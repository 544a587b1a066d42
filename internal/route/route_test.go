package route_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airlens/airlens/internal/fusion"
	"github.com/airlens/airlens/internal/geo"
	"github.com/airlens/airlens/internal/route"
)

var (
	connaught = geo.Coordinate{Lat: 28.6315, Lon: 77.2167}
	dwarka    = geo.Coordinate{Lat: 28.5704, Lon: 77.0653}
)

type stubFuser struct {
	pmByCall []float64
	err      error
	calls    int
}

func (s *stubFuser) Fuse(_ context.Context, coord geo.Coordinate) (*fusion.Reading, error) {
	if s.err != nil {
		return nil, s.err
	}
	pm := s.pmByCall[s.calls%len(s.pmByCall)]
	s.calls++
	return &fusion.Reading{Location: coord, PM25: pm}, nil
}

func TestDirectPath_PointCountAndEndpoints(t *testing.T) {
	path := route.DirectPath(connaught, dwarka, 20)

	require.Len(t, path, 21)
	assert.InDelta(t, connaught.Lat, path[0].Lat, 1e-6)
	assert.InDelta(t, connaught.Lon, path[0].Lon, 1e-6)
	assert.InDelta(t, dwarka.Lat, path[20].Lat, 1e-6)
	assert.InDelta(t, dwarka.Lon, path[20].Lon, 1e-6)

	// Rounded to 6 decimal places.
	for _, p := range path {
		assert.InDelta(t, p.Lat, float64(int64(p.Lat*1e6))/1e6, 1e-6)
	}
}

func TestSafePath_OffsetShape(t *testing.T) {
	direct := route.DirectPath(connaught, dwarka, 20)
	safe := route.SafePath(direct)

	require.Len(t, safe, len(direct))

	// sin(0) and sin(4π) vanish, so both endpoints stay fixed.
	assert.Equal(t, direct[0], safe[0])
	assert.Equal(t, direct[20], safe[20])

	// At t=1/8 the sine peaks: latitude pushed up, longitude pulled down.
	quarter := len(direct) / 8
	assert.Greater(t, safe[quarter].Lat, direct[quarter].Lat)
	assert.Less(t, safe[quarter].Lon, direct[quarter].Lon)
}

func TestPathDistance(t *testing.T) {
	direct := route.DirectPath(connaught, dwarka, 20)

	// Segment sum over a straight interpolation approximates the
	// great-circle distance between the endpoints.
	assert.InDelta(t, geo.Distance(connaught, dwarka), route.PathDistance(direct), 0.05)
	assert.Zero(t, route.PathDistance(direct[:1]))
}

func TestCompare_Heuristics(t *testing.T) {
	fuser := &stubFuser{pmByCall: []float64{100, 60}}
	engine := route.NewEngine(fuser, zerolog.Nop())

	cmp, err := engine.Compare(context.Background(), connaught, dwarka)
	require.NoError(t, err)

	assert.InDelta(t, 80.0, cmp.Direct.AverageExposure, 1e-9)
	assert.InDelta(t, 68.0, cmp.Safe.AverageExposure, 1e-9) // 80 * 0.85
	assert.InDelta(t, cmp.Direct.DistanceKm*1.02, cmp.Safe.DistanceKm, 1e-9)
	assert.InDelta(t, 15.0, cmp.ExposureReduction, 1e-9)

	assert.Equal(t, "direct", cmp.Direct.Type)
	assert.Equal(t, "safe", cmp.Safe.Type)
	require.Len(t, cmp.Direct.Path, 21)
	require.Len(t, cmp.Safe.Path, 21)
}

func TestCompare_RejectsUnsupportedEndpointBeforeFusing(t *testing.T) {
	fuser := &stubFuser{pmByCall: []float64{50}}
	engine := route.NewEngine(fuser, zerolog.Nop())

	_, err := engine.Compare(context.Background(), connaught, geo.Coordinate{Lat: 40, Lon: 100})
	assert.ErrorIs(t, err, geo.ErrUnsupportedRegion)
	assert.Zero(t, fuser.calls)
}

func TestCompare_FusionFailureIsUpstreamError(t *testing.T) {
	fuser := &stubFuser{err: errors.New("all sources down")}
	engine := route.NewEngine(fuser, zerolog.Nop())

	_, err := engine.Compare(context.Background(), connaught, dwarka)
	assert.ErrorIs(t, err, route.ErrUpstreamUnavailable)
}
