package tracesink

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overdrivelabs/platoonsim/phys"
	"github.com/overdrivelabs/platoonsim/stats"
)

func TestVehicleTripCSVWritesHeaderOnceThenRows(t *testing.T) {
	var buf strings.Builder
	sink := NewVehicleTripCSV(&buf)

	require.NoError(t, sink.WriteVehicleTrip(stats.VehicleTrip{ID: 1, DepartPos: 0, ArrivalPos: 500}))
	require.NoError(t, sink.WriteVehicleTrip(stats.VehicleTrip{ID: 2, DepartPos: 0, ArrivalPos: 500}))
	require.NoError(t, sink.Flush())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,depart_time,arrival_time,depart_pos,arrival_pos,route_length,time_loss,depart_delay", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1,"))
	assert.True(t, strings.HasPrefix(lines[2], "2,"))
}

func TestPlatoonTraceCSVRowMatchesFields(t *testing.T) {
	var buf strings.Builder
	sink := NewPlatoonTraceCSV(&buf)

	require.NoError(t, sink.WritePlatoonTrace(stats.PlatoonTrace{
		Time: phys.SimTimeFromSeconds(12), PlatoonID: 3, LeaderID: 7, Size: 4,
		DesiredSpeed: 28, Lane: 1, Position: 120,
	}))
	require.NoError(t, sink.Flush())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "12.000000,3,7,4,28.000000,1,120.000000", lines[1])
}
