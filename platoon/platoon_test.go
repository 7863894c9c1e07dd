package platoon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overdrivelabs/platoonsim/fleet"
	"github.com/overdrivelabs/platoonsim/phys"
	"github.com/overdrivelabs/platoonsim/vehicletype"
)

func addVehicle(fl *fleet.Fleet, pos float64, desired phys.MetersPerSec) int {
	info, _ := vehicletype.DefaultRegistry.Lookup("passenger")
	return fl.Add(fleet.NewVehicleSpec{
		Type:         info,
		Capability:   vehicletype.CACC,
		Position:     phys.Meters(pos),
		Lane:         0,
		Speed:        desired,
		DesiredSpeed: desired,
		ArrivalPos:   phys.Meters(pos + 10000),
	})
}

func TestRecomputeDesiredSpeedMeansMembers(t *testing.T) {
	fl := fleet.New()
	leaderID := addVehicle(fl, 100, 30)
	followerID := addVehicle(fl, 90, 20)

	reg := NewRegistry()
	p := reg.Create(leaderID, 0, 30, 0)
	p.Members = append(p.Members, followerID)

	desiredOf := func(id int) phys.MetersPerSec {
		row, _ := fl.Index(id)
		return fl.At(row).DesiredSpeed
	}
	p.RecomputeDesiredSpeed(true, desiredOf)
	assert.Equal(t, phys.MetersPerSec(25), p.DesiredSpeed)
}

func TestRecomputeDesiredSpeedKeepsOriginalWhenFlagOff(t *testing.T) {
	fl := fleet.New()
	leaderID := addVehicle(fl, 100, 30)
	reg := NewRegistry()
	p := reg.Create(leaderID, 0, 30, 0)

	desiredOf := func(id int) phys.MetersPerSec { return 99 }
	p.RecomputeDesiredSpeed(false, desiredOf)
	assert.Equal(t, phys.MetersPerSec(30), p.DesiredSpeed)
}

func TestLeaveTailPop(t *testing.T) {
	fl := fleet.New()
	leaderID := addVehicle(fl, 100, 30)
	tailID := addVehicle(fl, 90, 30)
	midID := addVehicle(fl, 95, 30)

	reg := NewRegistry()
	p := reg.Create(leaderID, 0, 30, 0)
	p.Members = append(p.Members, midID, tailID)
	for i, id := range p.Members {
		row, _ := fl.Index(id)
		fl.SetPlatoonID(row, p.ID)
		fl.SetPositionInOrder(row, i)
		if i == 0 {
			fl.SetRole(row, fleet.RoleLeader)
		} else {
			fl.SetRole(row, fleet.RoleFollower)
		}
	}

	desiredOf := func(id int) phys.MetersPerSec {
		row, _ := fl.Index(id)
		return fl.At(row).DesiredSpeed
	}
	Leave(LeaveRequest{VehicleID: tailID}, fl, reg, desiredOf, Params{UpdateDesiredSpeed: true}, 0)

	require.Equal(t, 2, p.Size())
	row, _ := fl.Index(tailID)
	assert.Equal(t, fleet.NoPlatoon, fl.At(row).PlatoonID)
	assert.Equal(t, fleet.RoleNone, fl.At(row).Role)
}

func TestLeaveSoleDissolvesPlatoon(t *testing.T) {
	fl := fleet.New()
	leaderID := addVehicle(fl, 100, 30)
	reg := NewRegistry()
	p := reg.Create(leaderID, 0, 30, 0)

	desiredOf := func(id int) phys.MetersPerSec { return 30 }
	Leave(LeaveRequest{VehicleID: leaderID}, fl, reg, desiredOf, Params{}, 0)

	_, ok := reg.Get(p.ID)
	assert.False(t, ok)
	row, _ := fl.Index(leaderID)
	assert.Equal(t, fleet.Idle, fl.At(row).Maneuver)
}

func TestUpdateFollowersInheritsLeaderDesiredSpeed(t *testing.T) {
	fl := fleet.New()
	leaderID := addVehicle(fl, 100, 30)
	followerID := addVehicle(fl, 90, 20)

	reg := NewRegistry()
	p := reg.Create(leaderID, 0, 30, 0)
	p.Members = append(p.Members, followerID)

	leaderRow, _ := fl.Index(leaderID)
	fl.SetDesiredSpeed(leaderRow, 25)

	UpdateFollowers(fl, p)

	followerRow, _ := fl.Index(followerID)
	assert.Equal(t, phys.MetersPerSec(25), fl.At(followerRow).CFTarget)
}
