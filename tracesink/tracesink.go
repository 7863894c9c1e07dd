// Package tracesink is a reference CSV implementation of stats' Sink
// interfaces (SPEC_FULL.md §2, §6). It is explicitly not part of the
// simulation core — the same "external collaborator" status spec.md §1
// assigns trace/CSV writers — but is provided so stats.Sinks is exercised
// end-to-end by something other than a test double.
package tracesink

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/overdrivelabs/platoonsim/stats"
)

// CSV writes one UTF-8, comma-separated CSV file per trace kind, each with
// a header row and a stable column order, per spec.md §6.
type CSV struct {
	w           *csv.Writer
	headerWritten bool
}

// NewCSV wraps an io.Writer (typically an os.File opened by the CLI
// entrypoint) as a CSV trace sink.
func NewCSV(w io.Writer) *CSV {
	return &CSV{w: csv.NewWriter(w)}
}

// Flush flushes any buffered rows to the underlying writer. Callers must
// call Flush before closing the underlying file.
func (c *CSV) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

func (c *CSV) writeHeaderOnce(header []string) error {
	if c.headerWritten {
		return nil
	}
	c.headerWritten = true
	return c.w.Write(header)
}

var _ stats.VehicleTripSink = (*VehicleTripCSV)(nil)

// VehicleTripCSV writes the vehicle_trips trace (spec.md §6).
type VehicleTripCSV struct{ CSV }

func NewVehicleTripCSV(w io.Writer) *VehicleTripCSV { return &VehicleTripCSV{CSV{w: csv.NewWriter(w)}} }

func (c *VehicleTripCSV) WriteVehicleTrip(t stats.VehicleTrip) error {
	if err := c.writeHeaderOnce([]string{"id", "depart_time", "arrival_time", "depart_pos", "arrival_pos", "route_length", "time_loss", "depart_delay"}); err != nil {
		return err
	}
	return c.w.Write([]string{
		itoa(t.ID),
		ftoa(t.DepartTime.Seconds()),
		ftoa(t.ArrivalTime.Seconds()),
		ftoa(float64(t.DepartPos)),
		ftoa(float64(t.ArrivalPos)),
		ftoa(float64(t.RouteLength)),
		ftoa(t.TimeLoss.Seconds()),
		ftoa(t.DepartDelay.Seconds()),
	})
}

var _ stats.VehicleTraceSink = (*VehicleTraceCSV)(nil)

// VehicleTraceCSV writes the vehicle_traces trace (spec.md §6).
type VehicleTraceCSV struct{ CSV }

func NewVehicleTraceCSV(w io.Writer) *VehicleTraceCSV {
	return &VehicleTraceCSV{CSV{w: csv.NewWriter(w)}}
}

func (c *VehicleTraceCSV) WriteVehicleTrace(v stats.VehicleTrace) error {
	if err := c.writeHeaderOnce([]string{"time", "id", "position", "lane", "speed", "desired_speed", "platoon_id", "platoon_role", "color"}); err != nil {
		return err
	}
	return c.w.Write([]string{
		ftoa(v.Time.Seconds()),
		itoa(v.ID),
		ftoa(float64(v.Position)),
		itoa(v.Lane),
		ftoa(float64(v.Speed)),
		ftoa(float64(v.DesiredSpeed)),
		itoa(v.PlatoonID),
		v.PlatoonRole,
		v.Color,
	})
}

var _ stats.VehicleChangeSink = (*VehicleChangeCSV)(nil)

// VehicleChangeCSV writes the vehicle_changes trace (spec.md §6).
type VehicleChangeCSV struct{ CSV }

func NewVehicleChangeCSV(w io.Writer) *VehicleChangeCSV {
	return &VehicleChangeCSV{CSV{w: csv.NewWriter(w)}}
}

func (c *VehicleChangeCSV) WriteVehicleChange(v stats.VehicleChange) error {
	if err := c.writeHeaderOnce([]string{"time", "id", "from_lane", "to_lane", "reason"}); err != nil {
		return err
	}
	return c.w.Write([]string{
		ftoa(v.Time.Seconds()),
		itoa(v.ID),
		itoa(v.FromLane),
		itoa(v.ToLane),
		v.Reason,
	})
}

var _ stats.VehicleEmissionSink = (*VehicleEmissionCSV)(nil)

// VehicleEmissionCSV writes the vehicle_emissions trace (spec.md §6).
type VehicleEmissionCSV struct{ CSV }

func NewVehicleEmissionCSV(w io.Writer) *VehicleEmissionCSV {
	return &VehicleEmissionCSV{CSV{w: csv.NewWriter(w)}}
}

func (c *VehicleEmissionCSV) WriteVehicleEmission(v stats.VehicleEmission) error {
	if err := c.writeHeaderOnce([]string{"time", "id", "co2", "co", "hc", "nox", "pmx", "fuel"}); err != nil {
		return err
	}
	return c.w.Write([]string{
		ftoa(v.Time.Seconds()),
		itoa(v.ID),
		ftoa(v.CO2),
		ftoa(v.CO),
		ftoa(v.HC),
		ftoa(v.NOx),
		ftoa(v.PMx),
		ftoa(v.Fuel),
	})
}

var _ stats.PlatoonTraceSink = (*PlatoonTraceCSV)(nil)

// PlatoonTraceCSV writes the platoon_trace trace (spec.md §6).
type PlatoonTraceCSV struct{ CSV }

func NewPlatoonTraceCSV(w io.Writer) *PlatoonTraceCSV {
	return &PlatoonTraceCSV{CSV{w: csv.NewWriter(w)}}
}

func (c *PlatoonTraceCSV) WritePlatoonTrace(p stats.PlatoonTrace) error {
	if err := c.writeHeaderOnce([]string{"time", "platoon_id", "leader_id", "size", "desired_speed", "lane", "position"}); err != nil {
		return err
	}
	return c.w.Write([]string{
		ftoa(p.Time.Seconds()),
		itoa(p.PlatoonID),
		itoa(p.LeaderID),
		itoa(p.Size),
		ftoa(float64(p.DesiredSpeed)),
		itoa(p.Lane),
		ftoa(float64(p.Position)),
	})
}

func itoa(i int) string     { return fmt.Sprintf("%d", i) }
func ftoa(f float64) string { return fmt.Sprintf("%.6f", f) }
