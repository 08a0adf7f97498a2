/*
Package physics holds the per-train kinematic model: steady-state velocity
and acceleration/deceleration tables indexed by commanded speed, and the
stopping-distance/acceleration-regime helpers built from them.

Table magnitudes are grounded in the real measured steady-state figures
(transcribed from trains/physics.c's velocity/accel/decel arrays), with
acceleration expressed in centi-micrometers/tick^2 and a /100 scale-down
baked into every formula that consumes it, exactly as the integration and
stopping-distance formulas require.
*/
package physics

// TrainID identifies a physical locomotive.
type TrainID int

// Direction matches track.Direction's forward/reverse sense for a train.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

// AccelKind classifies which regime the integration step is in.
type AccelKind int

const (
	Steady AccelKind = iota
	Accelerating
	AccelFromStop
	Decelerating
	Stopping
)

// MaxSpeed is the highest commandable notch (0..14).
const MaxSpeed = 14

// AverageTrainCommandLatency is the controller-to-loco delay in ticks
// absorbed before a newly scheduled acceleration regime takes effect.
const AverageTrainCommandLatency = 12

// pickupOffsetUM is the micrometer distance between a train's pickup (what
// sensor trips measure) and its physical front: 20mm forward, 140mm
// reverse, scaled mm->µm (×1000) per the design notes' unit conversions.
var pickupOffsetUM = [2]int{
	Forward: 20 * 1000,
	Reverse: 140 * 1000,
}

// Table holds one train's steady-state velocity and acceleration/
// deceleration curves, indexed by commanded speed notch 0..14.
type Table struct {
	// VelocityUMPerTick[v] is the steady-state velocity at notch v, µm/tick.
	VelocityUMPerTick [MaxSpeed + 1]int
	// AccelCentiUMPerTick2[v] is steady-state acceleration while ramping up
	// toward notch v, centi-µm/tick².
	AccelCentiUMPerTick2 [MaxSpeed + 1]int
	// DecelCentiUMPerTick2[v] is steady-state deceleration while ramping
	// down toward notch v, centi-µm/tick².
	DecelCentiUMPerTick2 [MaxSpeed + 1]int
}

// defaultTable is the measured calibration shared by trains with no
// train-specific override registered.
var defaultTable = Table{
	VelocityUMPerTick: [MaxSpeed + 1]int{
		0, 0, 0, 0, 0, 0,
		2912, 3521, 3949, 4448, 5025, 5476, 5924, 5924, 5924,
	},
	AccelCentiUMPerTick2: [MaxSpeed + 1]int{
		0, 0, 0, 0, 0,
		500, 700, 1400, 1700, 1900, 2000, 2000, 2100, 2200, 2200,
	},
	DecelCentiUMPerTick2: [MaxSpeed + 1]int{
		2000, 2000, 2000, 2000, 2000, 2000, 2000, 2000,
		2100, 2100, 2100, 2200, 2400, 2400, 2400,
	},
}

// Calibration is the process-wide, read-only registry of per-train tables,
// built once at startup (Design Notes §9 "global mutable state": this one
// is immutable after construction, so it needs no lock).
type Calibration struct {
	tables map[TrainID]Table
}

// NewCalibration returns an empty registry; trains with no override use
// defaultTable.
func NewCalibration() *Calibration {
	return &Calibration{tables: make(map[TrainID]Table)}
}

// Register installs a train-specific table, overriding the default.
func (c *Calibration) Register(id TrainID, t Table) {
	c.tables[id] = t
}

// For returns the calibration table for id, falling back to the default
// measured table when no override was registered.
func (c *Calibration) For(id TrainID) Table {
	if t, ok := c.tables[id]; ok {
		return t
	}
	return defaultTable
}

func clampSpeed(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxSpeed {
		return MaxSpeed
	}
	return v
}

// SteadyVelocityUMPerTick returns the steady-state velocity for commanded
// speed notch v under table t, in micrometers/tick.
func (t Table) SteadyVelocityUMPerTick(v int) int {
	return t.VelocityUMPerTick[clampSpeed(v)]
}

// AccelCentiUMPerTick2 returns the steady-state acceleration magnitude
// while ramping up toward notch v, in centi-micrometers/tick².
func (t Table) AccelCentiUMPerTick2(v int) int {
	return t.AccelCentiUMPerTick2[clampSpeed(v)]
}

// DecelCentiUMPerTick2 returns the steady-state deceleration magnitude
// while ramping down toward notch v, in centi-micrometers/tick².
func (t Table) DecelCentiUMPerTick2(v int) int {
	return t.DecelCentiUMPerTick2[clampSpeed(v)]
}

// PickupToFrontUM returns the offset from a train's pickup to its physical
// front in the given direction of travel, in micrometers.
func PickupToFrontUM(dir Direction) int {
	return pickupOffsetUM[dir]
}

// AccelTicksRemaining computes how many ticks an acceleration regime from
// v to vTarget under magnitude a (centi-µm/tick²) will take, per
// spec §4.3: accel_ticks_remaining = |v - v_target| * 100 / a + 1, the +1
// absorbing integer truncation so the regime ends at or after the target.
func AccelTicksRemaining(v, vTarget, a int) int {
	if a <= 0 {
		return 0
	}
	delta := v - vTarget
	if delta < 0 {
		delta = -delta
	}
	return delta*100/a + 1
}

// IntegrateVelocity applies dv = spent*a/100 (a halved for AccelFromStop,
// per §4.3) toward vTarget, for `spent` ticks of accel magnitude a
// (centi-µm/tick²), clamping at vTarget and never overshooting zero.
func IntegrateVelocity(v, vTarget, spent, a int, kind AccelKind) int {
	if spent <= 0 || v == vTarget {
		return v
	}
	if kind == AccelFromStop {
		a = a / 2
	}
	dv := spent * a / 100
	if v < vTarget {
		next := v + dv
		if next > vTarget {
			return vTarget
		}
		return next
	}
	next := v - dv
	if next < vTarget {
		return vTarget
	}
	return next
}

// StoppingDistanceUM returns the distance (µm), measured from a train's
// pickup, that it will travel between a stop command taking effect and the
// train physically coming to rest, per §4.6:
// stopping_distance = v²·100/(2·a) + pickup_offset(direction).
func StoppingDistanceUM(v, a int, dir Direction) int {
	if a <= 0 {
		return pickupOffsetUM[dir]
	}
	return v*v*100/(2*a) + pickupOffsetUM[dir]
}

// StopTimeTicks returns t_stop = v·100/a, the number of ticks a train at
// velocity v under deceleration magnitude a takes to coast to rest (§8 S6).
func StopTimeTicks(v, a int) int {
	if a <= 0 {
		return 0
	}
	return v * 100 / a
}

// IntegratePositionUM advances a position (µm) by dt ticks at velocity v
// (µm/tick), per §4.3's distance_past_node += dt * velocity.
func IntegratePositionUM(positionUM, velocityUMPerTick, dt int) int {
	return positionUM + dt*velocityUMPerTick
}

// ClassifyRegime implements §4.3's SpeedUpdate classification of the
// acceleration regime a train enters when its commanded speed changes.
func ClassifyRegime(v, vTarget int) AccelKind {
	switch {
	case v > vTarget && vTarget > 0:
		return Decelerating
	case v > vTarget && vTarget == 0:
		return Stopping
	case v < vTarget && v == 0:
		return AccelFromStop
	case v < vTarget:
		return Accelerating
	default:
		return Steady
	}
}
