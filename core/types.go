package core

import "fmt"

// Coord addresses a node in the lattice or a cell inside a node
type Coord struct {
	I, J, K int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.I, c.J, c.K)
}

// Add offsets the coordinate by the unit step of a direction
func (c Coord) Add(d Direction) Coord {
	di, dj, dk := d.Offset()
	return Coord{c.I + di, c.J + dj, c.K + dk}
}

// Axis is one of the three lattice axes
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// ParseAxis accepts "x", "y" or "z"
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "X":
		return AxisX, nil
	case "y", "Y":
		return AxisY, nil
	case "z", "Z":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// Direction names one of the six faces of a node (or cell)
type Direction int

const (
	Left  Direction = iota // -x
	Right                  // +x
	Up                     // +y
	Down                   // -y
	Front                  // +z
	Back                   // -z
)

// NumDirections is the number of face neighbors of a node
const NumDirections = 6

// Center marks a transfer of the active node's own fields rather than a halo.
const Center Direction = -1

// Directions lists the six faces in slot order.
var Directions = [NumDirections]Direction{Left, Right, Up, Down, Front, Back}

var directionNames = [NumDirections]string{"left", "right", "up", "down", "front", "back"}

func (d Direction) String() string {
	if d == Center {
		return "center"
	}
	if d < 0 || int(d) >= NumDirections {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// Opposite returns the face on the other side of the same axis
func (d Direction) Opposite() Direction {
	switch d {
	case Left:
		return Right
	case Right:
		return Left
	case Up:
		return Down
	case Down:
		return Up
	case Front:
		return Back
	case Back:
		return Front
	}
	panic(fmt.Sprintf("no opposite for direction %d", int(d)))
}

// Offset returns the unit step (di, dj, dk) of the direction
func (d Direction) Offset() (int, int, int) {
	switch d {
	case Left:
		return -1, 0, 0
	case Right:
		return 1, 0, 0
	case Up:
		return 0, 1, 0
	case Down:
		return 0, -1, 0
	case Front:
		return 0, 0, 1
	case Back:
		return 0, 0, -1
	}
	panic(fmt.Sprintf("no offset for direction %d", int(d)))
}

func (d Direction) Axis() Axis {
	switch d {
	case Left, Right:
		return AxisX
	case Up, Down:
		return AxisY
	default:
		return AxisZ
	}
}

// Positive reports whether the direction points along +axis
func (d Direction) Positive() bool {
	return d == Right || d == Up || d == Front
}

// ObstacleMask classifies a cell for source injection and wall enforcement
type ObstacleMask uint8

const (
	Blank    ObstacleMask = iota // fluid
	Source                       // continuous emitter
	Boundary                     // solid, zero flux
)

func (m ObstacleMask) String() string {
	switch m {
	case Blank:
		return "blank"
	case Source:
		return "source"
	case Boundary:
		return "boundary"
	}
	return fmt.Sprintf("ObstacleMask(%d)", uint8(m))
}

// Field identifies one of the per-node host arrays
type Field int

const (
	FieldDensity Field = iota
	FieldVelocityU
	FieldVelocityV
	FieldVelocityW
	FieldObstacle
)

// StagedFields are the fields exchanged with neighbor halos.
var StagedFields = [4]Field{FieldDensity, FieldVelocityU, FieldVelocityV, FieldVelocityW}

func (f Field) String() string {
	switch f {
	case FieldDensity:
		return "density"
	case FieldVelocityU:
		return "velocity-u"
	case FieldVelocityV:
		return "velocity-v"
	case FieldVelocityW:
		return "velocity-w"
	case FieldObstacle:
		return "obstacle"
	}
	return fmt.Sprintf("Field(%d)", int(f))
}
