package exif

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/ankit-chaubey/exif-surgery/core"
)

// Orientation is the value of the Orientation tag.
type Orientation int

const (
	OrientationUndefined      Orientation = 0
	OrientationNormal         Orientation = 1
	OrientationFlipHorizontal Orientation = 2
	OrientationRotate180      Orientation = 3
	OrientationFlipVertical   Orientation = 4
	OrientationTranspose      Orientation = 5
	OrientationRotate90       Orientation = 6
	OrientationTransverse     Orientation = 7
	OrientationRotate270      Orientation = 8
)

var orientationNames = map[Orientation]string{
	OrientationUndefined:      "undefined",
	OrientationNormal:         "normal",
	OrientationFlipHorizontal: "flip-horizontal",
	OrientationRotate180:      "rotate-180",
	OrientationFlipVertical:   "flip-vertical",
	OrientationTranspose:      "transpose",
	OrientationRotate90:       "rotate-90",
	OrientationTransverse:     "transverse",
	OrientationRotate270:      "rotate-270",
}

func (o Orientation) String() string {
	if n, ok := orientationNames[o]; ok {
		return n
	}
	return "orientation(" + strconv.Itoa(int(o)) + ")"
}

// Valid reports whether o is one of the nine tag values.
func (o Orientation) Valid() bool {
	_, ok := orientationNames[o]
	return ok
}

// Every defined orientation is a mirror flag plus a clockwise rotation
// applied after it.
type pose struct {
	flipped bool
	degrees int
}

var (
	poseOf   map[Orientation]pose
	fromPose map[pose]Orientation

	rotateTable [4]map[Orientation]Orientation
	flipVTable  map[Orientation]Orientation
	flipHTable  map[Orientation]Orientation
)

func init() {
	poseOf = map[Orientation]pose{
		OrientationNormal:         {false, 0},
		OrientationRotate90:       {false, 90},
		OrientationRotate180:      {false, 180},
		OrientationRotate270:      {false, 270},
		OrientationFlipHorizontal: {true, 0},
		OrientationTransverse:     {true, 90},
		OrientationFlipVertical:   {true, 180},
		OrientationTranspose:      {true, 270},
	}
	fromPose = make(map[pose]Orientation, len(poseOf))
	for o, p := range poseOf {
		fromPose[p] = o
	}

	for q := range rotateTable {
		rotateTable[q] = map[Orientation]Orientation{}
	}
	flipVTable = map[Orientation]Orientation{}
	flipHTable = map[Orientation]Orientation{}
	for o, p := range poseOf {
		for q := range rotateTable {
			rotateTable[q][o] = fromPose[pose{p.flipped, mod360(p.degrees + 90*q)}]
		}
		flipHTable[o] = fromPose[pose{!p.flipped, mod360(-p.degrees)}]
		flipVTable[o] = fromPose[pose{!p.flipped, mod360(180 - p.degrees)}]
	}
}

func mod360(d int) int {
	d %= 360
	if d < 0 {
		d += 360
	}
	return d
}

// Rotate turns o clockwise by degrees, which must be a multiple of 90.
// Undefined stays undefined.
func (o Orientation) Rotate(degrees int) (Orientation, error) {
	if degrees%90 != 0 {
		return o, errors.Wrapf(core.ErrInvalidArgument, "exif: rotation of %d degrees is not a multiple of 90", degrees)
	}
	if next, ok := rotateTable[mod360(degrees)/90][o]; ok {
		return next, nil
	}
	return OrientationUndefined, nil
}

// FlipVertically mirrors o top to bottom.
func (o Orientation) FlipVertically() Orientation {
	if next, ok := flipVTable[o]; ok {
		return next
	}
	return OrientationUndefined
}

// FlipHorizontally mirrors o left to right.
func (o Orientation) FlipHorizontally() Orientation {
	if next, ok := flipHTable[o]; ok {
		return next
	}
	return OrientationUndefined
}

// IsFlipped reports whether o includes a mirror.
func (o Orientation) IsFlipped() bool { return poseOf[o].flipped }

// RotationDegrees is the clockwise rotation left after the mirror.
func (o Orientation) RotationDegrees() int { return poseOf[o].degrees }

// ─── Store helpers ───────────────────────────────────────────────────────────

// Orientation reads the Orientation tag, NORMAL when absent. Values outside
// the tag's range read as undefined.
func (s *Store) Orientation() Orientation {
	v, err := s.AttributeInt(TagOrientation, int(OrientationNormal))
	if err != nil {
		return OrientationUndefined
	}
	o := Orientation(v)
	if !o.Valid() {
		return OrientationUndefined
	}
	return o
}

func (s *Store) setOrientation(o Orientation) error {
	return s.SetAttribute(TagOrientation, strconv.Itoa(int(o)))
}

// Rotate turns the image orientation clockwise by degrees.
func (s *Store) Rotate(degrees int) error {
	next, err := s.Orientation().Rotate(degrees)
	if err != nil {
		return err
	}
	return s.setOrientation(next)
}

func (s *Store) FlipVertically() error {
	return s.setOrientation(s.Orientation().FlipVertically())
}

func (s *Store) FlipHorizontally() error {
	return s.setOrientation(s.Orientation().FlipHorizontally())
}

func (s *Store) IsFlipped() bool { return s.Orientation().IsFlipped() }

func (s *Store) RotationDegrees() int { return s.Orientation().RotationDegrees() }

// ResetOrientation sets the orientation to NORMAL.
func (s *Store) ResetOrientation() error {
	return s.setOrientation(OrientationNormal)
}
