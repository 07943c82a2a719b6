package exif

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/exif-surgery/core"
	"github.com/ankit-chaubey/exif-surgery/internal/testutil"
)

var allOrientations = []Orientation{
	OrientationNormal,
	OrientationFlipHorizontal,
	OrientationRotate180,
	OrientationFlipVertical,
	OrientationTranspose,
	OrientationRotate90,
	OrientationTransverse,
	OrientationRotate270,
}

func TestOrientationRotate(t *testing.T) {
	tests := []struct {
		from    Orientation
		degrees int
		want    Orientation
	}{
		{OrientationNormal, -90, OrientationRotate270},
		{OrientationNormal, 0, OrientationNormal},
		{OrientationNormal, 90, OrientationRotate90},
		{OrientationNormal, 180, OrientationRotate180},
		{OrientationNormal, 270, OrientationRotate270},
		{OrientationNormal, 540, OrientationRotate180},
		{OrientationRotate90, 90, OrientationRotate180},
		{OrientationRotate270, 90, OrientationNormal},
		{OrientationFlipHorizontal, 90, OrientationTransverse},
		{OrientationFlipHorizontal, 180, OrientationFlipVertical},
		{OrientationFlipVertical, 90, OrientationTranspose},
		{OrientationTranspose, 90, OrientationFlipHorizontal},
		{OrientationTransverse, -90, OrientationFlipHorizontal},
	}
	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			got, err := tt.from.Rotate(tt.degrees)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "%s by %d", tt.from, tt.degrees)
		})
	}

	t.Run("Undefined", func(t *testing.T) {
		for _, d := range []int{-90, 0, 90, 180, 270, 540} {
			got, err := OrientationUndefined.Rotate(d)
			require.NoError(t, err)
			assert.Equal(t, OrientationUndefined, got)
		}
	})

	t.Run("NotRightAngle", func(t *testing.T) {
		_, err := OrientationNormal.Rotate(108)
		assert.ErrorIs(t, err, core.ErrInvalidArgument)
	})

	t.Run("FullTurn", func(t *testing.T) {
		for _, o := range allOrientations {
			got, err := o.Rotate(360)
			require.NoError(t, err)
			assert.Equal(t, o, got)
		}
	})
}

func TestOrientationFlip(t *testing.T) {
	tests := []struct {
		from         Orientation
		vertically   Orientation
		horizontally Orientation
	}{
		{OrientationNormal, OrientationFlipVertical, OrientationFlipHorizontal},
		{OrientationRotate90, OrientationTransverse, OrientationTranspose},
		{OrientationRotate180, OrientationFlipHorizontal, OrientationFlipVertical},
		{OrientationRotate270, OrientationTranspose, OrientationTransverse},
		{OrientationFlipVertical, OrientationNormal, OrientationRotate180},
		{OrientationFlipHorizontal, OrientationRotate180, OrientationNormal},
		{OrientationTranspose, OrientationRotate270, OrientationRotate90},
		{OrientationTransverse, OrientationRotate90, OrientationRotate270},
		{OrientationUndefined, OrientationUndefined, OrientationUndefined},
	}
	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			assert.Equal(t, tt.vertically, tt.from.FlipVertically())
			assert.Equal(t, tt.horizontally, tt.from.FlipHorizontally())
			assert.Equal(t, tt.from, tt.from.FlipVertically().FlipVertically())
			assert.Equal(t, tt.from, tt.from.FlipHorizontally().FlipHorizontally())
		})
	}
}

func TestOrientationPose(t *testing.T) {
	tests := []struct {
		o       Orientation
		flipped bool
		degrees int
	}{
		{OrientationUndefined, false, 0},
		{OrientationNormal, false, 0},
		{OrientationRotate90, false, 90},
		{OrientationRotate180, false, 180},
		{OrientationRotate270, false, 270},
		{OrientationFlipHorizontal, true, 0},
		{OrientationTransverse, true, 90},
		{OrientationFlipVertical, true, 180},
		{OrientationTranspose, true, 270},
	}
	for _, tt := range tests {
		t.Run(tt.o.String(), func(t *testing.T) {
			assert.Equal(t, tt.flipped, tt.o.IsFlipped())
			assert.Equal(t, tt.degrees, tt.o.RotationDegrees())
		})
	}
	assert.Equal(t, "orientation(12)", Orientation(12).String())
	assert.False(t, Orientation(12).Valid())
}

func TestStoreOrientation(t *testing.T) {
	t.Run("AbsentIsNormal", func(t *testing.T) {
		assert.Equal(t, OrientationNormal, New().Orientation())
	})

	t.Run("OutOfRange", func(t *testing.T) {
		s := New()
		require.NoError(t, s.SetAttribute(TagOrientation, "9"))
		assert.Equal(t, OrientationUndefined, s.Orientation())
		require.NoError(t, s.Rotate(90))
		assert.Equal(t, "0", attr(t, s, TagOrientation))
	})

	t.Run("Persisted", func(t *testing.T) {
		s, p := openTemp(t, "o.jpg", cameraJPEG())
		assert.Equal(t, OrientationRotate90, s.Orientation())
		assert.Equal(t, 90, s.RotationDegrees())

		require.NoError(t, s.Rotate(-90))
		require.NoError(t, s.FlipHorizontally())
		require.NoError(t, s.SaveAttributes())
		again := reopen(t, p)
		assert.Equal(t, OrientationFlipHorizontal, again.Orientation())
		assert.True(t, again.IsFlipped())

		require.NoError(t, again.FlipVertically())
		assert.Equal(t, OrientationRotate180, again.Orientation())
		require.NoError(t, again.ResetOrientation())
		assert.Equal(t, OrientationNormal, again.Orientation())
	})

	t.Run("InvalidRotationLeavesTag", func(t *testing.T) {
		s, err := OpenExifData(testutil.NewExif(binary.LittleEndian).Short(testutil.Primary, 0x0112, 3).Build())
		require.NoError(t, err)
		assert.ErrorIs(t, s.Rotate(45), core.ErrInvalidArgument)
		assert.Equal(t, OrientationRotate180, s.Orientation())
	})
}
