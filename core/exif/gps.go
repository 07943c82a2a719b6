package exif

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ankit-chaubey/exif-surgery/core"
)

// Location is a position fix as a host platform reports it.
type Location struct {
	Provider  string
	Latitude  float64
	Longitude float64
	Altitude  float64 // metres above sea level
	Speed     float64 // metres per second
	Time      time.Time
}

const msToKmh = 3.6

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func checkLatLong(lat, lon float64) error {
	if !finite(lat) || lat < -90 || lat > 90 {
		return errors.Wrapf(core.ErrInvalidArgument, "exif: latitude %v out of range", lat)
	}
	if !finite(lon) || lon < -180 || lon > 180 {
		return errors.Wrapf(core.ErrInvalidArgument, "exif: longitude %v out of range", lon)
	}
	return nil
}

// degreesRational writes a non-negative decimal degree as three rationals
// with seconds to 1e-7.
func degreesRational(v float64) string {
	deg := int64(v)
	mins := int64((v - float64(deg)) * 60)
	sec := int64(math.Round((v - float64(deg) - float64(mins)/60) * 3600 * 1e7))
	if sec >= 60*1e7 {
		sec -= 60 * 1e7
		mins++
	}
	if mins >= 60 {
		mins -= 60
		deg++
	}
	return fmt.Sprintf("%d/1,%d/1,%d/10000000", deg, mins, sec)
}

func latLongTags(lat, lon float64) [][2]string {
	latRef, lonRef := "N", "E"
	if lat < 0 {
		latRef = "S"
	}
	if lon < 0 {
		lonRef = "W"
	}
	return [][2]string{
		{TagGPSLatitudeRef, latRef},
		{TagGPSLatitude, degreesRational(math.Abs(lat))},
		{TagGPSLongitudeRef, lonRef},
		{TagGPSLongitude, degreesRational(math.Abs(lon))},
	}
}

// SetLatLong writes both coordinates and their references. Out of range
// or non-finite input writes nothing.
func (s *Store) SetLatLong(lat, lon float64) error {
	if err := checkLatLong(lat, lon); err != nil {
		return err
	}
	return s.setAll(latLongTags(lat, lon)...)
}

// LatLong returns the decimal coordinates when all four GPS position tags
// are present and readable.
func (s *Store) LatLong() (lat, lon float64, ok bool) {
	latV, ok1 := s.Attribute(TagGPSLatitude)
	latRef, ok2 := s.Attribute(TagGPSLatitudeRef)
	lonV, ok3 := s.Attribute(TagGPSLongitude)
	lonRef, ok4 := s.Attribute(TagGPSLongitudeRef)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, 0, false
	}
	lat, err := rationalDegrees(latV, latRef, "N", "S")
	if err != nil {
		s.log.Debug().Err(err).Str("tag", TagGPSLatitude).Msg("exif: unreadable coordinate")
		return 0, 0, false
	}
	lon, err = rationalDegrees(lonV, lonRef, "E", "W")
	if err != nil {
		s.log.Debug().Err(err).Str("tag", TagGPSLongitude).Msg("exif: unreadable coordinate")
		return 0, 0, false
	}
	return lat, lon, true
}

func rationalDegrees(v, ref, pos, neg string) (float64, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 3 {
		return 0, errors.Errorf("%d components", len(parts))
	}
	var dms [3]float64
	for i, p := range parts {
		f, err := parseNumber(strings.TrimSpace(p))
		if err != nil {
			return 0, err
		}
		dms[i] = f
	}
	d := dms[0] + dms[1]/60 + dms[2]/3600
	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case pos:
		return d, nil
	case neg:
		return -d, nil
	}
	return 0, errors.Errorf("reference %q", ref)
}

func altitudeTags(alt float64) [][2]string {
	ref := "0"
	if alt < 0 {
		ref = "1"
	}
	r := int64(math.Round(math.Abs(alt) * 10000))
	return [][2]string{
		{TagGPSAltitude, strconv.FormatInt(r, 10) + "/10000"},
		{TagGPSAltitudeRef, ref},
	}
}

// SetAltitude writes the altitude in metres, negative below sea level.
func (s *Store) SetAltitude(alt float64) error {
	if !finite(alt) {
		return errors.Wrapf(core.ErrInvalidArgument, "exif: altitude %v", alt)
	}
	return s.setAll(altitudeTags(alt)...)
}

// Altitude returns the signed altitude, or def unless both GPSAltitude and
// GPSAltitudeRef are stored and valid.
func (s *Store) Altitude(def float64) float64 {
	alt, err := s.AttributeDouble(TagGPSAltitude, -1)
	if err != nil || alt < 0 {
		return def
	}
	ref, err := s.AttributeInt(TagGPSAltitudeRef, -1)
	if err != nil || ref < 0 {
		return def
	}
	if ref == 1 {
		return -alt
	}
	return alt
}

// SetGPSInfo writes a whole location fix: processing method, position,
// altitude, speed in km/h and the UTC date and time stamps. Every field is
// validated before anything is written.
func (s *Store) SetGPSInfo(loc Location) error {
	if err := checkLatLong(loc.Latitude, loc.Longitude); err != nil {
		return err
	}
	if !finite(loc.Altitude) {
		return errors.Wrapf(core.ErrInvalidArgument, "exif: altitude %v", loc.Altitude)
	}
	if !finite(loc.Speed) || loc.Speed < 0 {
		return errors.Wrapf(core.ErrInvalidArgument, "exif: speed %v", loc.Speed)
	}
	if loc.Time.IsZero() {
		return errors.Wrap(core.ErrNullArgument, "exif: location without a time")
	}
	if loc.Time.Before(time.Unix(0, 0)) {
		return errors.Wrapf(core.ErrInvalidArgument, "exif: location time %s is before the epoch", loc.Time)
	}

	kmh := int64(math.Round(loc.Speed * msToKmh * 10000))
	stamp := loc.Time.UTC().Truncate(time.Second).Format(dateTimeLayout)
	date, clock, _ := strings.Cut(stamp, " ")

	kv := [][2]string{{TagGPSProcessingMethod, loc.Provider}}
	kv = append(kv, latLongTags(loc.Latitude, loc.Longitude)...)
	kv = append(kv, altitudeTags(loc.Altitude)...)
	kv = append(kv,
		[2]string{TagGPSSpeedRef, "K"},
		[2]string{TagGPSSpeed, strconv.FormatInt(kmh, 10) + "/10000"},
		[2]string{TagGPSDateStamp, date},
		[2]string{TagGPSTimeStamp, clock},
	)
	return s.setAll(kv...)
}
