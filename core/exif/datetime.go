package exif

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ankit-chaubey/exif-surgery/core"
)

const (
	dateTimeLayout    = "2006:01:02 15:04:05"
	dateTimeAltLayout = "2006-01-02 15:04:05"
)

type timeTags struct {
	dateTime, subSec, offset string
}

var (
	mainTimeTags      = timeTags{TagDateTime, TagSubSecTime, TagOffsetTime}
	originalTimeTags  = timeTags{TagDateTimeOriginal, TagSubSecTimeOriginal, TagOffsetTimeOriginal}
	digitizedTimeTags = timeTags{TagDateTimeDigitized, TagSubSecTimeDigitized, TagOffsetTimeDigitized}
)

// DateTime composes DateTime, SubSecTime and OffsetTime into an instant.
func (s *Store) DateTime() (time.Time, bool) { return s.composeTime(mainTimeTags) }

func (s *Store) DateTimeOriginal() (time.Time, bool) { return s.composeTime(originalTimeTags) }

func (s *Store) DateTimeDigitized() (time.Time, bool) { return s.composeTime(digitizedTimeTags) }

// GPSDateTime composes GPSDateStamp and GPSTimeStamp. GPS time carries
// whole seconds only.
func (s *Store) GPSDateTime() (time.Time, bool) {
	date, ok1 := s.Attribute(TagGPSDateStamp)
	clock, ok2 := s.Attribute(TagGPSTimeStamp)
	if !ok1 || !ok2 {
		return time.Time{}, false
	}
	return parseDateTime(strings.TrimSpace(date) + " " + clock)
}

func (s *Store) composeTime(tt timeTags) (time.Time, bool) {
	v, ok := s.Attribute(tt.dateTime)
	if !ok {
		return time.Time{}, false
	}
	t, ok := parseDateTime(v)
	if !ok {
		return time.Time{}, false
	}
	if off, ok := s.Attribute(tt.offset); ok {
		if d, ok := parseOffset(off); ok {
			t = t.Add(-d)
		}
	}
	if sub, ok := s.Attribute(tt.subSec); ok {
		t = t.Add(time.Duration(parseSubSeconds(sub)) * time.Millisecond)
	}
	return t, true
}

func parseDateTime(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{dateTimeLayout, dateTimeAltLayout} {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseOffset reads "±HH:MM", rejecting hours past 14.
func parseOffset(v string) (time.Duration, bool) {
	if len(v) != 6 || (v[0] != '+' && v[0] != '-') || v[3] != ':' {
		return 0, false
	}
	h, err1 := strconv.ParseUint(v[1:3], 10, 8)
	m, err2 := strconv.ParseUint(v[4:6], 10, 8)
	if err1 != nil || err2 != nil || h > 14 || m > 59 {
		return 0, false
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	if v[0] == '-' {
		d = -d
	}
	return d, true
}

// parseSubSeconds reads a decimal fraction as milliseconds from its
// first three digits: "1" is 100, "01" is 10, "1234" is 123.
func parseSubSeconds(v string) int64 {
	v = strings.TrimSpace(v)
	if len(v) > 3 {
		v = v[:3]
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	for i := len(v); i < 3; i++ {
		n *= 10
	}
	return n
}

// SetDateTime writes t as DateTime in UTC with millisecond SubSecTime.
// OffsetTime is left as stored.
func (s *Store) SetDateTime(t time.Time) error {
	if t.IsZero() {
		return errors.Wrap(core.ErrNullArgument, "exif: zero date-time")
	}
	if t.Before(time.Unix(0, 0)) {
		return errors.Wrapf(core.ErrInvalidArgument, "exif: date-time %s is before the epoch", t)
	}
	t = t.UTC()
	ms := t.Nanosecond() / int(time.Millisecond)
	return s.setAll(
		[2]string{TagDateTime, t.Format(dateTimeLayout)},
		[2]string{TagSubSecTime, leftPad(strconv.Itoa(ms), 3)},
	)
}

func leftPad(v string, n int) string {
	if len(v) >= n {
		return v
	}
	return strings.Repeat("0", n-len(v)) + v
}
