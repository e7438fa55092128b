// Package entityid implements the time-partitioned identifiers used for
// papers and articles.
//
// An ID renders as YYYY-MM-NNNN, with a -vV suffix when the version is
// greater than one. Internally it is (months since January 1970, sequence
// number within that month, version). The binary form is 8 bytes, big
// endian, so byte order in a sorted key-value store matches creation order.
package entityid

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// EpochYear is the year that months are counted from.
const EpochYear = 1970

// Size is the length of the binary encoding.
const Size = 8

const maxYear = EpochYear + (1<<16-1-11)/12

// ID identifies one entity of a kind.
type ID struct {
	months  uint16
	number  uint32
	version uint16
}

// New builds an ID, rejecting a zero version.
func New(months uint16, number uint32, version uint16) (ID, error) {
	if version == 0 {
		return ID{}, parseErr(fmt.Sprintf("%d/%d/%d", months, number, version), "", ErrVersionValue)
	}
	return ID{months: months, number: number, version: version}, nil
}

// MustParse is Parse for constants in tests and seed data.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Months returns the months elapsed since January of EpochYear.
func (id ID) Months() uint16 { return id.months }

// Number returns the sequence number within the month.
func (id ID) Number() uint32 { return id.number }

// Version returns the revision, starting at 1.
func (id ID) Version() uint16 { return id.version }

// Year returns the calendar year of the id.
func (id ID) Year() int { return int(id.months)/12 + EpochYear }

// Month returns the calendar month (1-12) of the id.
func (id ID) Month() int { return int(id.months)%12 + 1 }

// IsZero reports whether id is the zero value, which is never a valid id.
func (id ID) IsZero() bool { return id == ID{} }

// WithVersion returns a copy of id carrying version v.
func (id ID) WithVersion(v uint16) (ID, error) {
	return New(id.months, id.number, v)
}

// Compare orders ids by (months, number, version).
func (id ID) Compare(other ID) int {
	switch {
	case id.months != other.months:
		return cmpUint(uint64(id.months), uint64(other.months))
	case id.number != other.number:
		return cmpUint(uint64(id.number), uint64(other.number))
	default:
		return cmpUint(uint64(id.version), uint64(other.version))
	}
}

// Less reports whether id sorts before other.
func (id ID) Less(other ID) bool { return id.Compare(other) < 0 }

func cmpUint(a, b uint64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// String returns the canonical text form.
func (id ID) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%04d-%02d-%04d", id.Year(), id.Month(), id.number)
	if id.version > 1 {
		fmt.Fprintf(&b, "-v%d", id.version)
	}
	return b.String()
}

// Parse reads the canonical text form.
func Parse(s string) (ID, error) {
	parts := strings.Split(s, "-")
	if len(parts) < 3 || len(parts) > 4 {
		return ID{}, parseErr(s, "", ErrInvalidFormat)
	}

	yearPart := parts[0]
	if len(yearPart) != 4 {
		return ID{}, parseErr(s, yearPart, ErrYearFormat)
	}
	year, err := strconv.ParseUint(yearPart, 10, 16)
	if err != nil {
		return ID{}, parseErr(s, yearPart, ErrYearParse)
	}
	if year < EpochYear || year > maxYear {
		return ID{}, parseErr(s, yearPart, ErrYearRange)
	}

	monthPart := parts[1]
	if len(monthPart) != 2 {
		return ID{}, parseErr(s, monthPart, ErrMonthFormat)
	}
	month, err := strconv.ParseUint(monthPart, 10, 16)
	if err != nil {
		return ID{}, parseErr(s, monthPart, ErrMonthParse)
	}
	if month < 1 || month > 12 {
		return ID{}, parseErr(s, monthPart, ErrMonthRange)
	}

	number, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return ID{}, parseErr(s, parts[2], ErrNumberParse)
	}

	version := uint64(1)
	if len(parts) == 4 {
		versionPart := parts[3]
		if !strings.HasPrefix(versionPart, "v") {
			return ID{}, parseErr(s, versionPart, ErrVersionFormat)
		}
		version, err = strconv.ParseUint(versionPart[1:], 10, 16)
		if err != nil {
			return ID{}, parseErr(s, versionPart, ErrVersionParse)
		}
		if version == 0 {
			return ID{}, parseErr(s, versionPart, ErrVersionValue)
		}
	}

	return ID{
		months:  uint16((year-EpochYear)*12 + month - 1),
		number:  uint32(number),
		version: uint16(version),
	}, nil
}

// Bytes returns the fixed-width, order-preserving binary form.
func (id ID) Bytes() []byte {
	buf := make([]byte, Size)
	binary.BigEndian.PutUint16(buf[0:2], id.months)
	binary.BigEndian.PutUint32(buf[2:6], id.number)
	binary.BigEndian.PutUint16(buf[6:8], id.version)
	return buf
}

// FromBytes decodes the binary form produced by Bytes.
func FromBytes(b []byte) (ID, error) {
	if len(b) != Size {
		return ID{}, parseErr(fmt.Sprintf("%x", b), "", ErrBinaryLength)
	}
	return New(
		binary.BigEndian.Uint16(b[0:2]),
		binary.BigEndian.Uint32(b[2:6]),
		binary.BigEndian.Uint16(b[6:8]),
	)
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (id ID) MarshalBinary() ([]byte, error) { return id.Bytes(), nil }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (id *ID) UnmarshalBinary(b []byte) error {
	parsed, err := FromBytes(b)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler so ids work as JSON map keys.
func (id ID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
