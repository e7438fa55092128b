package entityid_test

import (
	"bytes"
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTrip(t *testing.T) {
	for _, s := range []string{"1970-01-0001", "2025-04-0001", "2025-12-0042-v3", "2099-07-123456", "7430-12-0001-v65535"} {
		id, err := entityid.Parse(s)
		require.NoError(t, err, s)
		require.Equal(t, s, id.String())
	}
}

func TestParse_Fields(t *testing.T) {
	id, err := entityid.Parse("2025-04-0007-v2")
	require.NoError(t, err)
	require.Equal(t, uint16((2025-1970)*12+3), id.Months())
	require.Equal(t, uint32(7), id.Number())
	require.Equal(t, uint16(2), id.Version())
	require.Equal(t, 2025, id.Year())
	require.Equal(t, 4, id.Month())
}

func TestParse_VersionOneOmitted(t *testing.T) {
	id, err := entityid.Parse("2025-04-0001-v1")
	require.NoError(t, err)
	require.Equal(t, "2025-04-0001", id.String())
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		in   string
		kind error
	}{
		{"2025-04", entityid.ErrInvalidFormat},
		{"2025-04-0001-v2-x", entityid.ErrInvalidFormat},
		{"", entityid.ErrInvalidFormat},
		{"25-04-0001", entityid.ErrYearFormat},
		{"20x5-04-0001", entityid.ErrYearParse},
		{"1969-04-0001", entityid.ErrYearRange},
		{"2025-4-0001", entityid.ErrMonthFormat},
		{"2025-13-0001", entityid.ErrMonthRange},
		{"2025-00-0001", entityid.ErrMonthRange},
		{"2025-0a-0001", entityid.ErrMonthParse},
		{"2025-04-abcd", entityid.ErrNumberParse},
		{"2025-04-", entityid.ErrNumberParse},
		{"2025-04-0001-2", entityid.ErrVersionFormat},
		{"2025-04-0001-v0", entityid.ErrVersionValue},
		{"2025-04-0001-vx", entityid.ErrVersionParse},
	}
	for _, tc := range cases {
		_, err := entityid.Parse(tc.in)
		require.ErrorIs(t, err, tc.kind, tc.in)
		require.ErrorIs(t, err, entityid.ErrInvalid, tc.in)
	}
}

func TestNew_RejectsZeroVersion(t *testing.T) {
	_, err := entityid.New(10, 1, 0)
	require.ErrorIs(t, err, entityid.ErrVersionValue)

	id, err := entityid.New(10, 1, 1)
	require.NoError(t, err)
	require.Equal(t, "1970-11-0001", id.String())
}

func TestBinary_RoundTripAndLength(t *testing.T) {
	id := entityid.MustParse("2025-04-0042-v7")
	b := id.Bytes()
	require.Len(t, b, entityid.Size)

	back, err := entityid.FromBytes(b)
	require.NoError(t, err)
	require.Equal(t, id, back)

	_, err = entityid.FromBytes(b[:7])
	require.ErrorIs(t, err, entityid.ErrBinaryLength)

	_, err = entityid.FromBytes(make([]byte, entityid.Size))
	require.ErrorIs(t, err, entityid.ErrVersionValue)
}

func TestBinary_OrderMatchesCompare(t *testing.T) {
	ids := []entityid.ID{
		entityid.MustParse("2025-04-0002"),
		entityid.MustParse("2024-12-0300"),
		entityid.MustParse("2025-04-0001-v2"),
		entityid.MustParse("2025-04-0001"),
		entityid.MustParse("2025-05-0001"),
		entityid.MustParse("2025-04-0256"),
	}

	byCompare := append([]entityid.ID(nil), ids...)
	sort.Slice(byCompare, func(i, j int) bool { return byCompare[i].Less(byCompare[j]) })

	byBytes := append([]entityid.ID(nil), ids...)
	sort.Slice(byBytes, func(i, j int) bool { return bytes.Compare(byBytes[i].Bytes(), byBytes[j].Bytes()) < 0 })

	require.Equal(t, byCompare, byBytes)
	require.Equal(t, "2024-12-0300", byCompare[0].String())
	require.Equal(t, "2025-05-0001", byCompare[len(byCompare)-1].String())
}

// Field values either side of each byte boundary, plus the extremes.
var (
	sweepMonths   = []uint16{0, 1, 0xFE, 0xFF, 0x100, 0x101, 0xFFFF}
	sweepNumbers  = []uint32{0, 1, 0xFF, 0x100, 9999, 10000, 0xFFFF, 0x10000, 0xFFFFFF, 0x1000000, math.MaxUint32}
	sweepVersions = []uint16{1, 2, 0xFF, 0x100, math.MaxUint16}
)

// lastTextMonth is December of the last year with a four-digit rendering
// that Parse accepts.
const lastTextMonth = (7430-entityid.EpochYear)*12 + 11

func sweepIDs(t *testing.T) []entityid.ID {
	t.Helper()
	var ids []entityid.ID
	for _, m := range append(sweepMonths, lastTextMonth) {
		for _, n := range sweepNumbers {
			for _, v := range sweepVersions {
				id, err := entityid.New(m, n, v)
				require.NoError(t, err)
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func TestSweep_RoundTrip(t *testing.T) {
	for _, id := range sweepIDs(t) {
		back, err := entityid.FromBytes(id.Bytes())
		require.NoError(t, err, "%d/%d/%d", id.Months(), id.Number(), id.Version())
		require.Equal(t, id, back)

		if id.Months() > lastTextMonth {
			_, err := entityid.Parse(id.String())
			require.ErrorIs(t, err, entityid.ErrYearRange, id.String())
			continue
		}
		parsed, err := entityid.Parse(id.String())
		require.NoError(t, err, id.String())
		require.Equal(t, id, parsed, id.String())
	}
}

func TestSweep_ByteOrderMatchesCompare(t *testing.T) {
	ids := sweepIDs(t)
	for _, a := range ids {
		for _, b := range ids {
			require.Equal(t, a.Compare(b), bytes.Compare(a.Bytes(), b.Bytes()), "%s vs %s", a, b)
		}
	}

	r := rand.New(rand.NewPCG(2025, 4))
	for range 5000 {
		a, err := entityid.New(uint16(r.Uint32()), r.Uint32(), uint16(r.Uint32())|1)
		require.NoError(t, err)
		b, err := entityid.New(uint16(r.Uint32()), r.Uint32(), uint16(r.Uint32())|1)
		require.NoError(t, err)
		require.Equal(t, a.Compare(b), bytes.Compare(a.Bytes(), b.Bytes()), "%s vs %s", a, b)
	}
}

func TestText_Marshalling(t *testing.T) {
	var id entityid.ID
	require.NoError(t, id.UnmarshalText([]byte("2025-04-0003")))
	text, err := id.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "2025-04-0003", string(text))
	require.Error(t, id.UnmarshalText([]byte("nope")))
}
