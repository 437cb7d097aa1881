package fits

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardBuilders(t *testing.T) {
	tests := []struct {
		name string
		card string
		want string
	}{
		{"logical", cardLogical("SIMPLE", true, ""), "SIMPLE  =                    T"},
		{"int", cardInt("NAXIS", 3, ""), "NAXIS   =                    3"},
		{"float", cardFloat("CDELT1", -0.5, ""), "CDELT1  =                 -0.5"},
		{"float integral", cardFloat("CRPIX1", 4, ""), "CRPIX1  =                   4."},
		{"string", cardString("CTYPE1", "RA---SIN", ""), "CTYPE1  = 'RA---SIN'"},
		{"bare", cardBare("END", ""), "END"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Len(t, tt.card, CardSize)
			assert.Equal(t, tt.want, strings.TrimRight(tt.card, " "))
		})
	}
}

func TestCardValue(t *testing.T) {
	t.Run("comment stripped", func(t *testing.T) {
		card := cardInt("BITPIX", -32, "array data type")
		v, err := cardValue(card)
		require.NoError(t, err)
		assert.Equal(t, "-32", v)
	})

	t.Run("slash inside string kept", func(t *testing.T) {
		card := cardString("BUNIT", "Jy/beam", "")
		v, err := cardValue(card)
		require.NoError(t, err)
		assert.Equal(t, "Jy/beam", parseStringValue(v))
	})

	t.Run("missing indicator", func(t *testing.T) {
		_, err := cardValue(cardBare("HISTORY", "whatever"))
		assert.Error(t, err)
	})
}

func TestParseFloatValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1.5", 1.5},
		{"-3E2", -300},
		{"1.25D2", 125}, // Fortran exponent marker
	}
	for _, tt := range tests {
		v, err := parseFloatValue(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, v)
	}

	_, err := parseFloatValue("abc")
	assert.Error(t, err)
}

func TestHeaderEncodeParseRoundTrip(t *testing.T) {
	in := &Header{
		Bitpix: -32,
		Axes: []Axis{
			{Size: 100, Ctype: "RA---SIN", Crpix: 50, Crval: 120.5, Cdelt: -0.01, Cunit: "deg"},
			{Size: 80, Ctype: "DEC--SIN", Crpix: 40, Crval: -30.25, Cdelt: 0.01, Cunit: "deg"},
			{Size: 64, Ctype: "FREQ", Crpix: 1, Crval: 1.42e9, Cdelt: 1e4, Cunit: "Hz"},
		},
		PC: [][]float64{
			{1, 0.25, 0},
			{-0.25, 1, 0},
			{0, 0, 1},
		},
	}
	in.AddHistory("subfits test header")

	encoded := in.Encode()
	require.Zero(t, len(encoded)%BlockSize, "header must be block aligned")

	out, dataOff, err := ParseHeader(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, int64(len(encoded)), dataOff)

	assert.Equal(t, in.Bitpix, out.Bitpix)
	assert.Equal(t, in.Axes, out.Axes)
	assert.Equal(t, in.PC, out.PC)
	assert.Equal(t, in.History, out.History)
}

func TestHeaderLongHistorySpansCards(t *testing.T) {
	// A provenance line with full paths easily exceeds one card's text
	// field; the tail must continue on further cards, not vanish.
	text := strings.Repeat("0123456789", 20)
	in := &Header{Bitpix: 8, Axes: []Axis{{Size: 2, Cdelt: 1}}}
	in.AddHistory(text)

	out, _, err := ParseHeader(bytes.NewReader(in.Encode()))
	require.NoError(t, err)

	require.Len(t, out.History, 3)
	assert.Equal(t, text, strings.Join(out.History, ""))
}

func TestHeaderDefaults(t *testing.T) {
	// A minimal header with no WCS cards: CDELT defaults to 1.
	in := &Header{
		Bitpix: 16,
		Axes:   []Axis{{Size: 10, Cdelt: 1}, {Size: 5, Cdelt: 1}},
	}
	out, _, err := ParseHeader(bytes.NewReader(in.Encode()))
	require.NoError(t, err)
	require.Equal(t, 2, out.NAxis())
	assert.Equal(t, float64(1), out.Axes[0].Cdelt)
	assert.Nil(t, out.PC)
}

func TestParseHeaderRejects(t *testing.T) {
	valid := (&Header{Bitpix: 8, Axes: []Axis{{Size: 4, Cdelt: 1}}}).Encode()

	t.Run("missing SIMPLE", func(t *testing.T) {
		bad := bytes.Clone(valid)
		copy(bad[0:], "BADKEY  =                    T")
		_, _, err := ParseHeader(bytes.NewReader(bad))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SIMPLE")
	})

	t.Run("bad BITPIX", func(t *testing.T) {
		bad := bytes.Clone(valid)
		copy(bad[CardSize:], "BITPIX  =                   24")
		_, _, err := ParseHeader(bytes.NewReader(bad))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BITPIX")
	})

	t.Run("truncated header", func(t *testing.T) {
		_, _, err := ParseHeader(bytes.NewReader(valid[:100]))
		assert.Error(t, err)
	})
}

func TestHeaderSizes(t *testing.T) {
	h := &Header{
		Bitpix: -32,
		Axes:   []Axis{{Size: 6, Cdelt: 1}, {Size: 5, Cdelt: 1}, {Size: 4, Cdelt: 1}},
	}
	assert.Equal(t, []int64{6, 5, 4}, h.Shape())
	assert.Equal(t, int64(4), h.ElemSize())

	size, err := h.DataSize()
	require.NoError(t, err)
	assert.Equal(t, int64(6*5*4*4), size)
}

func TestHeaderClone(t *testing.T) {
	h := &Header{
		Bitpix: -64,
		Axes:   []Axis{{Size: 3, Cdelt: 1}},
		PC:     [][]float64{{1}},
	}
	c := h.Clone()
	c.Axes[0].Size = 99
	c.PC[0][0] = 7

	assert.Equal(t, int64(3), h.Axes[0].Size)
	assert.Equal(t, float64(1), h.PC[0][0])
}
