// Package fits implements the container I/O layer for single-HDU FITS
// files: header card parsing and encoding, memory-mapped strided reads
// of the primary data array, and exclusive-create append-only writing.
//
// Only the subset of the FITS standard needed for subcube extraction is
// supported: one primary header-data unit, an uncompressed N-dimensional
// data array, and a linear per-axis coordinate description (CRPIXn,
// CRVALn, CDELTn, optional PCi_j rotation matrix). Extensions and tile
// compression are out of scope.
package fits

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// BlockSize is the FITS record size. Headers and data units are
	// both padded to a whole number of blocks.
	BlockSize = 2880

	// CardSize is the fixed length of one header card image.
	CardSize = 80

	cardsPerBlock = BlockSize / CardSize
)

// Axis holds the per-axis metadata of the primary array, in declared
// order (axis 1 first). Absent cards take the FITS defaults: CRPIX and
// CRVAL default to 0, CDELT to 1.
type Axis struct {
	Size  int64
	Ctype string
	Crpix float64
	Crval float64
	Cdelt float64
	Cunit string
}

// Header is the parsed primary header. Per-axis geometry is modelled as
// an ordered slice of Axis records rather than loose suffixed keys, so
// axis removal is a slice splice. Cards the extractor does not
// interpret are preserved verbatim, in order, in Extra.
type Header struct {
	Bitpix int
	Axes   []Axis

	// PC is the linear-transform (rotation/correlation) matrix, row
	// i column j holding PCi_j. Nil when the header carries no PC
	// cards, which means identity.
	PC [][]float64

	// Extra holds raw 80-character card images that are copied through
	// to any derived header unchanged.
	Extra []string

	// History holds HISTORY card texts, appended after Extra on encode.
	History []string
}

// NAxis returns the number of axes of the primary array.
func (h *Header) NAxis() int { return len(h.Axes) }

// Shape returns the axis sizes in declared order (NAXIS1 first).
func (h *Header) Shape() []int64 {
	shape := make([]int64, len(h.Axes))
	for i, ax := range h.Axes {
		shape[i] = ax.Size
	}
	return shape
}

// ElemSize returns the size in bytes of one array element.
func (h *Header) ElemSize() int64 {
	b := int64(h.Bitpix)
	if b < 0 {
		b = -b
	}
	return b / 8
}

// DataSize returns the unpadded byte length of the data unit.
func (h *Header) DataSize() (int64, error) {
	total := h.ElemSize()
	for i, ax := range h.Axes {
		var err error
		total, err = safeMul(total, ax.Size)
		if err != nil {
			return 0, fmt.Errorf("data size overflow at axis %d: %w", i+1, err)
		}
	}
	return total, nil
}

// AddHistory appends a HISTORY card text to the header.
func (h *Header) AddHistory(text string) {
	h.History = append(h.History, text)
}

// Clone returns a deep copy of the header.
func (h *Header) Clone() *Header {
	out := &Header{
		Bitpix:  h.Bitpix,
		Axes:    append([]Axis(nil), h.Axes...),
		Extra:   append([]string(nil), h.Extra...),
		History: append([]string(nil), h.History...),
	}
	if h.PC != nil {
		out.PC = make([][]float64, len(h.PC))
		for i, row := range h.PC {
			out.PC[i] = append([]float64(nil), row...)
		}
	}
	return out
}

// validBitpix reports whether b is one of the BITPIX values the FITS
// standard defines.
func validBitpix(b int) bool {
	switch b {
	case 8, 16, 32, 64, -32, -64:
		return true
	}
	return false
}

// ParseHeader reads header blocks from r starting at offset 0 until the
// END card, returning the parsed header and the byte offset of the data
// unit (always a multiple of BlockSize).
func ParseHeader(r io.ReaderAt) (*Header, int64, error) {
	h := &Header{}
	var (
		offset     int64
		naxis      = -1
		sawSimple  bool
		sawBitpix  bool
		pcEntries  = map[[2]int]float64{}
		block      = make([]byte, BlockSize)
		endReached bool
	)

	setAxis := func(n int, f func(ax *Axis)) {
		for len(h.Axes) < n {
			h.Axes = append(h.Axes, Axis{Cdelt: 1})
		}
		f(&h.Axes[n-1])
	}

	for !endReached {
		if _, err := r.ReadAt(block, offset); err != nil {
			return nil, 0, fmt.Errorf("header block read at %d: %w", offset, err)
		}
		offset += BlockSize

		for c := 0; c < cardsPerBlock; c++ {
			card := string(block[c*CardSize : (c+1)*CardSize])
			key := strings.TrimRight(card[:8], " ")

			if key == "END" {
				endReached = true
				break
			}
			if key == "" || key == "COMMENT" {
				if key == "COMMENT" {
					h.Extra = append(h.Extra, card)
				}
				continue
			}
			if key == "HISTORY" {
				h.History = append(h.History, strings.TrimRight(card[8:], " "))
				continue
			}

			if err := parseHeaderCard(h, card, key, &naxis,
				&sawSimple, &sawBitpix, pcEntries, setAxis); err != nil {
				return nil, 0, err
			}
		}
	}

	if !sawSimple {
		return nil, 0, fmt.Errorf("not a FITS file: SIMPLE card missing")
	}
	if !sawBitpix {
		return nil, 0, fmt.Errorf("malformed header: BITPIX card missing")
	}
	if naxis < 1 {
		return nil, 0, fmt.Errorf("malformed header: NAXIS %d, need at least 1 axis", naxis)
	}
	for len(h.Axes) < naxis {
		h.Axes = append(h.Axes, Axis{Cdelt: 1})
	}
	h.Axes = h.Axes[:naxis]
	for i := range h.Axes {
		if h.Axes[i].Size < 1 {
			return nil, 0, fmt.Errorf("malformed header: NAXIS%d missing or non-positive", i+1)
		}
	}

	if len(pcEntries) > 0 {
		h.PC = identityMatrix(naxis)
		for ij, v := range pcEntries {
			i, j := ij[0], ij[1]
			if i < 1 || i > naxis || j < 1 || j > naxis {
				return nil, 0, fmt.Errorf("malformed header: PC%d_%d outside %d axes", i, j, naxis)
			}
			h.PC[i-1][j-1] = v
		}
	}

	return h, offset, nil
}

// parseHeaderCard interprets one keyword card. Unrecognized cards are
// preserved verbatim in Extra.
//
//nolint:gocognit // flat keyword dispatch, one branch per card family
func parseHeaderCard(
	h *Header,
	card, key string,
	naxis *int,
	sawSimple, sawBitpix *bool,
	pcEntries map[[2]int]float64,
	setAxis func(n int, f func(ax *Axis)),
) error {
	value, err := cardValue(card)
	if err != nil {
		return fmt.Errorf("card %q: %w", key, err)
	}

	switch {
	case key == "SIMPLE":
		if value != "T" {
			return fmt.Errorf("not a standard FITS file: SIMPLE = %s", value)
		}
		*sawSimple = true

	case key == "BITPIX":
		b, err := strconv.Atoi(value)
		if err != nil || !validBitpix(b) {
			return fmt.Errorf("unsupported BITPIX value %q", value)
		}
		h.Bitpix = b
		*sawBitpix = true

	case key == "NAXIS":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("malformed NAXIS value %q", value)
		}
		*naxis = n

	case hasAxisSuffix(key, "NAXIS"):
		n, _ := axisNumber(key, "NAXIS")
		size, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("malformed NAXIS%d value %q", n, value)
		}
		setAxis(n, func(ax *Axis) { ax.Size = size })

	case hasAxisSuffix(key, "CTYPE"):
		n, _ := axisNumber(key, "CTYPE")
		setAxis(n, func(ax *Axis) { ax.Ctype = parseStringValue(value) })

	case hasAxisSuffix(key, "CRPIX"):
		n, _ := axisNumber(key, "CRPIX")
		v, err := parseFloatValue(value)
		if err != nil {
			return fmt.Errorf("malformed CRPIX%d value %q", n, value)
		}
		setAxis(n, func(ax *Axis) { ax.Crpix = v })

	case hasAxisSuffix(key, "CRVAL"):
		n, _ := axisNumber(key, "CRVAL")
		v, err := parseFloatValue(value)
		if err != nil {
			return fmt.Errorf("malformed CRVAL%d value %q", n, value)
		}
		setAxis(n, func(ax *Axis) { ax.Crval = v })

	case hasAxisSuffix(key, "CDELT"):
		n, _ := axisNumber(key, "CDELT")
		v, err := parseFloatValue(value)
		if err != nil {
			return fmt.Errorf("malformed CDELT%d value %q", n, value)
		}
		setAxis(n, func(ax *Axis) { ax.Cdelt = v })

	case hasAxisSuffix(key, "CUNIT"):
		n, _ := axisNumber(key, "CUNIT")
		setAxis(n, func(ax *Axis) { ax.Cunit = parseStringValue(value) })

	case strings.HasPrefix(key, "PC"):
		i, j, ok := pcIndices(key)
		if !ok {
			h.Extra = append(h.Extra, card)
			break
		}
		v, err := parseFloatValue(value)
		if err != nil {
			return fmt.Errorf("malformed %s value %q", key, value)
		}
		pcEntries[[2]int{i, j}] = v

	default:
		h.Extra = append(h.Extra, card)
	}

	return nil
}

// Encode serializes the header to one or more space-padded blocks,
// ending with the END card.
func (h *Header) Encode() []byte {
	cards := make([]string, 0, 2*cardsPerBlock)

	cards = append(cards,
		cardLogical("SIMPLE", true, "conforms to FITS standard"),
		cardInt("BITPIX", int64(h.Bitpix), "array data type"),
		cardInt("NAXIS", int64(len(h.Axes)), "number of array dimensions"),
	)
	for i, ax := range h.Axes {
		cards = append(cards, cardInt(fmt.Sprintf("NAXIS%d", i+1), ax.Size, ""))
	}
	for i, ax := range h.Axes {
		n := i + 1
		if ax.Ctype != "" {
			cards = append(cards, cardString(fmt.Sprintf("CTYPE%d", n), ax.Ctype, ""))
		}
		cards = append(cards,
			cardFloat(fmt.Sprintf("CRPIX%d", n), ax.Crpix, ""),
			cardFloat(fmt.Sprintf("CRVAL%d", n), ax.Crval, ""),
			cardFloat(fmt.Sprintf("CDELT%d", n), ax.Cdelt, ""),
		)
		if ax.Cunit != "" {
			cards = append(cards, cardString(fmt.Sprintf("CUNIT%d", n), ax.Cunit, ""))
		}
	}
	for i, row := range h.PC {
		for j, v := range row {
			cards = append(cards, cardFloat(fmt.Sprintf("PC%d_%d", i+1, j+1), v, ""))
		}
	}
	cards = append(cards, h.Extra...)
	for _, text := range h.History {
		for _, line := range splitCardText(text) {
			cards = append(cards, cardBare("HISTORY", line))
		}
	}
	cards = append(cards, cardBare("END", ""))

	nblocks := (len(cards) + cardsPerBlock - 1) / cardsPerBlock
	buf := make([]byte, nblocks*BlockSize)
	for i := range buf {
		buf[i] = ' '
	}
	for i, c := range cards {
		copy(buf[i*CardSize:], c)
	}
	return buf
}

// cardValue extracts the value field of a keyword card, stripping any
// trailing comment. The returned string is trimmed but not de-quoted.
func cardValue(card string) (string, error) {
	if len(card) < 10 || card[8:10] != "= " {
		return "", fmt.Errorf("missing value indicator")
	}
	rest := card[10:]

	// Find the comment separator, skipping slashes inside a quoted
	// string. Quotes are escaped by doubling.
	inString := false
	end := len(rest)
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if c == '\'' {
			inString = !inString
		} else if c == '/' && !inString {
			end = i
			break
		}
	}

	value := strings.TrimSpace(rest[:end])
	if value == "" {
		return "", fmt.Errorf("empty value field")
	}
	return value, nil
}

// parseStringValue removes the surrounding quotes of a FITS string
// value and un-doubles embedded quotes.
func parseStringValue(value string) string {
	if len(value) >= 2 && value[0] == '\'' && value[len(value)-1] == '\'' {
		value = value[1 : len(value)-1]
	}
	return strings.TrimRight(strings.ReplaceAll(value, "''", "'"), " ")
}

// parseFloatValue parses a FITS real value, accepting the Fortran 'D'
// exponent marker.
func parseFloatValue(value string) (float64, error) {
	value = strings.ReplaceAll(strings.ReplaceAll(value, "D", "E"), "d", "e")
	return strconv.ParseFloat(value, 64)
}

// hasAxisSuffix reports whether key is prefix followed by an axis
// number (e.g. CRPIX3).
func hasAxisSuffix(key, prefix string) bool {
	_, ok := axisNumber(key, prefix)
	return ok
}

// axisNumber extracts the 1-based axis number from a suffixed keyword.
func axisNumber(key, prefix string) (int, bool) {
	if !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(key[len(prefix):])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// pcIndices extracts (i, j) from a PCi_j keyword.
func pcIndices(key string) (int, int, bool) {
	rest := key[2:]
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	i, err1 := strconv.Atoi(parts[0])
	j, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || i < 1 || j < 1 {
		return 0, 0, false
	}
	return i, j, true
}

func identityMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	return m
}

// Fixed-format card builders. Keyword occupies columns 1-8, the value
// indicator "= " columns 9-10, numeric and logical values are right
// justified in columns 11-30.

func cardLogical(key string, v bool, comment string) string {
	val := "F"
	if v {
		val = "T"
	}
	return finishCard(fmt.Sprintf("%-8s= %20s", key, val), comment)
}

func cardInt(key string, v int64, comment string) string {
	return finishCard(fmt.Sprintf("%-8s= %20d", key, v), comment)
}

func cardFloat(key string, v float64, comment string) string {
	return finishCard(fmt.Sprintf("%-8s= %20s", key, formatFloat(v)), comment)
}

func cardString(key, v, comment string) string {
	quoted := "'" + strings.ReplaceAll(v, "'", "''") + "'"
	return finishCard(fmt.Sprintf("%-8s= %-20s", key, quoted), comment)
}

func cardBare(key, text string) string {
	return finishCard(fmt.Sprintf("%-8s%s", key, text), "")
}

// splitCardText breaks text into pieces that fit the text field of a
// commentary card (columns 9-80), so long HISTORY entries continue on
// further cards instead of losing their tail.
func splitCardText(text string) []string {
	const width = CardSize - 8
	if len(text) <= width {
		return []string{text}
	}
	var parts []string
	for len(text) > width {
		parts = append(parts, text[:width])
		text = text[width:]
	}
	return append(parts, text)
}

func finishCard(body, comment string) string {
	if comment != "" {
		body += " / " + comment
	}
	if len(body) > CardSize {
		body = body[:CardSize]
	}
	return body + strings.Repeat(" ", CardSize-len(body))
}

// formatFloat renders a float in the FITS fixed format: upper-case
// exponent, always carrying a decimal point or exponent so the value
// reads back as a real.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'G', -1, 64)
	if !strings.ContainsAny(s, ".E") {
		s += "."
	}
	return s
}
