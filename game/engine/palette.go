package engine

// Color is one entry of the board palette
type Color struct {
	Index int      `json:"index"`
	Name  string   `json:"name"`
	RGB   [3]uint8 `json:"RGB"`
}

// palette is the fixed, ordered superset every board draws its colors from.
var palette = []Color{
	{Index: 0, Name: "RED", RGB: [3]uint8{255, 0, 0}},
	{Index: 1, Name: "GREEN", RGB: [3]uint8{0, 255, 0}},
	{Index: 2, Name: "BLUE", RGB: [3]uint8{0, 0, 255}},
	{Index: 3, Name: "YELLOW", RGB: [3]uint8{255, 255, 0}},
	{Index: 4, Name: "ORANGE", RGB: [3]uint8{255, 128, 0}},
	{Index: 5, Name: "PURPLE", RGB: [3]uint8{128, 0, 255}},
	{Index: 6, Name: "CYAN", RGB: [3]uint8{0, 255, 255}},
	{Index: 7, Name: "MAGENTA", RGB: [3]uint8{255, 0, 255}},
}

// PaletteSize is the number of predefined colors.
func PaletteSize() int {
	return len(palette)
}

// ColorPalette returns the first n colors of the fixed palette. Values of n
// beyond the palette size are clamped; callers are expected to keep n within
// [MinNumColors, MaxNumColors].
func ColorPalette(n int) []Color {
	if n < 0 {
		n = 0
	}
	if n > len(palette) {
		n = len(palette)
	}
	result := make([]Color, n)
	copy(result, palette[:n])
	return result
}

// ColorName returns the palette name for a color index, or "UNKNOWN".
func ColorName(index int) string {
	if index < 0 || index >= len(palette) {
		return "UNKNOWN"
	}
	return palette[index].Name
}
