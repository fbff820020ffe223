package model

import "strings"

type MarkerKind string

const (
	MarkerText   MarkerKind = "text"
	MarkerPortal MarkerKind = "portal"
)

// ParseMarkerKind maps unknown input to MarkerText.
func ParseMarkerKind(s string) MarkerKind {
	if MarkerKind(strings.ToLower(strings.TrimSpace(s))) == MarkerPortal {
		return MarkerPortal
	}
	return MarkerText
}

type MarkerColor string

const (
	ColorBlue   MarkerColor = "blue"
	ColorRed    MarkerColor = "red"
	ColorGreen  MarkerColor = "green"
	ColorYellow MarkerColor = "yellow"
	ColorOrange MarkerColor = "orange"
	ColorPurple MarkerColor = "purple"
	ColorPink   MarkerColor = "pink"
	ColorCyan   MarkerColor = "cyan"
	ColorWhite  MarkerColor = "white"

	DefaultMarkerColor = ColorBlue
)

// MarkerColors lists the palette in display order.
var MarkerColors = []MarkerColor{
	ColorBlue, ColorRed, ColorGreen, ColorYellow, ColorOrange,
	ColorPurple, ColorPink, ColorCyan, ColorWhite,
}

var markerColorHex = map[MarkerColor]string{
	ColorBlue:   "#0d6efd",
	ColorRed:    "#dc3545",
	ColorGreen:  "#198754",
	ColorYellow: "#ffc107",
	ColorOrange: "#fd7e14",
	ColorPurple: "#6f42c1",
	ColorPink:   "#d63384",
	ColorCyan:   "#0dcaf0",
	ColorWhite:  "#ffffff",
}

// ParseMarkerColor falls back to DefaultMarkerColor for anything outside the palette.
func ParseMarkerColor(s string) MarkerColor {
	c := MarkerColor(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := markerColorHex[c]; ok {
		return c
	}
	return DefaultMarkerColor
}

func (c MarkerColor) Hex() string {
	if hex, ok := markerColorHex[c]; ok {
		return hex
	}
	return markerColorHex[DefaultMarkerColor]
}
