package posture

const (
	ColorCentered  = "#00FF00"
	ColorOffCenter = "#FF0000"
)

// Guide is the framing rectangle a presentation layer draws over a 640x480 preview.
type Guide struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Color  string `json:"color"`
}

// GuideFor returns the overlay for a sample; ok is false when no face was seen
// and nothing should be drawn.
func GuideFor(hasFace, centered bool) (g Guide, ok bool) {
	if !hasFace {
		return Guide{}, false
	}
	g = Guide{X: 100, Y: 50, Width: 440, Height: 380, Color: ColorOffCenter}
	if centered {
		g.Color = ColorCentered
	}
	return g, true
}
