package catalog

// Style is the display metadata keyed by plan identifier.
type Style struct {
	Icon  string
	Color string
}

var planStyles = map[string]Style{
	"basic":        {Icon: "zap", Color: "blue"},
	"premium":      {Icon: "star", Color: "purple"},
	"professional": {Icon: "crown", Color: "gold"},
}

// PlanStyle returns the icon and color for a plan. Unknown plans get no styling.
func PlanStyle(id string) Style {
	if s, ok := planStyles[id]; ok {
		return s
	}
	return Style{}
}
