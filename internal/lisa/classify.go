package lisa

// Class is the LISA cluster category of a unit.
type Class int

// Cluster categories. The codes and labels match the columns consumers of
// the output files already parse, including the inconsistent spacing.
const (
	NonSig Class = iota
	Hotspot
	Coldspot
	OutlierLowHigh
	OutlierHighLow
)

var classLabels = [...]string{
	"Non-sig",
	"Hotspot (High-High)",
	"Coldspot(Low-Low)",
	"outlier(Low-High)",
	"outlier(High-Low)",
}

func (c Class) String() string {
	if c < NonSig || int(c) >= len(classLabels) {
		return "Non-sig"
	}
	return classLabels[c]
}

// classify maps a quadrant and pseudo p-value to a cluster category.
// Only significant units are labeled; islands (quadrant 0) never are.
func classify(quadrant int, p, alpha float64) Class {
	if p >= alpha {
		return NonSig
	}
	switch quadrant {
	case 1:
		return Hotspot
	case 3:
		return Coldspot
	case 2:
		return OutlierLowHigh
	case 4:
		return OutlierHighLow
	default:
		return NonSig
	}
}
