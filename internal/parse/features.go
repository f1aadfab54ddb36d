package parse

import "strings"

// setbackFeatureOrder fixes iteration order for the mutually-exclusive
// setback features, since Go maps have no stable order of their own.
var setbackFeatureOrder = []string{"struct", "pline", "roads", "rail", "trans", "water"}

var setbackFeatureDescriptions = map[string][]string{
	"struct": {"occupied dwellings", "buildings", "structures", "residences"},
	"pline":  {"property lines", "parcels", "subdivisions"},
	"roads":  {"roads"},
	"rail":   {"railroads"},
	"trans": {
		"overhead electrical transmission lines", "overhead utility lines",
		"utility easements", "utility lines", "power lines",
		"electrical lines", "transmission lines",
	},
	"water": {"lakes", "reservoirs", "streams", "rivers", "wetlands"},
}

var setbackFeatureIgnoreNames = map[string]string{
	"struct": "structures",
	"pline":  "property lines",
	"roads":  "roads",
	"rail":   "railroads",
	"trans":  "transmission lines",
	"water":  "wetlands",
}

var setbackFeatureClarifications = map[string]string{
	"roads": "Roads may also be labeled as rights-of-way. ",
}

// SetbackFeature carries the formatted keep/ignore phrases for one
// mutually-exclusive siting feature, ready to drop into a graph prompt.
type SetbackFeature struct {
	FeatureID             string
	Feature               string
	IgnoreFeatures        string
	FeatureClarifications string
}

// setbackFeatures returns the fixed list of setback features in
// declaration order, with their keep/ignore phrases already joined.
func setbackFeatures() []SetbackFeature {
	out := make([]SetbackFeature, 0, len(setbackFeatureOrder))
	for _, id := range setbackFeatureOrder {
		keep := joinKeywords(setbackFeatureDescriptions[id], ", and/or ")
		var ignoreWords []string
		for _, otherID := range setbackFeatureOrder {
			if otherID == id {
				continue
			}
			ignoreWords = append(ignoreWords, setbackFeatureIgnoreNames[otherID])
		}
		ignore := joinKeywords(ignoreWords, ", and ")
		out = append(out, SetbackFeature{
			FeatureID:             id,
			Feature:               keep,
			IgnoreFeatures:        ignore,
			FeatureClarifications: setbackFeatureClarifications[id],
		})
	}
	return out
}

// joinKeywords joins a list of phrases with commas, using finalSep before
// the last item ("a, b, and/or c").
func joinKeywords(keywords []string, finalSep string) string {
	switch len(keywords) {
	case 0:
		return ""
	case 1:
		return keywords[0]
	}
	commaSeparated := strings.Join(keywords[:len(keywords)-1], ", ")
	return commaSeparated + finalSep + keywords[len(keywords)-1]
}

// extraRestrictionOrder and extraRestrictionText pair each non-setback
// restriction key with the human phrase used in its graph prompts, in a
// fixed order.
var extraRestrictionOrder = []string{"noise", "max height", "min lot size", "shadow flicker", "density"}

var extraRestrictionText = map[string]string{
	"noise":          "maximum noise level",
	"max height":     "maximum turbine height",
	"min lot size":   "minimum lot size",
	"shadow flicker": "maximum shadow flicker",
	"density":        "maximum turbine spacing",
}
