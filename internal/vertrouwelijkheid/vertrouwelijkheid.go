// Package vertrouwelijkheid holds the ordered confidentiality levels of ZGW objects.
package vertrouwelijkheid

const (
	Openbaar          = "openbaar"
	BeperktOpenbaar   = "beperkt_openbaar"
	Intern            = "intern"
	Zaakvertrouwelijk = "zaakvertrouwelijk"
	Vertrouwelijk     = "vertrouwelijk"
	Confidentieel     = "confidentieel"
	Geheim            = "geheim"
	ZeerGeheim        = "zeer_geheim"
)

// Choices is ordered from least to most confidential.
var Choices = []string{
	Openbaar, BeperktOpenbaar, Intern, Zaakvertrouwelijk,
	Vertrouwelijk, Confidentieel, Geheim, ZeerGeheim,
}

// Values is Choices as []interface{} for ozzo's validation.In.
func Values() []interface{} {
	out := make([]interface{}, len(Choices))
	for i, c := range Choices {
		out[i] = c
	}
	return out
}

// Rank returns the position of a level, or -1 when unknown.
func Rank(a string) int {
	for i, c := range Choices {
		if c == a {
			return i
		}
	}
	return -1
}

func Valid(a string) bool { return Rank(a) >= 0 }

// AtMost reports whether a is not more confidential than max.
func AtMost(a, max string) bool {
	ra, rm := Rank(a), Rank(max)
	return ra >= 0 && rm >= 0 && ra <= rm
}
