package names

import "strings"

// surnameConnectors are absorbed into the surname when scanning a full name
// from the right: "Maria de la Cruz" -> first "Maria", last "de la Cruz".
var surnameConnectors = map[string]bool{
	"de": true, "del": true, "la": true, "las": true, "los": true,
	"da": true, "das": true, "dos": true, "di": true, "van": true,
	"von": true, "mc": true, "san": true, "santa": true, "y": true,
}

// commonGivenNames covers frequent Spanish compound given names. A
// two-token name whose second token appears here is a double first name,
// not first+last ("Maria Fernanda" has no surname).
var commonGivenNames = map[string]bool{
	"alejandra": true, "andrea": true, "antonio": true, "belen": true,
	"carmen": true, "cristina": true, "elena": true, "fernanda": true,
	"gabriela": true, "guadalupe": true, "isabel": true, "jose": true,
	"juan": true, "lucia": true, "luis": true, "manuel": true,
	"maria": true, "mario": true, "paula": true, "pablo": true,
	"sofia": true, "valentina": true, "victoria": true, "ximena": true,
}

// Split divides a full name into first and last name. The surname is built
// by taking the final token and absorbing any connector tokens immediately
// before it; everything remaining is the given name.
func Split(full string) (first, last string) {
	tokens := strings.Fields(strings.TrimSpace(full))
	switch len(tokens) {
	case 0:
		return "", ""
	case 1:
		return tokens[0], ""
	case 2:
		if commonGivenNames[foldForCompare(tokens[1])] {
			return tokens[0] + " " + tokens[1], ""
		}
		return tokens[0], tokens[1]
	}

	// Scan from the right: the last token is surname; preceding connector
	// tokens belong to it.
	cut := len(tokens) - 1
	for cut > 1 && surnameConnectors[foldForCompare(tokens[cut-1])] {
		cut--
	}
	return strings.Join(tokens[:cut], " "), strings.Join(tokens[cut:], " ")
}
