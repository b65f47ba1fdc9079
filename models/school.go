package models

// University codes form a closed set; adding a campus means adding rows to
// all three maps plus an area file under config/areas.
var Universities = []string{"UNSW", "USYD", "UTS"}

// SchoolNames maps university codes to the canonical names stored in the
// schools table.
var SchoolNames = map[string]string{
	"UNSW": "University of New South Wales",
	"USYD": "University of Sydney",
	"UTS":  "University of Technology Sydney",
}

// SchoolAddresses maps university codes to the campus addresses used as
// transit destinations.
var SchoolAddresses = map[string]string{
	"UNSW": "University of New South Wales, Kensington NSW 2052, Australia",
	"USYD": "University of Sydney, Camperdown NSW 2006, Australia",
	"UTS":  "University of Technology Sydney, Ultimo NSW 2007, Australia",
}

// SchoolCode normalises either a code or a canonical long name to a code.
// Returns "" when the input matches no known school.
func SchoolCode(s string) string {
	if _, ok := SchoolNames[s]; ok {
		return s
	}
	for code, name := range SchoolNames {
		if name == s {
			return code
		}
	}
	return ""
}

// IsUniversity reports whether code is one of the known short codes.
func IsUniversity(code string) bool {
	_, ok := SchoolNames[code]
	return ok
}
