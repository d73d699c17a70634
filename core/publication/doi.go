package publication

import (
	"fmt"
	"regexp"
	"strings"
)

var doiRegex = regexp.MustCompile(`^10\.\d{4,9}/[-._;()/:A-Za-z0-9]+$`)

// ValidateDOI reports whether `doi` is a well-formed DOI.
func ValidateDOI(doi string) bool {
	return doiRegex.MatchString(doi)
}

// MintDOI builds the DOI of the `seq`-th article published in `year`: <prefix>/<abbrev>.<year>.<seq:05d>
func MintDOI(prefix, abbrev string, year, seq int) string {
	return fmt.Sprintf("%s/%s.%d.%05d", strings.TrimSuffix(prefix, "/"), abbrev, year, seq)
}

// DOIURL is the resolver URL of a DOI.
func DOIURL(doi string) string {
	return "https://doi.org/" + doi
}
