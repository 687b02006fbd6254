package mission

import (
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// Phrases readme files use to name the engine release a mission needs.
// Each captures the release number as Version. The lookbehinds keep out
// titles such as "Love Thief 1.5".
var newDarkVersionPatterns = []string{
	`NewDark (?<Version>\d\.\d+)`,
	`(New ?Dark|"New ?Dark").? v?(\.| )?(?<Version>\d\.\d+)`,
	`(New ?Dark|"New ?Dark").? .?(Version|Patch) .?(?<Version>\d\.\d+)`,
	`(Dark ?Engine) (Version.?|v)?(\.| )?(?<Version>\d\.\d+)`,
	`((?<!(Love |Being |Penitent |Counter-|Requiem for a |Space ))Thief|(?<!Being )Thief ?2|Thief ?II|The Metal Age) v?(\.| )?(?<Version>\d\.\d+)`,
	`\D(?<Version>\d\.\d+) (version of |.?)New ?Dark(?! ?\d\.\d+)|Thief Gold( Patch)? (?<Version>(?!1\.33|1\.37)\d\.\d+)`,
	`Version (?<Version>\d\.\d+) of (Thief 2|Thief2|Thief II)`,
	`(New ?Dark|"New ?Dark") (is )?required (.? )v?(\.| )?(?<Version>\d\.\d+)`,
	`(?<Version>(?!1\.33|1\.37)\d\.\d+) Patch`,
}

var newDarkVersionRegexps = compileNewDarkPatterns(newDarkVersionPatterns)

func compileNewDarkPatterns(patterns []string) []*regexp2.Regexp {
	res := make([]*regexp2.Regexp, len(patterns))
	for i, p := range patterns {
		re := regexp2.MustCompile(p, regexp2.IgnoreCase|regexp2.ExplicitCapture)
		re.MatchTimeout = time.Second
		res[i] = re
	}
	return res
}

const (
	minNewDarkVersion = 1.19
	maxNewDarkVersion = 2.0
)

// NewDarkVersion finds the NewDark release a readme asks for. The first
// phrase that matches decides. The version is normalized to two fractional
// digits, so "1.2" becomes "1.20". Only releases from 1.19 up to but
// excluding 2.0 are reported.
func NewDarkVersion(text string) (string, bool) {
	var version string
	for _, re := range newDarkVersionRegexps {
		m, err := re.FindStringMatch(text)
		if err != nil || m == nil {
			continue
		}
		if g := m.GroupByName("Version"); g != nil {
			version = g.String()
		}
		break
	}
	if version == "" {
		return "", false
	}

	version = normalizeVersion(version)
	v, err := strconv.ParseFloat(version, 64)
	if err != nil || v < minNewDarkVersion || v >= maxNewDarkVersion {
		return "", false
	}
	return version, true
}

func normalizeVersion(s string) string {
	s = strings.Trim(s, ".")
	if i := strings.IndexByte(s, '.'); i >= 0 && len(s)-i-1 < 2 {
		s += "0"
	}
	return s
}
