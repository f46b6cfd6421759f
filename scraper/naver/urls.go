package naver

import (
	"net/url"
	"strconv"
	"strings"

	"land-crawler/models"
)

// ComplexPageURL is the UI page whose scripts call the overview and articles APIs.
func ComplexPageURL(baseURL string, t models.Target) string {
	return strings.TrimRight(baseURL, "/") + "/complexes/" + url.PathEscape(string(t))
}

func overviewPath(t models.Target) string { return "/api/complexes/overview/" + string(t) }

func articlesPath(t models.Target) string { return "/api/articles/complex/" + string(t) }

// hasPathPrefix reports whether path contains prefix as a whole-segment match.
func hasPathPrefix(path, prefix string) bool {
	idx := strings.Index(path, prefix)
	if idx < 0 {
		return false
	}
	rest := path[idx+len(prefix):]
	return rest == "" || rest[0] == '/'
}

// MatchOverview reports whether rawURL is the overview endpoint for t.
func MatchOverview(t models.Target) func(string) bool {
	return func(rawURL string) bool {
		u, err := url.Parse(rawURL)
		if err != nil {
			return false
		}
		return hasPathPrefix(u.Path, overviewPath(t))
	}
}

// ArticleMatcher selects articles API responses for one Target.
type ArticleMatcher struct {
	Target models.Target
	// Page selects one page; 0 accepts every page. Page 1 also accepts a missing page parameter.
	Page int
	// Grouped, when set, requires sameAddressGroup to agree if the parameter is present.
	Grouped *bool
}

func (m ArticleMatcher) Match(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if !hasPathPrefix(u.Path, articlesPath(m.Target)) {
		return false
	}
	q := u.Query()

	if m.Page > 0 {
		page := q.Get("page")
		if m.Page == 1 {
			if page != "" && page != "1" {
				return false
			}
		} else if page != strconv.Itoa(m.Page) {
			return false
		}
	}

	if m.Grouped != nil {
		if g, known := groupingOf(u); known && g != *m.Grouped {
			return false
		}
	}
	return true
}

// groupingOf reads the sameAddressGroup parameter. known is false when it is absent or unparsable.
func groupingOf(u *url.URL) (grouped, known bool) {
	g := u.Query().Get("sameAddressGroup")
	if g == "" {
		return false, false
	}
	b, err := strconv.ParseBool(g)
	if err != nil {
		return false, false
	}
	return b, true
}

// responseGrouping is groupingOf for a raw URL.
func responseGrouping(rawURL string) *bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	g, known := groupingOf(u)
	if !known {
		return nil
	}
	return &g
}
