// ABOUTME: Accept-Language negotiation for the opportunistic cpx_lang cookie
// ABOUTME: Matches client preferences against the available locale bundles

package gateway

import (
	"fmt"

	"golang.org/x/text/language"
)

// localeMatcher picks the best available locale bundle for a client's
// Accept-Language header. The matcher handles the fallback chain: exact tag,
// then super-language (en from en-US), then the next preferred language.
type localeMatcher struct {
	matcher language.Matcher
	codes   []string
}

func newLocaleMatcher(codes []string) (*localeMatcher, error) {
	if len(codes) == 0 {
		return &localeMatcher{}, nil
	}

	tags := make([]language.Tag, 0, len(codes))
	for _, code := range codes {
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("parsing locale %q: %w", code, err)
		}
		tags = append(tags, tag)
	}

	return &localeMatcher{
		matcher: language.NewMatcher(tags),
		codes:   codes,
	}, nil
}

// Match returns the best available locale code for the given Accept-Language
// header, or "" when nothing matches with any confidence.
func (m *localeMatcher) Match(acceptLanguage string) string {
	if m.matcher == nil || acceptLanguage == "" {
		return ""
	}

	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return ""
	}

	_, index, conf := m.matcher.Match(prefs...)
	if conf == language.No {
		return ""
	}
	return m.codes[index]
}
