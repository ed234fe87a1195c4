package scoring

import (
	"errors"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// subject is the normalized view of an input that matchers test against.
type subject struct {
	// raw values are NFKC normalized only; folded values are also case folded.
	text, host, path                   string
	foldedText, foldedHost, foldedPath string

	labels int
	words  int
}

func (s *subject) value(f Field, caseSensitive bool) string {
	switch f {
	case FieldHost:
		if caseSensitive {
			return s.host
		}
		return s.foldedHost
	case FieldPath:
		if caseSensitive {
			return s.path
		}
		return s.foldedPath
	default:
		if caseSensitive {
			return s.text
		}
		return s.foldedText
	}
}

// fold returns the case folded form of s. A Caser keeps state, so one is
// created per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

func newSubject(in Input) (*subject, error) {
	text := norm.NFKC.String(in.Text)
	s := &subject{
		text:       text,
		foldedText: fold(text),
		words:      len(strings.Fields(text)),
	}
	if in.Kind != KindURL || strings.TrimSpace(text) == "" {
		return s, nil
	}

	u, err := parseURL(strings.TrimSpace(text))
	if err != nil {
		return nil, &InputError{Kind: in.Kind, Input: in.Text, Reason: "not a valid absolute URL", Err: err}
	}
	s.host = normalizeHost(u.Hostname())
	s.foldedHost = s.host
	s.path = u.Path
	s.foldedPath = fold(u.Path)
	if s.host != "" {
		s.labels = len(strings.Split(s.host, "."))
	}
	return s, nil
}

var (
	errMissingScheme = errors.New("missing scheme")
	errMissingHost   = errors.New("missing host")
	errWhitespace    = errors.New("contains whitespace")
)

// parseURL accepts only absolute URLs with a scheme and a host. url.Parse on
// its own accepts almost any string as a relative reference.
func parseURL(raw string) (*url.URL, error) {
	if strings.IndexFunc(raw, unicode.IsSpace) >= 0 {
		return nil, errWhitespace
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		return nil, errMissingScheme
	}
	if u.Hostname() == "" {
		return nil, errMissingHost
	}
	return u, nil
}

// normalizeHost lower-cases the host and converts internationalized names to
// their ASCII form. Hosts the IDNA lookup profile rejects are kept lower-cased.
func normalizeHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		return ascii
	}
	return host
}
