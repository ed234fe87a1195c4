package breach

import (
	"sort"
	"strings"

	"github.com/raysh454/cyberguard/internal/utils"
)

// CatalogEntry is a well-known historical breach and the addresses it is
// attributed to locally. An address matches when its domain equals or is a
// subdomain of one of Domains, or when it is listed in Addresses.
type CatalogEntry struct {
	Breach    Breach
	Domains   []string
	Addresses []string
}

// Catalog is the local, deterministic breach data used when the remote
// service is disabled or fails.
type Catalog struct {
	entries []CatalogEntry
}

func NewCatalog(entries ...CatalogEntry) *Catalog {
	return &Catalog{entries: entries}
}

// DefaultCatalog holds public metadata of three large historical breaches.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		CatalogEntry{
			Breach: Breach{
				Name:        "Adobe",
				Title:       "Adobe",
				Domain:      "adobe.com",
				BreachDate:  "2013-10-04",
				PwnCount:    152445165,
				Description: "In October 2013, 153 million Adobe accounts were breached with each containing an internal ID, username, email, encrypted password and a password hint in plain text.",
				DataClasses: []string{"Email addresses", "Password hints", "Passwords", "Usernames"},
			},
			Domains: []string{"adobe.com"},
		},
		CatalogEntry{
			Breach: Breach{
				Name:        "Collection1",
				Title:       "Collection #1",
				BreachDate:  "2019-01-07",
				PwnCount:    772904991,
				Description: "Collection #1 is a set of email addresses and passwords totalling 2,692,818,238 rows.",
				DataClasses: []string{"Email addresses", "Passwords"},
			},
			Addresses: []string{"demo@cyberguard.com"},
		},
		CatalogEntry{
			Breach: Breach{
				Name:        "LinkedIn",
				Title:       "LinkedIn",
				Domain:      "linkedin.com",
				BreachDate:  "2012-05-05",
				PwnCount:    164611595,
				Description: "In May 2012, LinkedIn was breached and the passwords of 164 million users were stolen.",
				DataClasses: []string{"Email addresses", "Passwords"},
			},
			Domains: []string{"linkedin.com"},
		},
	)
}

// Lookup returns the breaches attributed to email, newest first.
func (c *Catalog) Lookup(email string) []Breach {
	email = utils.NormalizeEmail(email)
	domain := utils.EmailDomain(email)

	var out []Breach
	for _, e := range c.entries {
		if matchesEntry(e, email, domain) {
			out = append(out, e.Breach)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].BreachDate > out[j].BreachDate })
	return out
}

func matchesEntry(e CatalogEntry, email, domain string) bool {
	for _, a := range e.Addresses {
		if utils.NormalizeEmail(a) == email {
			return true
		}
	}
	if domain == "" {
		return false
	}
	for _, d := range e.Domains {
		d = strings.ToLower(d)
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}
