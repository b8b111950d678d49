package search

import (
	"net/url"
	"strings"
)

// DefaultJobSites is the domain allow-list used when the caller names none.
var DefaultJobSites = []string{
	"linkedin.com/jobs",
	"indeed.com",
	"glassdoor.com/Job",
	"ziprecruiter.com",
	"monster.com",
}

var sourceLabels = []struct {
	domain string
	label  string
}{
	{"linkedin.com", "LinkedIn"},
	{"indeed.com", "Indeed"},
	{"glassdoor.com", "Glassdoor"},
	{"ziprecruiter.com", "ZipRecruiter"},
	{"monster.com", "Monster"},
}

// SourceFor labels a listing URL with the job board it came from.
func SourceFor(rawURL string) string {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(host)
	for _, s := range sourceLabels {
		if host == s.domain || strings.HasSuffix(host, "."+s.domain) {
			return s.label
		}
	}
	return "Other"
}
