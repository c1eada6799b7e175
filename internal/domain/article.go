package domain

import (
	"fmt"
	"strings"
	"time"
)

// Country is one of the supported editions. Each edition has its own article tables.
type Country string

const (
	CountryTR Country = "tr"
	CountryDE Country = "de"
	CountryUS Country = "us"
	CountryUK Country = "uk"
	CountryFR Country = "fr"
	CountryCH Country = "ch"
)

// SupportedCountries lists every edition the engine can serve.
var SupportedCountries = []Country{CountryTR, CountryDE, CountryUS, CountryUK, CountryFR, CountryCH}

// ParseCountry resolves a user supplied country code at the boundary.
func ParseCountry(code string) (Country, error) {
	c := Country(strings.ToLower(strings.TrimSpace(code)))
	for _, supported := range SupportedCountries {
		if c == supported {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedCountry, code)
}

// Article is a persisted news item. The engine never writes articles.
type Article struct {
	ID          string
	Title       string
	Summary     string
	PublishedAt time.Time
	Country     Country
	IsFiltered  bool
}

// AnalysisText is the text submitted to the analysis service for this article.
func (a Article) AnalysisText() string {
	return a.Title + ". " + a.Summary
}

// PrimarySource is the outlet an article is attributed to.
type PrimarySource struct {
	SourceName string
	LogoURL    string
	SourceURL  string
}

// SourcedArticle is an article joined with its primary source, used by the feed.
type SourcedArticle struct {
	Article Article
	Source  PrimarySource
}
