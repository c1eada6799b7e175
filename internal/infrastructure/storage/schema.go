package storage

import (
	"context"
	"fmt"

	"PerspectiveEngine/internal/domain"
)

type countryTables struct {
	articles       string
	articleSources string
}

// tablesByCountry is the only place per-edition table names are produced.
var tablesByCountry = map[domain.Country]countryTables{
	domain.CountryTR: {articles: "tr_articles", articleSources: "tr_article_sources"},
	domain.CountryDE: {articles: "de_articles", articleSources: "de_article_sources"},
	domain.CountryUS: {articles: "us_articles", articleSources: "us_article_sources"},
	domain.CountryUK: {articles: "uk_articles", articleSources: "uk_article_sources"},
	domain.CountryFR: {articles: "fr_articles", articleSources: "fr_article_sources"},
	domain.CountryCH: {articles: "ch_articles", articleSources: "ch_article_sources"},
}

func tablesFor(country domain.Country) (countryTables, error) {
	t, ok := tablesByCountry[country]
	if !ok {
		return countryTables{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedCountry, country)
	}
	return t, nil
}

func schemaStatements() []string {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sources (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			country TEXT NOT NULL,
			alignment_score INTEGER NOT NULL DEFAULT 0,
			alignment_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			alignment_label TEXT,
			alignment_notes TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE INDEX IF NOT EXISTS sources_country_idx ON sources (country, active)`,
		`CREATE TABLE IF NOT EXISTS perspective_matches (
			main_article_id TEXT NOT NULL,
			related_article_id TEXT NOT NULL,
			similarity_score DOUBLE PRECISION NOT NULL,
			matched_entities TEXT NOT NULL DEFAULT '[]',
			match_rank INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (main_article_id, related_article_id)
		)`,
	}

	for _, country := range domain.SupportedCountries {
		t := tablesByCountry[country]
		stmts = append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				summary TEXT,
				published_at TIMESTAMP NOT NULL,
				is_filtered BOOLEAN NOT NULL DEFAULT FALSE
			)`, t.articles),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_published_idx ON %s (published_at)`, t.articles, t.articles),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				article_id TEXT NOT NULL,
				source_name TEXT NOT NULL,
				logo_url TEXT,
				source_url TEXT,
				is_primary BOOLEAN NOT NULL DEFAULT FALSE
			)`, t.articleSources),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_article_idx ON %s (article_id)`, t.articleSources, t.articleSources),
		)
	}
	return stmts
}

// Migrate creates the tables the engine reads and writes. It is idempotent.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return domain.NewStoreError("migrate", err)
		}
	}
	return nil
}
