package storage

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"PerspectiveEngine/internal/domain"
)

// ArticleByID loads an article regardless of its filtered flag.
func (s *SQLStore) ArticleByID(ctx context.Context, country domain.Country, id string) (domain.Article, bool, error) {
	t, err := tablesFor(country)
	if err != nil {
		return domain.Article{}, false, err
	}

	q := s.sb.Select("id", "title", "summary", "published_at", "is_filtered").
		From(t.articles).
		Where(sq.Eq{"id": id}).
		Limit(1)

	var (
		article domain.Article
		found   bool
	)
	err = s.query(ctx, "article by id", q, func(rows *sql.Rows) error {
		a, err := scanArticle(rows, country)
		if err != nil {
			return err
		}
		article, found = a, true
		return nil
	})
	if err != nil {
		return domain.Article{}, false, err
	}
	return article, found, nil
}

// ArticlesInWindow returns non-filtered articles published within [start, end], newest first.
func (s *SQLStore) ArticlesInWindow(ctx context.Context, country domain.Country, start, end time.Time, excludeID string, limit int) ([]domain.Article, error) {
	t, err := tablesFor(country)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []domain.Article{}, nil
	}

	lo, hi := windowBounds(start, end)
	q := s.sb.Select("id", "title", "summary", "published_at", "is_filtered").
		From(t.articles).
		Where(sq.GtOrEq{"published_at": lo}).
		Where(sq.LtOrEq{"published_at": hi}).
		Where(sq.NotEq{"id": excludeID}).
		Where(sq.Eq{"is_filtered": false}).
		OrderBy("published_at DESC", "id").
		Limit(uint64(limit))

	articles := make([]domain.Article, 0, limit)
	err = s.query(ctx, "articles in window", q, func(rows *sql.Rows) error {
		a, err := scanArticle(rows, country)
		if err != nil {
			return err
		}
		if a.PublishedAt.Before(start) || a.PublishedAt.After(end) {
			return nil
		}
		articles = append(articles, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return articles, nil
}

// PrimarySource returns the outlet an article is attributed to. When several rows
// are marked primary the lowest source name wins, matching RecentArticlesBySources.
func (s *SQLStore) PrimarySource(ctx context.Context, country domain.Country, articleID string) (domain.PrimarySource, bool, error) {
	t, err := tablesFor(country)
	if err != nil {
		return domain.PrimarySource{}, false, err
	}

	q := s.sb.Select("source_name", "logo_url", "source_url").
		From(t.articleSources).
		Where(sq.Eq{"article_id": articleID, "is_primary": true}).
		OrderBy("source_name").
		Limit(1)

	var (
		src   domain.PrimarySource
		found bool
	)
	err = s.query(ctx, "primary source", q, func(rows *sql.Rows) error {
		var logo, url sql.NullString
		if err := rows.Scan(&src.SourceName, &logo, &url); err != nil {
			return err
		}
		src.LogoURL, src.SourceURL = nullString(logo), nullString(url)
		found = true
		return nil
	})
	if err != nil {
		return domain.PrimarySource{}, false, err
	}
	return src, found, nil
}

// RecentArticlesBySources pages through non-filtered articles whose primary source is in sourceNames.
func (s *SQLStore) RecentArticlesBySources(ctx context.Context, country domain.Country, sourceNames []string, limit, offset int) ([]domain.SourcedArticle, error) {
	t, err := tablesFor(country)
	if err != nil {
		return nil, err
	}
	if len(sourceNames) == 0 || limit <= 0 {
		return []domain.SourcedArticle{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	q := s.sb.Select("a.id", "a.title", "a.summary", "a.published_at", "a.is_filtered",
		"s.source_name", "s.logo_url", "s.source_url").
		From(t.articles + " a").
		Join(t.articleSources + " s ON s.article_id = a.id").
		Where(sq.Eq{"s.is_primary": true}).
		Where(sq.Expr("s.source_name = (SELECT MIN(p.source_name) FROM "+t.articleSources+" p WHERE p.article_id = a.id AND p.is_primary = ?)", true)).
		Where(sq.Eq{"s.source_name": sourceNames}).
		Where(sq.Eq{"a.is_filtered": false}).
		OrderBy("a.published_at DESC", "a.id").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	out := make([]domain.SourcedArticle, 0, limit)
	seen := make(map[string]struct{}, limit)
	err = s.query(ctx, "recent articles by sources", q, func(rows *sql.Rows) error {
		var (
			item         domain.SourcedArticle
			summary      sql.NullString
			logo, srcURL sql.NullString
		)
		if err := rows.Scan(&item.Article.ID, &item.Article.Title, &summary, &item.Article.PublishedAt,
			&item.Article.IsFiltered, &item.Source.SourceName, &logo, &srcURL); err != nil {
			return err
		}
		item.Article.Summary = nullString(summary)
		item.Article.PublishedAt = item.Article.PublishedAt.UTC()
		item.Article.Country = country
		item.Source.LogoURL, item.Source.SourceURL = nullString(logo), nullString(srcURL)
		if _, dup := seen[item.Article.ID]; dup {
			return nil
		}
		seen[item.Article.ID] = struct{}{}
		out = append(out, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanArticle(rows *sql.Rows, country domain.Country) (domain.Article, error) {
	var (
		a       domain.Article
		summary sql.NullString
	)
	if err := rows.Scan(&a.ID, &a.Title, &summary, &a.PublishedAt, &a.IsFiltered); err != nil {
		return domain.Article{}, err
	}
	a.Summary = nullString(summary)
	a.PublishedAt = a.PublishedAt.UTC()
	a.Country = country
	return a, nil
}
