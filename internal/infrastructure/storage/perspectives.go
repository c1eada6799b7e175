package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/goccy/go-json"

	"PerspectiveEngine/internal/domain"
)

// CachedMatches returns stored matches for a main article in rank order.
// Only rows whose related article is still displayable in the edition count toward limit.
func (s *SQLStore) CachedMatches(ctx context.Context, country domain.Country, mainArticleID string, limit int) ([]domain.PerspectiveMatch, error) {
	t, err := tablesFor(country)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []domain.PerspectiveMatch{}, nil
	}

	q := s.sb.Select("p.main_article_id", "p.related_article_id", "p.similarity_score", "p.matched_entities", "p.match_rank", "p.created_at").
		From("perspective_matches p").
		Join(t.articles + " a ON a.id = p.related_article_id").
		Where(sq.Eq{"p.main_article_id": mainArticleID}).
		Where(sq.Eq{"a.is_filtered": false}).
		OrderBy("p.match_rank", "p.similarity_score DESC", "p.related_article_id").
		Limit(uint64(limit))

	out := make([]domain.PerspectiveMatch, 0, limit)
	err = s.query(ctx, "cached matches", q, func(rows *sql.Rows) error {
		var (
			m        domain.PerspectiveMatch
			entities string
		)
		if err := rows.Scan(&m.MainArticleID, &m.RelatedArticleID, &m.SimilarityScore, &entities, &m.Rank, &m.CreatedAt); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(entities), &m.MatchedEntities); err != nil {
			return fmt.Errorf("decode matched entities: %w", err)
		}
		if m.MatchedEntities == nil {
			m.MatchedEntities = []string{}
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// InsertIfAbsent stores the match once; an existing pair is left untouched.
func (s *SQLStore) InsertIfAbsent(ctx context.Context, match domain.PerspectiveMatch) (bool, error) {
	entities := match.MatchedEntities
	if entities == nil {
		entities = []string{}
	}
	encoded, err := json.Marshal(entities)
	if err != nil {
		return false, fmt.Errorf("encode matched entities: %w", err)
	}

	createdAt := match.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query, args, err := s.sb.Insert("perspective_matches").
		Columns("main_article_id", "related_article_id", "similarity_score", "matched_entities", "match_rank", "created_at").
		Values(match.MainArticleID, match.RelatedArticleID, match.SimilarityScore, string(encoded), match.Rank, dbTime(createdAt)).
		Suffix("ON CONFLICT (main_article_id, related_article_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("insert perspective: build query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, domain.NewStoreError("insert perspective", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, domain.NewStoreError("insert perspective", fmt.Errorf("rows affected: %w", err))
	}
	return affected > 0, nil
}
