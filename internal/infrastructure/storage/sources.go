package storage

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"PerspectiveEngine/internal/domain"
)

var sourceColumns = []string{
	"id", "name", "country", "alignment_score", "alignment_confidence",
	"alignment_label", "alignment_notes", "active",
}

// SourceByName looks up a rated outlet by its display name.
func (s *SQLStore) SourceByName(ctx context.Context, name string) (domain.Source, bool, error) {
	q := s.sb.Select(sourceColumns...).
		From("sources").
		Where(sq.Eq{"name": name}).
		OrderBy("id").
		Limit(1)

	var (
		src   domain.Source
		found bool
	)
	err := s.query(ctx, "source by name", q, func(rows *sql.Rows) error {
		v, err := scanSource(rows)
		if err != nil {
			return err
		}
		src, found = v, true
		return nil
	})
	if err != nil {
		return domain.Source{}, false, err
	}
	return src, found, nil
}

// ActiveSources lists the active outlets of one edition.
func (s *SQLStore) ActiveSources(ctx context.Context, country domain.Country) ([]domain.Source, error) {
	q := s.sb.Select(sourceColumns...).
		From("sources").
		Where(sq.Eq{"country": string(country), "active": true}).
		OrderBy("name", "id")

	var out []domain.Source
	err := s.query(ctx, "active sources", q, func(rows *sql.Rows) error {
		v, err := scanSource(rows)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanSource(rows *sql.Rows) (domain.Source, error) {
	var (
		src          domain.Source
		country      string
		label, notes sql.NullString
	)
	if err := rows.Scan(&src.ID, &src.Name, &country, &src.AlignmentScore, &src.AlignmentConfidence,
		&label, &notes, &src.Active); err != nil {
		return domain.Source{}, err
	}
	src.Country = domain.Country(country)
	src.AlignmentScore = domain.ClampAlignment(src.AlignmentScore)
	src.AlignmentLabel, src.AlignmentNotes = nullString(label), nullString(notes)
	return src, nil
}
