package situation

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lifeflow/guidance/internal/model"
)

//go:embed schema.sql
var schema string

// accuracyMinSamples is the feedback count below which a domain's accuracy
// signal stays neutral.
const accuracyMinSamples = 5

// SQLiteStore persists situations and feedback in a single SQLite file.
// Nested structures are stored as JSON columns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, sit *model.Situation) error {
	related, risk, answers, guidance, err := encodeNested(sit)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO situations
			(id, user_id, description, primary_domain, secondary_domain,
			 related_domains, status, priority, state, risk, confidence,
			 answers, guidance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sit.ID, sit.UserID, sit.Description, sit.PrimaryDomain, sit.SecondaryDomain,
		related, sit.Status, sit.Priority, sit.State, risk, sit.Confidence,
		answers, guidance, sit.CreatedAt, sit.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert situation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Situation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, description, primary_domain, secondary_domain,
		       related_domains, status, priority, state, risk, confidence,
		       answers, guidance, created_at, updated_at
		FROM situations WHERE id = ?`, id)

	sit, err := scanSituation(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("situation %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get situation: %w", err)
	}
	return sit, nil
}

func (s *SQLiteStore) Update(ctx context.Context, sit *model.Situation) error {
	related, risk, answers, guidance, err := encodeNested(sit)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE situations SET
			description = ?, primary_domain = ?, secondary_domain = ?,
			related_domains = ?, status = ?, priority = ?, state = ?,
			risk = ?, confidence = ?, answers = ?, guidance = ?, updated_at = ?
		WHERE id = ?`,
		sit.Description, sit.PrimaryDomain, sit.SecondaryDomain,
		related, sit.Status, sit.Priority, sit.State,
		risk, sit.Confidence, answers, guidance, sit.UpdatedAt, sit.ID)
	if err != nil {
		return fmt.Errorf("update situation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update situation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("situation %s: %w", sit.ID, model.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListByUser(ctx context.Context, userID string) ([]*model.Situation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, description, primary_domain, secondary_domain,
		       related_domains, status, priority, state, risk, confidence,
		       answers, guidance, created_at, updated_at
		FROM situations WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list situations: %w", err)
	}
	defer rows.Close()

	var out []*model.Situation
	for rows.Next() {
		sit, err := scanSituation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan situation: %w", err)
		}
		out = append(out, sit)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddFeedback(ctx context.Context, fb model.Feedback) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, situation_id, user_id, domain, helpful, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.SituationID, fb.UserID, fb.Domain, fb.Helpful, fb.Comment, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DomainAccuracy(ctx context.Context, domain string) (float64, error) {
	var total, helpful int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(helpful), 0)
		FROM feedback WHERE domain = ? AND created_at >= ?`,
		domain, time.Now().AddDate(0, 0, -30)).Scan(&total, &helpful)
	if err != nil {
		return 0, fmt.Errorf("domain accuracy: %w", err)
	}
	if total < accuracyMinSamples {
		return 0.5, nil
	}
	return float64(helpful) / float64(total), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSituation(row scanner) (*model.Situation, error) {
	var sit model.Situation
	var related, risk, answers, guidance string
	err := row.Scan(
		&sit.ID, &sit.UserID, &sit.Description, &sit.PrimaryDomain, &sit.SecondaryDomain,
		&related, &sit.Status, &sit.Priority, &sit.State, &risk, &sit.Confidence,
		&answers, &guidance, &sit.CreatedAt, &sit.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(related), &sit.RelatedDomains); err != nil {
		return nil, fmt.Errorf("decode related domains: %w", err)
	}
	if err := json.Unmarshal([]byte(risk), &sit.Risk); err != nil {
		return nil, fmt.Errorf("decode risk: %w", err)
	}
	if err := json.Unmarshal([]byte(answers), &sit.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	if err := json.Unmarshal([]byte(guidance), &sit.Guidance); err != nil {
		return nil, fmt.Errorf("decode guidance: %w", err)
	}
	return &sit, nil
}

func encodeNested(sit *model.Situation) (related, risk, answers, guidance string, err error) {
	enc := func(v any) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode situation field: %w", err)
		}
		return string(b), nil
	}
	if related, err = enc(orEmpty(sit.RelatedDomains)); err != nil {
		return
	}
	if risk, err = enc(sit.Risk); err != nil {
		return
	}
	if answers, err = enc(orEmptyAnswers(sit.Answers)); err != nil {
		return
	}
	guidance, err = enc(orEmptyGuidance(sit.Guidance))
	return
}

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func orEmptyAnswers(v []model.ClarificationAnswer) []model.ClarificationAnswer {
	if v == nil {
		return []model.ClarificationAnswer{}
	}
	return v
}

func orEmptyGuidance(v []model.GuidanceResponse) []model.GuidanceResponse {
	if v == nil {
		return []model.GuidanceResponse{}
	}
	return v
}
