package dataset

import (
	"context"
	"fmt"
	"strings"
	"time"

	"insider-risk/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PostgresSource struct {
	db    Querier
	table string
}

func NewPostgresSource(db Querier, table string) *PostgresSource {
	if table == "" {
		table = "behavioral_records"
	}
	return &PostgresSource{db: db, table: table}
}

func ConnectPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to PostgreSQL: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping PostgreSQL: %w", err)
	}

	return pool, nil
}

func (s *PostgresSource) Query() string {
	cols := append(append([]string{}, requiredColumns...), colAccessAnomalyFlag)
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY entity_id",
		strings.Join(cols, ", "),
		pgx.Identifier(strings.Split(s.table, ".")).Sanitize(),
	)
}

func (s *PostgresSource) Load(ctx context.Context) ([]models.BehavioralRecord, error) {
	rows, err := s.db.Query(ctx, s.Query())
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.table, err)
	}
	defer rows.Close()

	var records []models.BehavioralRecord
	for rows.Next() {
		var (
			rec   models.BehavioralRecord
			label string
			flag  pgtype.Bool
		)
		err := rows.Scan(
			&rec.EntityID,
			&rec.Department,
			&rec.Role,
			&rec.WorkDuration,
			&rec.IdleTime,
			&rec.FileAccessFrequency,
			&rec.VPNUsage,
			&rec.Latitude,
			&rec.Longitude,
			&label,
			&rec.LoginTimestamp,
			&rec.LogoutTimestamp,
			&flag,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		rec.BehaviorLabel = models.BehaviorLabel(label)
		if !rec.BehaviorLabel.Valid() {
			return nil, fmt.Errorf("%w: entity %s has unknown behavior_label %q", models.ErrInvalidInput, rec.EntityID, label)
		}
		if flag.Valid {
			v := flag.Bool
			rec.AccessAnomalyFlag = &v
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}
