package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const captureSchema = `
CREATE TABLE IF NOT EXISTS captures (
	day         text        NOT NULL,
	time_of_day text        NOT NULL,
	format      text        NOT NULL,
	data        bytea       NOT NULL,
	weather     jsonb,
	created_at  timestamptz NOT NULL DEFAULT NOW(),
	PRIMARY KEY (day, time_of_day)
);`

// PGStore keeps captures in a PostgreSQL table keyed by (day, time_of_day).
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPGStore(pool *pgxpool.Pool, logger *slog.Logger) *PGStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGStore{pool: pool, logger: logger}
}

// EnsureSchema creates the captures table when missing.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, captureSchema); err != nil {
		return fmt.Errorf("create captures table: %w", err)
	}
	return nil
}

func (s *PGStore) ListDays(ctx context.Context) []string {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT day FROM captures ORDER BY day DESC`)
	if err != nil {
		s.logger.Warn("list capture days failed", "err", err)
		return nil
	}
	days, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		s.logger.Warn("scan capture days failed", "err", err)
		return nil
	}
	return days
}

func (s *PGStore) ListCaptures(ctx context.Context, day string) ([]Capture, error) {
	if err := ValidateDay(day); err != nil {
		return nil, err
	}
	query := `
SELECT time_of_day, format, octet_length(data), COALESCE(weather::text, '')
FROM captures
WHERE day = $1
ORDER BY time_of_day ASC;`
	rows, err := s.pool.Query(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("query captures for %s: %w", day, err)
	}
	defer rows.Close()

	var captures []Capture
	for rows.Next() {
		var (
			c       = Capture{Day: day}
			format  string
			weather string
		)
		if err := rows.Scan(&c.Time, &format, &c.Size, &weather); err != nil {
			return nil, fmt.Errorf("scan capture: %w", err)
		}
		c.Format = Format(format)
		if c.Name, err = NameFor(c.Time, c.Format); err != nil {
			s.logger.Warn("skipping capture with malformed time", "day", day, "time", c.Time)
			continue
		}
		if weather != "" {
			if err := json.Unmarshal([]byte(weather), &c.Weather); err != nil {
				s.logger.Warn("ignoring unreadable weather", "day", day, "time", c.Time, "err", err)
			}
		}
		captures = append(captures, c)
	}
	return captures, rows.Err()
}

func (s *PGStore) Open(ctx context.Context, day, name string) ([]byte, Format, error) {
	if err := ValidateDay(day); err != nil {
		return nil, "", err
	}
	timeOfDay, _, err := ParseName(name)
	if err != nil {
		return nil, "", err
	}
	var (
		data   []byte
		format string
	)
	err = s.pool.QueryRow(ctx, `SELECT data, format FROM captures WHERE day = $1 AND time_of_day = $2`, day, timeOfDay).
		Scan(&data, &format)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", fmt.Errorf("%w: %s/%s", ErrNotFound, day, name)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read capture %s/%s: %w", day, name, err)
	}
	return data, Format(format), nil
}

func (s *PGStore) Put(ctx context.Context, c Capture, data []byte) error {
	if err := ValidateDay(c.Day); err != nil {
		return err
	}
	timeOfDay, err := NormalizeTime(c.Time)
	if err != nil {
		return err
	}
	if c.Format == "" {
		c.Format = FormatJPEG
	}
	var weather []byte
	if len(c.Weather) > 0 {
		if weather, err = json.Marshal(c.Weather); err != nil {
			return fmt.Errorf("encode weather: %w", err)
		}
	}
	tag, err := s.pool.Exec(ctx, `
INSERT INTO captures (day, time_of_day, format, data, weather)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (day, time_of_day) DO NOTHING;`,
		c.Day, timeOfDay, string(c.Format), data, nullableJSON(weather))
	if err != nil {
		return fmt.Errorf("insert capture: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %s", ErrExists, c.Day, timeOfDay)
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, day, name string) (int, error) {
	if err := ValidateDay(day); err != nil {
		return 0, err
	}
	timeOfDay, _, err := ParseName(name)
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM captures WHERE day = $1 AND time_of_day = $2`, day, timeOfDay)
	if err != nil {
		return 0, fmt.Errorf("delete capture %s/%s: %w", day, name, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PGStore) DeleteDay(ctx context.Context, day string) (int, error) {
	if err := ValidateDay(day); err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM captures WHERE day = $1`, day)
	if err != nil {
		return 0, fmt.Errorf("delete day %s: %w", day, err)
	}
	return int(tag.RowsAffected()), nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
