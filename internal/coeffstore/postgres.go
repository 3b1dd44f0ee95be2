package coeffstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/obsidiandynamics/brumby/internal/regression"
	"github.com/obsidiandynamics/brumby/pkg/oddsmath"
)

// PostgresStore reads coefficients from a wide `coefficients` table: one row
// per race type, one nullable jsonb column per non-winning rank (w2 through
// w(oddsmath.TopMarketCount)), plus the fit's r_squared. A NULL column means
// no formula was fitted for that rank; the gap is left out of PerRank rather
// than zero-filled, mirroring the transactional read shape of the teacher's
// Holocron writer adapted to a read path.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already-open database handle. The caller owns
// the handle's lifecycle (open/close, connection pool sizing).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, raceType string) (RaceCoefficients, error) {
	query := `
		SELECT w2, w3, w4, r_squared
		FROM coefficients
		WHERE race_type = $1
	`

	var w2, w3, w4 []byte
	var rSquared float64
	err := s.db.QueryRowContext(ctx, query, raceType).Scan(&w2, &w3, &w4, &rSquared)
	if err != nil {
		if err == sql.ErrNoRows {
			return RaceCoefficients{}, wrapNotFound(raceType)
		}
		return RaceCoefficients{}, fmt.Errorf("coeffstore: query race %q: %w", raceType, err)
	}

	perRank := make([]regression.Coefficients, 0, oddsmath.TopMarketCount-1)
	for _, raw := range [][]byte{w2, w3, w4} {
		if raw == nil {
			continue
		}
		var c regression.Coefficients
		if err := json.Unmarshal(raw, &c); err != nil {
			return RaceCoefficients{}, fmt.Errorf("coeffstore: decode coefficients for race %q: %w", raceType, err)
		}
		perRank = append(perRank, c)
	}

	return RaceCoefficients{RaceType: raceType, PerRank: perRank, RSquared: rSquared}, nil
}
