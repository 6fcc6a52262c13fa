package db

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mizunoto/tankwatch/internal/model"
)

// Notification channels for newly inserted rows. The store raises a
// pg_notify on the same transaction as each insert so listeners see every
// committed row exactly once, in commit order.
const (
	WaterChannel       = "water_levels_insert"
	AtmosphericChannel = "atmospheric_conditions_insert"
)

// Store wraps database access helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const recentWaterSQL = `
    SELECT id, timestamp, volume_m3, volume_liters
    FROM water_levels
    ORDER BY timestamp DESC
    LIMIT $1
`

// RecentWaterReadings returns up to limit water readings, newest first.
func (s *Store) RecentWaterReadings(ctx context.Context, limit int) ([]model.WaterReading, error) {
	rows, err := s.pool.Query(ctx, recentWaterSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := make([]model.WaterReading, 0, limit)
	for rows.Next() {
		var r model.WaterReading
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.VolumeM3, &r.VolumeLiters); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

const recentAtmosphericSQL = `
    SELECT id, timestamp, temperature, humidity
    FROM atmospheric_conditions
    ORDER BY timestamp DESC
    LIMIT $1
`

// RecentAtmosphericReadings returns up to limit atmospheric readings, newest first.
func (s *Store) RecentAtmosphericReadings(ctx context.Context, limit int) ([]model.AtmosphericReading, error) {
	rows, err := s.pool.Query(ctx, recentAtmosphericSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := make([]model.AtmosphericReading, 0, limit)
	for rows.Next() {
		var r model.AtmosphericReading
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Temperature, &r.Humidity); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

const insertWaterSQL = `
    INSERT INTO water_levels (timestamp, volume_m3, volume_liters)
    VALUES (now(), $1, $2)
    RETURNING id, timestamp, volume_m3, volume_liters
`

// InsertWaterReading stores a water reading, deriving whichever unit the
// sensor omitted, and notifies live feed listeners.
func (s *Store) InsertWaterReading(ctx context.Context, volumeM3, volumeLiters *float64) (model.WaterReading, error) {
	m3, liters := DeriveVolumes(volumeM3, volumeLiters)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.WaterReading{}, err
	}
	defer tx.Rollback(ctx)

	var r model.WaterReading
	if err := tx.QueryRow(ctx, insertWaterSQL, m3, liters).Scan(&r.ID, &r.Timestamp, &r.VolumeM3, &r.VolumeLiters); err != nil {
		return model.WaterReading{}, err
	}

	if err := notifyRow(ctx, tx, WaterChannel, r); err != nil {
		return model.WaterReading{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.WaterReading{}, err
	}
	return r, nil
}

const insertAtmosphericSQL = `
    INSERT INTO atmospheric_conditions (timestamp, temperature, humidity)
    VALUES (now(), $1, $2)
    RETURNING id, timestamp, temperature, humidity
`

// InsertAtmosphericReading stores an atmospheric reading (absent fields
// default to 0) and notifies live feed listeners.
func (s *Store) InsertAtmosphericReading(ctx context.Context, temperature, humidity *float64) (model.AtmosphericReading, error) {
	var temp, hum float64
	if temperature != nil {
		temp = *temperature
	}
	if humidity != nil {
		hum = *humidity
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.AtmosphericReading{}, err
	}
	defer tx.Rollback(ctx)

	var r model.AtmosphericReading
	if err := tx.QueryRow(ctx, insertAtmosphericSQL, temp, hum).Scan(&r.ID, &r.Timestamp, &r.Temperature, &r.Humidity); err != nil {
		return model.AtmosphericReading{}, err
	}

	if err := notifyRow(ctx, tx, AtmosphericChannel, r); err != nil {
		return model.AtmosphericReading{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.AtmosphericReading{}, err
	}
	return r, nil
}

func notifyRow(ctx context.Context, tx pgx.Tx, channel string, row any) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, "SELECT pg_notify($1, $2)", channel, string(payload))
	return err
}

// DeriveVolumes fills in whichever volume unit is missing: liters = m3 × 1000.
// When both are absent, both default to 0.
func DeriveVolumes(volumeM3, volumeLiters *float64) (m3, liters float64) {
	switch {
	case volumeM3 != nil && volumeLiters != nil:
		return *volumeM3, *volumeLiters
	case volumeM3 != nil:
		return *volumeM3, *volumeM3 * 1000
	case volumeLiters != nil:
		return *volumeLiters / 1000, *volumeLiters
	default:
		return 0, 0
	}
}
