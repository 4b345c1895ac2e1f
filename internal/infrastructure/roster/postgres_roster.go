package roster

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/repository"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

// PostgresRoster читает исполнителей из таблицы operators.
type PostgresRoster struct {
	db *sqlx.DB
}

func NewPostgresRoster(db *sqlx.DB) *PostgresRoster {
	return &PostgresRoster{db: db}
}

var _ repository.OperatorRoster = (*PostgresRoster)(nil)

type operatorRow struct {
	ID                 string          `db:"id"`
	Name               string          `db:"name"`
	Tier               string          `db:"tier"`
	HomeLat            float64         `db:"home_lat"`
	HomeLon            float64         `db:"home_lon"`
	CurrentLat         sql.NullFloat64 `db:"current_lat"`
	CurrentLon         sql.NullFloat64 `db:"current_lon"`
	Region             string          `db:"region"`
	Services           pq.StringArray  `db:"services"`
	Rating             float64         `db:"rating"`
	AvgResponseSeconds float64         `db:"avg_response_seconds"`
	Online             bool            `db:"online"`
}

const operatorColumns = `id, name, tier, home_lat, home_lon, current_lat, current_lon, region, services,
	rating, avg_response_seconds, online`

func (r *operatorRow) toEntity() *entity.Operator {
	op := &entity.Operator{
		ID:                 r.ID,
		Name:               r.Name,
		Tier:               valueobject.Tier(r.Tier),
		HomeLocation:       valueobject.GeoPoint{Lat: r.HomeLat, Lon: r.HomeLon},
		Region:             r.Region,
		Rating:             r.Rating,
		AvgResponseSeconds: r.AvgResponseSeconds,
		Online:             r.Online,
	}
	if r.CurrentLat.Valid && r.CurrentLon.Valid {
		op.CurrentLocation = &valueobject.GeoPoint{Lat: r.CurrentLat.Float64, Lon: r.CurrentLon.Float64}
	}
	op.Services = make([]valueobject.ServiceType, len(r.Services))
	for i, s := range r.Services {
		op.Services[i] = valueobject.ServiceType(s)
	}
	return op
}

func (p *PostgresRoster) Snapshot(ctx context.Context) ([]*entity.Operator, error) {
	var rows []operatorRow
	query := `SELECT ` + operatorColumns + ` FROM operators ORDER BY id`
	if err := p.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить реестр исполнителей")
	}
	out := make([]*entity.Operator, len(rows))
	for i := range rows {
		out[i] = rows[i].toEntity()
	}
	return out, nil
}

func (p *PostgresRoster) Get(ctx context.Context, operatorID string) (*entity.Operator, error) {
	var row operatorRow
	query := `SELECT ` + operatorColumns + ` FROM operators WHERE id = $1`
	if err := p.db.GetContext(ctx, &row, query, operatorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrOperatorUnknown
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить исполнителя")
	}
	return row.toEntity(), nil
}
