package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/repository"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

var activeQuoteStatuses = pq.StringArray{"sent", "counter_pending", "counter_sent", "operator_accepted"}

// PostgresStore хранит агрегаты заявок в PostgreSQL.
// Эксклюзивность операции обеспечивает SELECT ... FOR UPDATE по строке заявки.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ repository.RequestStore = (*PostgresStore)(nil)

func (s *PostgresStore) Create(ctx context.Context, agg *entity.RequestAggregate) ([]*entity.StatusEvent, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось начать транзакцию")
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`INSERT INTO service_requests (%s) VALUES (%s)`, requestColumns, namedParams(requestColumns))
	if _, err := tx.NamedExecContext(ctx, query, newRequestRow(agg.Request)); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать заявку")
	}

	events := agg.PendingEvents()
	if err := insertEvents(ctx, tx, events); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось зафиксировать транзакцию")
	}
	agg.ClearPending()
	return events, nil
}

func (s *PostgresStore) InRequest(ctx context.Context, requestID string, fn repository.MutateFunc) ([]*entity.StatusEvent, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось начать транзакцию")
	}
	defer tx.Rollback()

	var row requestRow
	query := fmt.Sprintf(`SELECT %s FROM service_requests WHERE id = $1 FOR UPDATE`, requestColumns)
	if err := tx.GetContext(ctx, &row, query, requestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrRequestNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось заблокировать заявку")
	}

	agg, err := loadChildren(ctx, tx, row.toEntity())
	if err != nil {
		return nil, err
	}
	if err := fn(agg); err != nil {
		return nil, err
	}

	if err := saveAggregate(ctx, tx, agg); err != nil {
		return nil, err
	}
	events := agg.PendingEvents()
	if err := insertEvents(ctx, tx, events); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось зафиксировать транзакцию")
	}
	agg.ClearPending()
	return events, nil
}

func (s *PostgresStore) Get(ctx context.Context, requestID string) (*entity.RequestAggregate, error) {
	var row requestRow
	query := fmt.Sprintf(`SELECT %s FROM service_requests WHERE id = $1`, requestColumns)
	if err := s.db.GetContext(ctx, &row, query, requestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrRequestNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заявку")
	}
	return loadChildren(ctx, s.db, row.toEntity())
}

func (s *PostgresStore) List(ctx context.Context, filter repository.RequestFilter) ([]*entity.ServiceRequest, error) {
	baseQuery := `FROM service_requests r WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if filter.CustomerID != "" {
		baseQuery += fmt.Sprintf(" AND r.customer_id = $%d", argNum)
		args = append(args, filter.CustomerID)
		argNum++
	}
	if filter.Status != "" {
		baseQuery += fmt.Sprintf(" AND r.status = $%d", argNum)
		args = append(args, filter.Status)
		argNum++
	}
	if filter.OperatorID != "" {
		baseQuery += fmt.Sprintf(` AND (r.assigned_operator_id = $%d
			OR EXISTS (SELECT 1 FROM quotes q WHERE q.request_id = r.id AND q.operator_id = $%d))`, argNum, argNum)
		args = append(args, filter.OperatorID)
		argNum++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s %s ORDER BY r.created_at DESC LIMIT $%d OFFSET $%d`,
		prefixed("r", requestColumns), baseQuery, argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	var rows []requestRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заявки")
	}
	result := make([]*entity.ServiceRequest, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

func (s *PostgresStore) RequestIDByQuote(ctx context.Context, quoteID string) (string, error) {
	var id string
	if err := s.db.GetContext(ctx, &id, `SELECT request_id FROM quotes WHERE id = $1`, quoteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperror.ErrQuoteNotFound
		}
		return "", apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось найти предложение")
	}
	return id, nil
}

func (s *PostgresStore) RequestIDByEntry(ctx context.Context, entryID string) (string, error) {
	var id string
	if err := s.db.GetContext(ctx, &id, `SELECT request_id FROM dispatch_entries WHERE id = $1`, entryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperror.ErrEntryNotFound
		}
		return "", apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось найти позицию очереди")
	}
	return id, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, requestID string) ([]*entity.StatusEvent, error) {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM service_requests WHERE id = $1)`, requestID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заявку")
	}
	if !exists {
		return nil, apperror.ErrRequestNotFound
	}

	var rows []eventRow
	query := fmt.Sprintf(`SELECT %s FROM request_status_events WHERE request_id = $1 ORDER BY seq`, eventColumns)
	if err := s.db.SelectContext(ctx, &rows, query, requestID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить журнал заявки")
	}
	result := make([]*entity.StatusEvent, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

func (s *PostgresStore) DueForQuoteSweep(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		SELECT r.id FROM service_requests r
		WHERE (r.quote_status = 'open' AND r.quote_window_expires_at <= $1)
		   OR EXISTS (SELECT 1 FROM quotes q
		              WHERE q.request_id = r.id AND q.status = ANY($2) AND q.expires_at <= $1)
		ORDER BY r.id
	`
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, now, activeQuoteStatuses); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось найти просроченные предложения")
	}
	return ids, nil
}

func (s *PostgresStore) DueForDispatchSweep(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT e.request_id FROM dispatch_entries e
		JOIN dispatch_runs d ON d.id = e.run_id
		WHERE d.status = 'active' AND e.status = 'notified' AND e.expires_at <= $1
		ORDER BY e.request_id
	`
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, now); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось найти просроченные вызовы")
	}
	return ids, nil
}

func loadChildren(ctx context.Context, q sqlx.QueryerContext, req *entity.ServiceRequest) (*entity.RequestAggregate, error) {
	agg := &entity.RequestAggregate{Request: req}

	var quotes []quoteRow
	query := fmt.Sprintf(`SELECT %s FROM quotes WHERE request_id = $1 ORDER BY submitted_at, id`, quoteColumns)
	if err := sqlx.SelectContext(ctx, q, &quotes, query, req.ID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить предложения")
	}
	for i := range quotes {
		agg.Quotes = append(agg.Quotes, quotes[i].toEntity())
	}

	var runs []runRow
	query = fmt.Sprintf(`SELECT %s FROM dispatch_runs WHERE request_id = $1 ORDER BY started_at, id`, runColumns)
	if err := sqlx.SelectContext(ctx, q, &runs, query, req.ID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить прогоны вызова")
	}
	if len(runs) == 0 {
		return agg, nil
	}

	var entries []entryRow
	query = fmt.Sprintf(`SELECT %s FROM dispatch_entries WHERE request_id = $1 ORDER BY queue_position`, entryColumns)
	if err := sqlx.SelectContext(ctx, q, &entries, query, req.ID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить очередь вызова")
	}
	byRun := make(map[string]*entity.DispatchRun, len(runs))
	for i := range runs {
		run := runs[i].toEntity()
		byRun[run.ID] = run
		agg.Runs = append(agg.Runs, run)
	}
	for i := range entries {
		if run, ok := byRun[entries[i].RunID]; ok {
			run.Entries = append(run.Entries, entries[i].toEntity())
		}
	}
	return agg, nil
}

func saveAggregate(ctx context.Context, tx *sqlx.Tx, agg *entity.RequestAggregate) error {
	update := fmt.Sprintf(`UPDATE service_requests SET %s WHERE id = :id`, assignments(requestColumns, "id"))
	if _, err := tx.NamedExecContext(ctx, update, newRequestRow(agg.Request)); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить заявку")
	}

	upsertQuote := fmt.Sprintf(`INSERT INTO quotes (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s`,
		quoteColumns, namedParams(quoteColumns), excluded(quoteColumns, "id", "request_id", "operator_id"))
	for _, q := range agg.Quotes {
		if _, err := tx.NamedExecContext(ctx, upsertQuote, newQuoteRow(q)); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить предложение")
		}
	}

	upsertRun := fmt.Sprintf(`INSERT INTO dispatch_runs (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s`,
		runColumns, namedParams(runColumns), excluded(runColumns, "id", "request_id"))
	upsertEntry := fmt.Sprintf(`INSERT INTO dispatch_entries (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s`,
		entryColumns, namedParams(entryColumns), excluded(entryColumns, "id", "run_id", "request_id", "operator_id"))
	for _, run := range agg.Runs {
		if _, err := tx.NamedExecContext(ctx, upsertRun, newRunRow(run)); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить прогон вызова")
		}
		for _, e := range run.Entries {
			if _, err := tx.NamedExecContext(ctx, upsertEntry, newEntryRow(agg.Request.ID, e)); err != nil {
				return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить позицию очереди")
			}
		}
	}
	return nil
}

func insertEvents(ctx context.Context, tx *sqlx.Tx, events []*entity.StatusEvent) error {
	query := fmt.Sprintf(`INSERT INTO request_status_events (%s) VALUES (%s)`, eventColumns, namedParams(eventColumns))
	for _, e := range events {
		if _, err := tx.NamedExecContext(ctx, query, newEventRow(e)); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось записать событие журнала")
		}
	}
	return nil
}
