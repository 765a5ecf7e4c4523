// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mmeshcher/logistics-system/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrDepositNotFound возвращается, если склад не найден.
	ErrDepositNotFound = errors.New("deposit not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderOwnedByAnother возвращается, если трек-номер принадлежит другому пользователю.
	ErrOrderOwnedByAnother = errors.New("order already registered by another user")
	// ErrOrderConflict возвращается, если статус заказа изменился параллельно.
	ErrOrderConflict = errors.New("order status changed concurrently")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраим только сериализационные сбои, дедлоки и сетевые обрывы.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash) VALUES ($1, $2) RETURNING id`,
		login, passwordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, created_at FROM users WHERE login = $1`,
		login,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// CreateDeposit создаёт склад с недельным графиком работы.
func (r *PostgresRepository) CreateDeposit(ctx context.Context, name, openTime, closeTime string, workingDays []int) (int64, error) {
	days := make([]int32, 0, len(workingDays))
	for _, d := range workingDays {
		days = append(days, int32(d))
	}

	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO deposits (name, open_time, close_time, working_days)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		name, openTime, closeTime, days,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create deposit: %w", err)
	}
	return id, nil
}

func scanDeposit(row pgx.Row) (*model.Deposit, error) {
	var d model.Deposit
	var days []int32
	if err := row.Scan(&d.ID, &d.Name, &d.OpenTime, &d.CloseTime, &days, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.WorkingDays = make([]int, 0, len(days))
	for _, v := range days {
		d.WorkingDays = append(d.WorkingDays, int(v))
	}
	return &d, nil
}

// GetDepositByID возвращает склад по идентификатору.
func (r *PostgresRepository) GetDepositByID(ctx context.Context, id int64) (*model.Deposit, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, open_time, close_time, working_days, created_at
		 FROM deposits WHERE id = $1`,
		id,
	)

	d, err := scanDeposit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepositNotFound
		}
		return nil, fmt.Errorf("get deposit: %w", err)
	}
	return d, nil
}

// GetDeposits возвращает список всех складов.
func (r *PostgresRepository) GetDeposits(ctx context.Context) ([]model.Deposit, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, open_time, close_time, working_days, created_at
		 FROM deposits
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("select deposits: %w", err)
	}
	defer rows.Close()

	var deposits []model.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deposit: %w", err)
		}
		deposits = append(deposits, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return deposits, nil
}

// AddOrder сохраняет заказ и возвращает признак того, что он уже существовал у пользователя.
func (r *PostgresRepository) AddOrder(ctx context.Context, userID, depositID int64, number string, kind model.OrderKind) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx,
		`INSERT INTO orders (number, user_id, deposit_id, kind, status)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (number) DO NOTHING`,
		number, userID, depositID, string(kind), string(model.OrderStatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}

	inserted := cmdTag.RowsAffected() == 1

	var existingUserID int64
	err = tx.QueryRow(ctx,
		`SELECT user_id FROM orders WHERE number = $1`,
		number,
	).Scan(&existingUserID)
	if err != nil {
		return false, fmt.Errorf("select existing order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}

	if existingUserID == userID {
		return !inserted, nil
	}

	return false, ErrOrderOwnedByAnother
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var kind, status string
	if err := row.Scan(&o.Number, &o.UserID, &o.DepositID, &kind, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Kind = model.OrderKind(kind)
	o.Status = model.OrderStatus(status)
	return &o, nil
}

// GetOrderByNumber возвращает заказ по трек-номеру.
func (r *PostgresRepository) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT number, user_id, deposit_id, kind, status, created_at, updated_at
		 FROM orders WHERE number = $1`,
		number,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// GetOrdersByUser возвращает список заказов пользователя.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT number, user_id, deposit_id, kind, status, created_at, updated_at
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// UpdateOrderStatus переводит заказ из статуса from в статус to.
// Условие WHERE по текущему статусу сериализует конкурирующие переходы:
// проигравший получает ErrOrderConflict.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, number string, from, to model.OrderStatus) error {
	return r.withRetry(ctx, func() error {
		cmdTag, err := r.pool.Exec(ctx,
			`UPDATE orders SET status = $3, updated_at = now()
			 WHERE number = $1 AND status = $2`,
			number, string(from), string(to),
		)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		if cmdTag.RowsAffected() == 0 {
			return ErrOrderConflict
		}
		return nil
	})
}

// GetOrdersInTransit возвращает заказы, находящиеся в пути, для опроса перевозчика.
func (r *PostgresRepository) GetOrdersInTransit(ctx context.Context, limit int) ([]model.Order, error) {
	var orders []model.Order

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT number, user_id, deposit_id, kind, status, created_at, updated_at
			 FROM orders
			 WHERE status IN ($1, $2)
			 ORDER BY updated_at
			 LIMIT $3`,
			string(model.OrderStatusShipping),
			string(model.OrderStatusShipped),
			limit,
		)
		if err != nil {
			return fmt.Errorf("select orders in transit: %w", err)
		}
		defer rows.Close()

		orders = orders[:0]
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return fmt.Errorf("scan order: %w", err)
			}
			orders = append(orders, *o)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return orders, nil
}
