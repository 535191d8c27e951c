package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// DBX: Database Error
	ErrGeneric error = errors.New("DBX: Internal server error")

	// DBXO: Bad operation
	// DBXQ: Bad query
	ErrDuplicate        error = errors.New("DBXO: Duplicate")
	ErrNotFound         error = errors.New("DBXQ: Not found")
	ErrRelationNotExist error = errors.New("DBXO: Relation not exists")
	ErrUnscopedUpdate   error = errors.New("DBXO: Update without where clause")
)

// Postgres class 23, integrity constraint violations.
const (
	UniqueViolation     = "23505"
	ForeignKeyViolation = "23503"
)

type Repository[T any] interface {
	Create(ctx context.Context, entity *T) error
	Find(ctx context.Context, options FindOptions) ([]*T, error)
	First(ctx context.Context, where WhereType) (*T, error)
	Count(ctx context.Context, options FindOptions) (int64, error)
	Updates(ctx context.Context, where WhereType, values map[string]any) (int64, error)
	Transaction(ctx context.Context, fn func(txRepo Repository[T]) error) error
	HealthCheck(ctx context.Context) error
	GetDB() *gorm.DB
}

// gorm generic repository
type repository[T any] struct {
	db *gorm.DB
}

func NewRepository[T any](db *gorm.DB) Repository[T] {
	return &repository[T]{db: db}
}

// WrapError maps driver errors onto the DBX* errors. Unknown errors become
// ErrGeneric so callers never see raw SQL.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case UniqueViolation:
			return ErrDuplicate
		case ForeignKeyViolation:
			return ErrRelationNotExist
		}
	}
	return fmt.Errorf("%w: %v", ErrGeneric, err)
}

func (r *repository[T]) HealthCheck(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		return errors.New("DB is not healthy")
	}
	return nil
}

func applyFindOptions(db *gorm.DB, options FindOptions) *gorm.DB {
	isSelectAll := len(options.Select) == 1 && options.Select[0] == "*"
	if options.Select != nil && !isSelectAll {
		db = db.Select(strings.Join(options.Select, ","))
	}
	if options.Where != nil {
		db = db.Where(map[string]any(options.Where))
	}
	for _, o := range options.Order {
		db = db.Order(fmt.Sprintf("%s %s", o.Field, o.Dir))
	}
	if options.Limit != 0 {
		db = db.Limit(int(options.Limit))
	}
	if options.Offset != 0 {
		db = db.Offset(int(options.Offset))
	}
	return db
}

func (r *repository[T]) Create(ctx context.Context, entity *T) error {
	return WrapError(r.db.WithContext(ctx).Create(entity).Error)
}

func (r *repository[T]) Find(ctx context.Context, options FindOptions) ([]*T, error) {
	var results []*T
	db := applyFindOptions(r.db.WithContext(ctx).Model(new(T)), options)
	if err := db.Find(&results).Error; err != nil {
		return nil, WrapError(err)
	}
	return results, nil
}

// First returns ErrNotFound when nothing matches.
func (r *repository[T]) First(ctx context.Context, where WhereType) (*T, error) {
	var entity T
	if err := r.db.WithContext(ctx).Where(map[string]any(where)).First(&entity).Error; err != nil {
		return nil, WrapError(err)
	}
	return &entity, nil
}

func (r *repository[T]) Count(ctx context.Context, options FindOptions) (int64, error) {
	var count int64
	db := r.db.WithContext(ctx).Model(new(T))
	if options.Where != nil {
		db = db.Where(map[string]any(options.Where))
	}
	if err := db.Count(&count).Error; err != nil {
		return 0, WrapError(err)
	}
	return count, nil
}

func (r *repository[T]) Updates(ctx context.Context, where WhereType, values map[string]any) (int64, error) {
	if len(where) == 0 {
		return 0, ErrUnscopedUpdate
	}
	res := r.db.WithContext(ctx).Model(new(T)).Where(map[string]any(where)).Updates(values)
	if res.Error != nil {
		return 0, WrapError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *repository[T]) Transaction(ctx context.Context, fn func(txRepo Repository[T]) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository[T](tx))
	})
}

func (r *repository[T]) GetDB() *gorm.DB {
	return r.db
}
