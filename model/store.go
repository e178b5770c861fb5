package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/consumedhq/consumed/core/csql"
	"github.com/consumedhq/consumed/core/logger"
)

// Engine errors.
var (
	ErrNotFound       = errors.New("model: not found")
	ErrUnknownField   = errors.New("model: unknown field")
	ErrNotOrderable   = errors.New("model: field not orderable")
	ErrNotLinkable    = errors.New("model: entity is not a link table")
	ErrNotInitialized = errors.New("model: entity has no identifier")
)

// Pagination bounds for list queries.
const (
	DefaultTake = 50
	MaxTake     = 120
)

// Store is the generic persistence engine. It turns registered metadata
// into parameterized SQL; one statement per write, no transactions.
type Store struct {
	DB      *csql.DB
	BaseURL string
}

// NewStore creates a store on the given database.
func NewStore(db *csql.DB, baseURL string) *Store {
	return &Store{DB: db, BaseURL: baseURL}
}

// FindOptions control list queries.
type FindOptions struct {
	Take    int
	Skip    int
	OrderBy string
	// IncludeDeleted also returns soft-deleted rows.
	IncludeDeleted bool
}

func quoted(name string) string {
	return `"` + name + `"`
}

func (s *Store) table(meta *Metadata) string {
	return s.DB.Schema + "." + quoted(meta.Table)
}

func (s *Store) selectColumns(meta *Metadata) string {
	cols := []string{quoted(meta.PrimaryKey)}
	for _, field := range meta.Fields {
		cols = append(cols, quoted(field.Name))
	}
	if meta.Timestamps {
		cols = append(cols, quoted("created_at"), quoted("updated_at"))
	}
	if meta.SoftDelete {
		cols = append(cols, quoted("deleted_at"))
	}
	return strings.Join(cols, ", ")
}

func newHolder(kind Kind) interface{} {
	switch kind {
	case KindString:
		return new(sql.NullString)
	case KindInt:
		return new(sql.NullInt64)
	case KindFloat:
		return new(sql.NullFloat64)
	case KindBool:
		return new(sql.NullBool)
	case KindTime:
		return new(sql.NullTime)
	}
	panic(fmt.Sprintf("model: unknown kind %d", kind))
}

func holderValue(holder interface{}) (interface{}, bool) {
	switch h := holder.(type) {
	case *sql.NullString:
		return h.String, h.Valid
	case *sql.NullInt64:
		return h.Int64, h.Valid
	case *sql.NullFloat64:
		return h.Float64, h.Valid
	case *sql.NullBool:
		return h.Bool, h.Valid
	case *sql.NullTime:
		return h.Time, h.Valid
	}
	return nil, false
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scan(meta *Metadata, row scanner) (Entity, error) {
	e := meta.New()
	b := e.base()
	holders := make([]interface{}, 0, len(meta.Fields))
	targets := []interface{}{&b.ID}
	for _, field := range meta.Fields {
		holder := newHolder(field.Kind)
		holders = append(holders, holder)
		targets = append(targets, holder)
	}
	var createdAt, updatedAt, deletedAt sql.NullTime
	if meta.Timestamps {
		targets = append(targets, &createdAt, &updatedAt)
	}
	if meta.SoftDelete {
		targets = append(targets, &deletedAt)
	}
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	for i, field := range meta.Fields {
		value, valid := holderValue(holders[i])
		if !valid {
			continue
		}
		if err := field.Set(e, value); err != nil {
			return nil, err
		}
	}
	b.CreatedAt = createdAt.Time
	b.UpdatedAt = updatedAt.Time
	if deletedAt.Valid {
		t := deletedAt.Time
		b.DeletedAt = &t
	}
	return e, nil
}

// ParseOrderBy validates an orderBy parameter of the form `[+|-]field`
// against the orderable whitelist and returns the ORDER BY clause body.
func ParseOrderBy(meta *Metadata, orderBy string) (string, error) {
	if orderBy == "" {
		return quoted(meta.PrimaryKey) + " ASC", nil
	}
	direction := "ASC"
	switch orderBy[0] {
	case '-':
		direction = "DESC"
		orderBy = orderBy[1:]
	case '+':
		orderBy = orderBy[1:]
	}
	for _, name := range meta.Orderable {
		if name == orderBy {
			return quoted(name) + " " + direction, nil
		}
	}
	if orderBy == meta.PrimaryKey {
		return quoted(meta.PrimaryKey) + " " + direction, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotOrderable, orderBy)
}

// buildWhere turns a filter map into a WHERE clause. The reserved `query`
// key becomes a substring OR-match over the searchable fields; every other
// key must be a declared field and becomes an equality condition. Keys are
// processed in sorted order so the generated SQL is deterministic.
func (s *Store) buildWhere(meta *Metadata, filter map[string]interface{}, includeDeleted bool) (string, []interface{}, error) {
	var conditions []string
	var args []interface{}
	if meta.SoftDelete && !includeDeleted {
		conditions = append(conditions, quoted("deleted_at")+" IS NULL")
	}
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := filter[key]
		if key == "query" {
			if len(meta.Searchable) == 0 {
				return "", nil, fmt.Errorf("%w: %s has no searchable fields", ErrUnknownField, meta.Name)
			}
			args = append(args, fmt.Sprintf("%%%v%%", value))
			var ors []string
			for _, name := range meta.Searchable {
				ors = append(ors, fmt.Sprintf("%s ILIKE $%d", quoted(name), len(args)))
			}
			conditions = append(conditions, "("+strings.Join(ors, " OR ")+")")
			continue
		}
		if _, ok := meta.FieldByName(key); !ok && key != meta.PrimaryKey {
			return "", nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, meta.Name, key)
		}
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", quoted(key), len(args)))
	}
	if len(conditions) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args, nil
}

// GetByID loads one entity by primary key. Soft-deleted rows do not exist
// as far as reads are concerned.
func (s *Store) GetByID(ctx context.Context, meta *Metadata, id int64) (Entity, error) {
	where := fmt.Sprintf(" WHERE %s = $1", quoted(meta.PrimaryKey))
	if meta.SoftDelete {
		where += fmt.Sprintf(" AND %s IS NULL", quoted("deleted_at"))
	}
	query := fmt.Sprintf("SELECT %s FROM %s%s;", s.selectColumns(meta), s.table(meta), where)
	e, err := s.scan(meta, s.DB.QueryRowContext(ctx, query, id))
	if err == csql.ErrNoRows {
		return nil, ErrNotFound
	}
	return e, err
}

// FindBy lists entities matching the filter. The orderBy parameter and all
// filter keys are validated before any query runs.
func (s *Store) FindBy(ctx context.Context, meta *Metadata, filter map[string]interface{}, opt FindOptions) ([]Entity, error) {
	order, err := ParseOrderBy(meta, opt.OrderBy)
	if err != nil {
		return nil, err
	}
	where, args, err := s.buildWhere(meta, filter, opt.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	take := opt.Take
	if take <= 0 {
		take = DefaultTake
	}
	if take > MaxTake {
		take = MaxTake
	}
	skip := opt.Skip
	if skip < 0 {
		skip = 0
	}
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT %d OFFSET %d;",
		s.selectColumns(meta), s.table(meta), where, order, take, skip)
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entities []Entity
	for rows.Next() {
		e, err := s.scan(meta, rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// FindOne returns the first entity matching the filter, or ErrNotFound.
func (s *Store) FindOne(ctx context.Context, meta *Metadata, filter map[string]interface{}) (Entity, error) {
	entities, err := s.FindBy(ctx, meta, filter, FindOptions{Take: 1})
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, ErrNotFound
	}
	return entities[0], nil
}

func setFields(e Entity) []*Field {
	meta := e.Meta()
	b := e.base()
	var fields []*Field
	for i := range meta.Fields {
		field := &meta.Fields[i]
		if b.IsSet(field.Name) {
			fields = append(fields, field)
		}
	}
	return fields
}

// Insert persists a new entity, writing exactly the explicitly set fields,
// and backfills the generated identifier.
func (s *Store) Insert(ctx context.Context, e Entity) error {
	meta := e.Meta()
	b := e.base()
	now := time.Now().UTC()
	var cols []string
	var args []interface{}
	for _, field := range setFields(e) {
		cols = append(cols, quoted(field.Name))
		args = append(args, field.Get(e))
	}
	if meta.Timestamps {
		b.CreatedAt = now
		b.UpdatedAt = now
		cols = append(cols, quoted("created_at"), quoted("updated_at"))
		args = append(args, now, now)
	}
	var query string
	if len(cols) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s;", s.table(meta), quoted(meta.PrimaryKey))
	} else {
		placeholders := make([]string, len(args))
		for i := range args {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		}
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s;",
			s.table(meta), strings.Join(cols, ", "), strings.Join(placeholders, ", "), quoted(meta.PrimaryKey))
	}
	return s.DB.QueryRowContext(ctx, query, args...).Scan(&b.ID)
}

// Update writes the explicitly set fields of a persisted entity. The update
// policy mirrors Insert: whatever was set gets written, including zero
// values.
func (s *Store) Update(ctx context.Context, e Entity) error {
	meta := e.Meta()
	b := e.base()
	if !b.Exists() {
		return ErrNotInitialized
	}
	var sets []string
	var args []interface{}
	for _, field := range setFields(e) {
		args = append(args, field.Get(e))
		sets = append(sets, fmt.Sprintf("%s = $%d", quoted(field.Name), len(args)))
	}
	if meta.Timestamps {
		b.UpdatedAt = time.Now().UTC()
		args = append(args, b.UpdatedAt)
		sets = append(sets, fmt.Sprintf("%s = $%d", quoted("updated_at"), len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, b.ID)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d;",
		s.table(meta), strings.Join(sets, ", "), quoted(meta.PrimaryKey), len(args))
	result, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an entity. Soft-deleting entities get a deleted_at marker
// unless hard is requested or the entity does not support soft delete.
func (s *Store) Delete(ctx context.Context, e Entity, hard bool) error {
	meta := e.Meta()
	b := e.base()
	if !b.Exists() {
		return ErrNotInitialized
	}
	if meta.SoftDelete && !hard {
		now := time.Now().UTC()
		query := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2;",
			s.table(meta), quoted("deleted_at"), quoted(meta.PrimaryKey))
		if _, err := s.DB.ExecContext(ctx, query, now, b.ID); err != nil {
			return err
		}
		b.DeletedAt = &now
		return nil
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1;", s.table(meta), quoted(meta.PrimaryKey))
	_, err := s.DB.ExecContext(ctx, query, b.ID)
	return err
}

// Link records a source/target pair in a link table, idempotently: linking
// the same pair twice keeps a single row.
func (s *Store) Link(ctx context.Context, meta *Metadata, sourceID, targetID int64) error {
	if !meta.IsLinkTable() {
		return fmt.Errorf("%w: %s", ErrNotLinkable, meta.Name)
	}
	source, target := quoted(meta.Linkable[0]), quoted(meta.Linkable[1])
	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s = $1 AND %s = $2;", s.table(meta), source, target)
	var count int
	if err := s.DB.QueryRowContext(ctx, query, sourceID, targetID).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	e := meta.New()
	for name, id := range map[string]int64{meta.Linkable[0]: sourceID, meta.Linkable[1]: targetID} {
		field, _ := meta.FieldByName(name)
		if err := field.Set(e, id); err != nil {
			return err
		}
	}
	return s.Insert(ctx, e)
}

// FindOrCreate returns the entity whose field equals value, creating it
// first when it does not exist.
func (s *Store) FindOrCreate(ctx context.Context, meta *Metadata, fieldName string, value interface{}) (Entity, error) {
	e, err := s.FindOne(ctx, meta, map[string]interface{}{fieldName: value})
	if err == nil {
		return e, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	field, ok := meta.FieldByName(fieldName)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, meta.Name, fieldName)
	}
	e = meta.New()
	if err := field.Set(e, value); err != nil {
		return nil, err
	}
	if err := s.Insert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func columnType(kind Kind) string {
	switch kind {
	case KindString:
		return "text NOT NULL DEFAULT ''"
	case KindInt:
		return "bigint NOT NULL DEFAULT 0"
	case KindFloat:
		return "double precision NOT NULL DEFAULT 0"
	case KindBool:
		return "boolean NOT NULL DEFAULT false"
	case KindTime:
		return "timestamptz"
	}
	panic(fmt.Sprintf("model: unknown kind %d", kind))
}

// uniqueColumns are field names that get a unique index when declared.
var uniqueColumns = map[string]bool{
	"guid":  true,
	"email": true,
	"token": true,
}

// UpdateSchema creates the table and indexes of every registered entity if
// they do not exist yet. This runs at service startup; it never migrates
// existing columns.
func (s *Store) UpdateSchema(ctx context.Context) error {
	rlog := logger.FromContext(ctx)
	for _, name := range Names() {
		meta, _ := Lookup(name)
		cols := []string{quoted(meta.PrimaryKey) + " bigserial PRIMARY KEY"}
		for _, field := range meta.Fields {
			cols = append(cols, quoted(field.Name)+" "+columnType(field.Kind))
		}
		if meta.Timestamps {
			cols = append(cols, quoted("created_at")+" timestamptz NOT NULL DEFAULT now()")
			cols = append(cols, quoted("updated_at")+" timestamptz NOT NULL DEFAULT now()")
		}
		if meta.SoftDelete {
			cols = append(cols, quoted("deleted_at")+" timestamptz")
		}
		query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", s.table(meta), strings.Join(cols, ", "))
		if _, err := s.DB.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create table %s: %w", meta.Table, err)
		}
		for _, field := range meta.Fields {
			if !uniqueColumns[field.Name] {
				continue
			}
			index := fmt.Sprintf("%s_%s_key", meta.Table, field.Name)
			query := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s);",
				quoted(index), s.table(meta), quoted(field.Name))
			if _, err := s.DB.ExecContext(ctx, query); err != nil {
				return fmt.Errorf("create index %s: %w", index, err)
			}
		}
		rlog.Debugln("schema ready:", meta.Table)
	}
	return nil
}
