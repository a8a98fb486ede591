package flash

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/stripes-go/stripes/internal/errors"
)

// SQLStore keeps scopes in a PostgreSQL table:
//
//	CREATE TABLE stripes_flash (
//	    session_id VARCHAR(128) NOT NULL,
//	    scope_id   VARCHAR(32)  NOT NULL,
//	    data       BYTEA        NOT NULL,
//	    expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
//	    PRIMARY KEY (session_id, scope_id)
//	);
type SQLStore struct {
	db    *sqlx.DB
	opts  *options
	mutex sync.Mutex
}

// NewSQLStore creates a SQL-backed store
func NewSQLStore(db *sqlx.DB, opts ...Option) *SQLStore {
	return &SQLStore{db: db, opts: applyOptions(opts)}
}

// Create reserves an id by inserting an empty row
func (s *SQLStore) Create(ctx context.Context, session string) (*Scope, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := fmt.Sprintf(`INSERT INTO %s (session_id, scope_id, data, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, scope_id) DO NOTHING`, s.opts.table)

	for {
		scope := NewScope(session, s.opts.nextID(), s.opts.timeout)
		data, err := json.Marshal(scope)
		if err != nil {
			return nil, errors.Infrastructure("encode flash scope", err)
		}
		res, err := s.db.ExecContext(ctx, query, session, scope.ID, data, s.opts.now().Add(scope.Timeout))
		if err != nil {
			return nil, errors.Infrastructure("reserve flash scope", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			return scope, nil
		}
	}
}

// Get loads a scope
func (s *SQLStore) Get(ctx context.Context, session, id string) (*Scope, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE session_id = $1 AND scope_id = $2`, s.opts.table)
	var data []byte
	return s.decode(s.db.GetContext(ctx, &data, query, session, id), &data)
}

// Consume deletes a scope and returns it unless it has expired
func (s *SQLStore) Consume(ctx context.Context, session, id string) (*Scope, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1 AND scope_id = $2 RETURNING data`, s.opts.table)
	var data []byte
	scope, err := s.decode(s.db.GetContext(ctx, &data, query, session, id), &data)
	if err != nil || scope == nil || scope.Expired(s.opts.now()) {
		return nil, err
	}
	return scope, nil
}

func (s *SQLStore) decode(err error, data *[]byte) (*Scope, error) {
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Infrastructure("load flash scope", err)
	}
	scope := &Scope{}
	if err := json.Unmarshal(*data, scope); err != nil {
		return nil, errors.Infrastructure("decode flash scope", err)
	}
	return scope, nil
}

// Complete sweeps the session, starts the scope and stores its values
func (s *SQLStore) Complete(ctx context.Context, scope *Scope) error {
	if err := s.Sweep(ctx, scope.Session); err != nil {
		return err
	}

	now := s.opts.now()
	scope.start(now)
	data, err := json.Marshal(scope)
	if err != nil {
		return errors.Infrastructure("encode flash scope", err)
	}

	query := fmt.Sprintf(`UPDATE %s SET data = $3, expires_at = $4 WHERE session_id = $1 AND scope_id = $2`, s.opts.table)
	if _, err := s.db.ExecContext(ctx, query, scope.Session, scope.ID, data, now.Add(scope.Timeout)); err != nil {
		return errors.Infrastructure("save flash scope", err)
	}
	return nil
}

// Sweep deletes the session's expired rows
func (s *SQLStore) Sweep(ctx context.Context, session string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1 AND expires_at < $2`, s.opts.table)
	if _, err := s.db.ExecContext(ctx, query, session, s.opts.now()); err != nil {
		return errors.Infrastructure("sweep flash scopes", err)
	}
	return nil
}
