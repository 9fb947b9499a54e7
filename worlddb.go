package conduit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// field kinds stored in the fields table.
const (
	kindInt    = "int"
	kindString = "string"
	kindBytes  = "bytes"
	kindRef    = "ref"
)

// WorldDB saves and loads a MemStore to a SQLite file.
type WorldDB struct {
	db *sql.DB
}

// OpenWorldDB opens or creates the database at path.
func OpenWorldDB(path string) (*WorldDB, error) {
	if path == "" {
		return nil, errors.New("conduit: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &WorldDB{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			user_id INTEGER NOT NULL,
			id INTEGER NOT NULL,
			prefab TEXT NOT NULL,
			px REAL NOT NULL, py REAL NOT NULL, pz REAL NOT NULL,
			qx REAL NOT NULL, qy REAL NOT NULL, qz REAL NOT NULL, qw REAL NOT NULL,
			PRIMARY KEY (user_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS fields (
			user_id INTEGER NOT NULL,
			id INTEGER NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			int_val INTEGER,
			str_val TEXT,
			blob_val BLOB,
			PRIMARY KEY (user_id, id, name, kind),
			FOREIGN KEY (user_id, id) REFERENCES entities(user_id, id) ON DELETE CASCADE
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (w *WorldDB) Close() error {
	return w.db.Close()
}

// Save replaces the saved world with the contents of s in one transaction.
func (w *WorldDB) Save(ctx context.Context, s *MemStore) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{`DELETE FROM fields;`, `DELETE FROM entities;`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	insEntity, err := tx.PrepareContext(ctx, `INSERT INTO entities
		(user_id, id, prefab, px, py, pz, qx, qy, qz, qw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return err
	}
	defer insEntity.Close()

	insField, err := tx.PrepareContext(ctx, `INSERT INTO fields
		(user_id, id, name, kind, int_val, str_val, blob_val)
		VALUES (?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return err
	}
	defer insField.Close()

	for _, r := range s.Records() {
		if _, err := insEntity.ExecContext(ctx, r.ID.UserID, int64(r.ID.ID), r.Prefab,
			r.Position[0], r.Position[1], r.Position[2],
			r.Rotation[0], r.Rotation[1], r.Rotation[2], r.Rotation[3]); err != nil {
			return fmt.Errorf("conduit: save entity %s: %w", r.ID, err)
		}
		for f, v := range r.Ints {
			if _, err := insField.ExecContext(ctx, r.ID.UserID, int64(r.ID.ID), string(f), kindInt, v, nil, nil); err != nil {
				return err
			}
		}
		for f, v := range r.Strings {
			if _, err := insField.ExecContext(ctx, r.ID.UserID, int64(r.ID.ID), string(f), kindString, nil, v, nil); err != nil {
				return err
			}
		}
		for f, v := range r.Bytes {
			if v == nil {
				v = []byte{}
			}
			if _, err := insField.ExecContext(ctx, r.ID.UserID, int64(r.ID.ID), string(f), kindBytes, nil, nil, v); err != nil {
				return err
			}
		}
		for f, v := range r.Refs {
			if _, err := insField.ExecContext(ctx, r.ID.UserID, int64(r.ID.ID), string(f), kindRef, nil, v.String(), nil); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// Load reads the saved world into a new MemStore with the given cell size.
func (w *WorldDB) Load(ctx context.Context, cellSize float64) (*MemStore, error) {
	records := make(map[EntityID]*EntityRecord)
	var order []EntityID

	rows, err := w.db.QueryContext(ctx, `SELECT user_id, id, prefab, px, py, pz, qx, qy, qz, qw
		FROM entities ORDER BY user_id, id;`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			r   EntityRecord
			cnt int64
		)
		if err := rows.Scan(&r.ID.UserID, &cnt, &r.Prefab,
			&r.Position[0], &r.Position[1], &r.Position[2],
			&r.Rotation[0], &r.Rotation[1], &r.Rotation[2], &r.Rotation[3]); err != nil {
			_ = rows.Close()
			return nil, err
		}
		r.ID.ID = uint32(cnt)
		r.Ints = make(map[Field]int)
		r.Strings = make(map[Field]string)
		r.Bytes = make(map[Field][]byte)
		r.Refs = make(map[Field]EntityID)
		records[r.ID] = &r
		order = append(order, r.ID)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = w.db.QueryContext(ctx, `SELECT user_id, id, name, kind, int_val, str_val, blob_val FROM fields;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id     EntityID
			cnt    int64
			name   string
			kind   string
			intVal sql.NullInt64
			strVal sql.NullString
			blob   []byte
		)
		if err := rows.Scan(&id.UserID, &cnt, &name, &kind, &intVal, &strVal, &blob); err != nil {
			return nil, err
		}
		id.ID = uint32(cnt)
		r, ok := records[id]
		if !ok {
			continue
		}
		f := Field(name)
		switch kind {
		case kindInt:
			r.Ints[f] = int(intVal.Int64)
		case kindString:
			r.Strings[f] = strVal.String
		case kindBytes:
			r.Bytes[f] = blob
		case kindRef:
			ref, err := ParseEntityID(strVal.String)
			if err != nil {
				return nil, err
			}
			r.Refs[f] = ref
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s := NewMemStore(cellSize)
	for _, id := range order {
		s.Restore(*records[id])
	}
	return s, nil
}
