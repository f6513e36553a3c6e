package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Shofol/CritVid-sub002/internal/critique"
)

const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		contentId TEXT NOT NULL UNIQUE,
		createdAt INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audio (
		sessionId TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
		preview BLOB NOT NULL,
		raw BLOB,
		dual INTEGER NOT NULL DEFAULT 0,
		mimeType TEXT NOT NULL,
		sampleRate INTEGER NOT NULL,
		channels INTEGER NOT NULL,
		duration INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS strokes (
		sessionId TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		sequenceNumber INTEGER NOT NULL,
		points TEXT NOT NULL,
		color TEXT NOT NULL,
		width REAL NOT NULL,
		timestamp REAL NOT NULL,
		duration REAL NOT NULL,
		PRIMARY KEY (sessionId, sequenceNumber)
	);

	CREATE TABLE IF NOT EXISTS transportActions (
		sessionId TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		sequenceNumber INTEGER NOT NULL,
		type TEXT NOT NULL,
		timestampMs INTEGER NOT NULL,
		videoTime REAL NOT NULL,
		PRIMARY KEY (sessionId, sequenceNumber)
	);
`

// SQLiteStore keeps sessions in a local SQLite database. A session spans four
// tables and is always written in one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path with WAL and
// applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s, err := newSQLiteStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	// One writer at a time; this also keeps ":memory:" databases on a
	// single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save replaces whatever is stored under sess.ContentID.
func (s *SQLiteStore) Save(ctx context.Context, sess *critique.Session) (err error) {
	if err := checkSession(sess); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = deleteContent(ctx, tx, sess.ContentID); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, contentId, createdAt) VALUES (?, ?, ?)`,
		sess.ID, sess.ContentID, sess.CreatedAt.UnixNano()); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if a := sess.Audio; a != nil {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO audio (sessionId, preview, raw, dual, mimeType, sampleRate, channels, duration)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, sess.ID, nonNil(a.Preview), a.Raw, a.Dual(), a.MIMEType, a.SampleRate, a.Channels, int64(a.Duration)); err != nil {
			return fmt.Errorf("insert audio: %w", err)
		}
	}

	for i, st := range sess.Strokes {
		var points []byte
		points, err = critique.MarshalStrokePoints(st.Points)
		if err != nil {
			return fmt.Errorf("encode stroke %d: %w", i, err)
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO strokes (sessionId, sequenceNumber, points, color, width, timestamp, duration)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, sess.ID, i, string(points), st.Color, st.Width, st.Timestamp, st.Duration); err != nil {
			return fmt.Errorf("insert stroke %d: %w", i, err)
		}
	}

	for i, a := range sess.TransportActions {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO transportActions (sessionId, sequenceNumber, type, timestampMs, videoTime)
			VALUES (?, ?, ?, ?, ?)
		`, sess.ID, i, string(a.Type), a.TimestampMS, a.VideoTime); err != nil {
			return fmt.Errorf("insert transport action %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// Load reads the session stored under contentID.
func (s *SQLiteStore) Load(ctx context.Context, contentID string) (*critique.Session, error) {
	var sess critique.Session
	var createdAt int64
	row := s.db.QueryRowContext(ctx,
		`SELECT id, contentId, createdAt FROM sessions WHERE contentId = ?`, contentID)
	if err := row.Scan(&sess.ID, &sess.ContentID, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(contentID)
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.CreatedAt = timeFromUnixNano(createdAt)

	audio, err := s.audioForSession(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	sess.Audio = audio

	if sess.Strokes, err = s.strokesForSession(ctx, sess.ID); err != nil {
		return nil, err
	}
	if sess.TransportActions, err = s.actionsForSession(ctx, sess.ID); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SQLiteStore) audioForSession(ctx context.Context, sessionID string) (*critique.AudioArtifact, error) {
	var a critique.AudioArtifact
	var dual bool
	var duration int64
	row := s.db.QueryRowContext(ctx, `
		SELECT preview, raw, dual, mimeType, sampleRate, channels, duration
		FROM audio
		WHERE sessionId = ?
	`, sessionID)
	if err := row.Scan(&a.Preview, &a.Raw, &dual, &a.MIMEType, &a.SampleRate, &a.Channels, &duration); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan audio: %w", err)
	}
	a.Duration = time.Duration(duration)
	if dual && a.Raw == nil {
		a.Raw = []byte{}
	}
	if !dual {
		a.Raw = nil
	}
	return &a, nil
}

func (s *SQLiteStore) strokesForSession(ctx context.Context, sessionID string) ([]critique.Stroke, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT points, color, width, timestamp, duration
		FROM strokes
		WHERE sessionId = ?
		ORDER BY sequenceNumber ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query strokes: %w", err)
	}
	defer rows.Close()

	var strokes []critique.Stroke
	for rows.Next() {
		var st critique.Stroke
		var points string
		if err := rows.Scan(&points, &st.Color, &st.Width, &st.Timestamp, &st.Duration); err != nil {
			return nil, fmt.Errorf("scan stroke: %w", err)
		}
		if st.Points, err = critique.UnmarshalStrokePoints([]byte(points)); err != nil {
			return nil, err
		}
		strokes = append(strokes, st)
	}
	return strokes, rows.Err()
}

func (s *SQLiteStore) actionsForSession(ctx context.Context, sessionID string) ([]critique.TransportAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, timestampMs, videoTime
		FROM transportActions
		WHERE sessionId = ?
		ORDER BY sequenceNumber ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query transport actions: %w", err)
	}
	defer rows.Close()

	var actions []critique.TransportAction
	for rows.Next() {
		var a critique.TransportAction
		var typ string
		if err := rows.Scan(&typ, &a.TimestampMS, &a.VideoTime); err != nil {
			return nil, fmt.Errorf("scan transport action: %w", err)
		}
		a.Type = critique.ActionType(typ)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// Delete removes the session stored under contentID.
func (s *SQLiteStore) Delete(ctx context.Context, contentID string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var id string
	if err = tx.QueryRowContext(ctx, `SELECT id FROM sessions WHERE contentId = ?`, contentID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(contentID)
		}
		return fmt.Errorf("scan session: %w", err)
	}
	if err = deleteContent(ctx, tx, contentID); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// List returns every stored session, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.contentId, s.createdAt,
			COALESCE(a.duration, 0), COALESCE(a.dual, 0),
			(SELECT COUNT(*) FROM strokes WHERE sessionId = s.id),
			(SELECT COUNT(*) FROM transportActions WHERE sessionId = s.id)
		FROM sessions s
		LEFT JOIN audio a ON a.sessionId = s.id
		ORDER BY s.createdAt DESC, s.contentId ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var createdAt int64
		var duration int64
		if err := rows.Scan(&sum.ID, &sum.ContentID, &createdAt, &duration, &sum.Dual,
			&sum.Strokes, &sum.Actions); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.CreatedAt = timeFromUnixNano(createdAt)
		sum.Duration = time.Duration(duration)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// deleteContent removes every row belonging to contentID. Child rows are
// deleted explicitly so the store does not depend on foreign_keys being on.
func deleteContent(ctx context.Context, tx *sql.Tx, contentID string) error {
	const sub = `(SELECT id FROM sessions WHERE contentId = ?)`
	for _, table := range []string{"audio", "strokes", "transportActions"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE sessionId IN `+sub, contentID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE contentId = ?`, contentID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// timeFromUnixNano reads back a createdAt column. Sessions are stamped in
// UTC and come back in UTC.
func timeFromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
