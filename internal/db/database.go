package db

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Database persists board snapshots and workspace membership. The action
// log and undo history are deliberately never written here: boards are
// volatile, and what survives a restart is only the drawable content.
type Database struct {
	db *sql.DB
}

type Workspace struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type BoardRecord struct {
	WorkspaceID string
	Data        []byte // JSON-encoded snapshot
	Elements    int
	UpdatedAt   time.Time
}

func New(dbPath string) (*Database, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	log.Printf("Database initialized at %s", dbPath)
	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS workspaces (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS board_snapshots (
		workspace_id TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		elements INTEGER DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (workspace_id) REFERENCES workspaces(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS workspace_members (
		workspace_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (workspace_id, user_id),
		FOREIGN KEY (workspace_id) REFERENCES workspaces(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_workspace_members_user_id ON workspace_members(user_id);
	`

	_, err := db.Exec(schema)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Workspace operations

func (d *Database) CreateWorkspace(id, name string) error {
	_, err := d.db.Exec(
		"INSERT OR IGNORE INTO workspaces (id, name) VALUES (?, ?)",
		id, name,
	)
	return err
}

func (d *Database) GetWorkspace(id string) (*Workspace, error) {
	row := d.db.QueryRow(
		"SELECT id, name, created_at, updated_at FROM workspaces WHERE id = ?",
		id,
	)

	var w Workspace
	err := row.Scan(&w.ID, &w.Name, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (d *Database) ListWorkspaces(limit, offset int) ([]Workspace, error) {
	rows, err := d.db.Query(
		"SELECT id, name, created_at, updated_at FROM workspaces ORDER BY updated_at DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workspaces []Workspace
	for rows.Next() {
		var w Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		workspaces = append(workspaces, w)
	}
	return workspaces, rows.Err()
}

func (d *Database) DeleteWorkspace(id string) error {
	_, err := d.db.Exec("DELETE FROM workspaces WHERE id = ?", id)
	return err
}

// Board snapshot operations

func (d *Database) SaveBoard(workspaceID string, data []byte, elements int) error {
	// Ensure the workspace row exists so the foreign key holds
	if err := d.CreateWorkspace(workspaceID, ""); err != nil {
		return err
	}

	_, err := d.db.Exec(`
		INSERT INTO board_snapshots (workspace_id, data, elements, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(workspace_id) DO UPDATE SET
			data = excluded.data,
			elements = excluded.elements,
			updated_at = CURRENT_TIMESTAMP
	`, workspaceID, data, elements)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(
		"UPDATE workspaces SET updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		workspaceID,
	)
	return err
}

func (d *Database) LoadBoard(workspaceID string) ([]byte, error) {
	var data []byte
	err := d.db.QueryRow(
		"SELECT data FROM board_snapshots WHERE workspace_id = ?",
		workspaceID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return data, err
}

func (d *Database) ListBoards() ([]BoardRecord, error) {
	rows, err := d.db.Query(
		"SELECT workspace_id, data, elements, updated_at FROM board_snapshots ORDER BY updated_at DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boards []BoardRecord
	for rows.Next() {
		var b BoardRecord
		if err := rows.Scan(&b.WorkspaceID, &b.Data, &b.Elements, &b.UpdatedAt); err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

func (d *Database) DeleteBoard(workspaceID string) error {
	_, err := d.db.Exec("DELETE FROM board_snapshots WHERE workspace_id = ?", workspaceID)
	return err
}

// Membership operations

func (d *Database) AddMember(workspaceID, userID string) error {
	if err := d.CreateWorkspace(workspaceID, ""); err != nil {
		return err
	}
	_, err := d.db.Exec(
		"INSERT OR IGNORE INTO workspace_members (workspace_id, user_id) VALUES (?, ?)",
		workspaceID, userID,
	)
	return err
}

func (d *Database) RemoveMember(workspaceID, userID string) error {
	_, err := d.db.Exec(
		"DELETE FROM workspace_members WHERE workspace_id = ? AND user_id = ?",
		workspaceID, userID,
	)
	return err
}

func (d *Database) IsMember(workspaceID, userID string) (bool, error) {
	var n int
	err := d.db.QueryRow(
		"SELECT COUNT(*) FROM workspace_members WHERE workspace_id = ? AND user_id = ?",
		workspaceID, userID,
	).Scan(&n)
	return n > 0, err
}

func (d *Database) ListMembers(workspaceID string) ([]string, error) {
	rows, err := d.db.Query(
		"SELECT user_id FROM workspace_members WHERE workspace_id = ? ORDER BY added_at ASC",
		workspaceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// Stats

func (d *Database) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var workspaceCount int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM workspaces").Scan(&workspaceCount); err != nil {
		return nil, err
	}
	stats["workspace_count"] = workspaceCount

	var boardCount int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM board_snapshots").Scan(&boardCount); err != nil {
		return nil, err
	}
	stats["saved_board_count"] = boardCount

	return stats, nil
}
