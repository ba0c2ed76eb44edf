package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// AccountRow is one row of the accounts table.
type AccountRow struct {
	ID           int64
	Username     string
	PasswordHash string
	PasswordSalt string
	CreatedAt    time.Time
}

// CreateAccount inserts a new account row with an already-hashed password
// (hashing itself is internal/accountauth's job, per §6).
func (s *Store) CreateAccount(username, passwordHash, passwordSalt string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO accounts (username, password_hash, password_salt, created_at) VALUES (?, ?, ?, ?)`,
		username, passwordHash, passwordSalt, time.Now().Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetAccountByUsername looks up an account by its unique username.
func (s *Store) GetAccountByUsername(username string) (AccountRow, error) {
	var row AccountRow
	var createdAt int64
	err := s.db.QueryRow(
		`SELECT id, username, password_hash, password_salt, created_at FROM accounts WHERE username = ?`,
		username,
	).Scan(&row.ID, &row.Username, &row.PasswordHash, &row.PasswordSalt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return AccountRow{}, ErrNotFound
	}
	if err != nil {
		return AccountRow{}, err
	}
	row.CreatedAt = time.Unix(createdAt, 0)
	return row, nil
}

// AvatarRow is one row of the avatars table.
type AvatarRow struct {
	ID        int64
	AccountID int64
	Name      string
	State     string // JSON-encoded entity.Entity snapshot
	UpdatedAt time.Time
}

// CreateAvatar inserts a new avatar owned by accountID with initial state.
func (s *Store) CreateAvatar(accountID int64, name, state string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO avatars (account_id, name, state, updated_at) VALUES (?, ?, ?, ?)`,
		accountID, name, state, time.Now().Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LoadAvatar fetches one avatar by account and name.
func (s *Store) LoadAvatar(accountID int64, name string) (AvatarRow, error) {
	var row AvatarRow
	var updatedAt int64
	err := s.db.QueryRow(
		`SELECT id, account_id, name, state, updated_at FROM avatars WHERE account_id = ? AND name = ?`,
		accountID, name,
	).Scan(&row.ID, &row.AccountID, &row.Name, &row.State, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return AvatarRow{}, ErrNotFound
	}
	if err != nil {
		return AvatarRow{}, err
	}
	row.UpdatedAt = time.Unix(updatedAt, 0)
	return row, nil
}

// ListAvatars returns every avatar belonging to accountID, for character
// selection at login.
func (s *Store) ListAvatars(accountID int64) ([]AvatarRow, error) {
	rows, err := s.db.Query(`SELECT id, account_id, name, state, updated_at FROM avatars WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AvatarRow
	for rows.Next() {
		var row AvatarRow
		var updatedAt int64
		if err := rows.Scan(&row.ID, &row.AccountID, &row.Name, &row.State, &updatedAt); err != nil {
			return nil, err
		}
		row.UpdatedAt = time.Unix(updatedAt, 0)
		out = append(out, row)
	}
	return out, rows.Err()
}

// SaveAvatar overwrites an avatar's serialized state.
func (s *Store) SaveAvatar(avatarID int64, state string) error {
	_, err := s.db.Exec(`UPDATE avatars SET state = ?, updated_at = ? WHERE id = ?`, state, time.Now().Unix(), avatarID)
	return err
}

// TutorialsSeen returns the set of tutorial keys already shown to avatarID.
func (s *Store) TutorialsSeen(avatarID int64) (map[string]bool, error) {
	rows, err := s.db.Query(`SELECT tutorial FROM avatar_tutorials_seen WHERE avatar_id = ?`, avatarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seen := map[string]bool{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		seen[t] = true
	}
	return seen, rows.Err()
}

// MarkTutorialSeen records that avatarID has now seen tutorial.
func (s *Store) MarkTutorialSeen(avatarID int64, tutorial string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO avatar_tutorials_seen (avatar_id, tutorial) VALUES (?, ?)`,
		avatarID, tutorial,
	)
	return err
}

// ResetTutorials clears every tutorial-seen flag for avatarID.
func (s *Store) ResetTutorials(avatarID int64) error {
	_, err := s.db.Exec(`DELETE FROM avatar_tutorials_seen WHERE avatar_id = ?`, avatarID)
	return err
}

// FinishedQuests returns the quests avatarID has completed, keyed by ref
// string, with their completion time.
func (s *Store) FinishedQuests(avatarID int64) (map[string]time.Time, error) {
	rows, err := s.db.Query(`SELECT quest, finished_at FROM avatar_finished_quests WHERE avatar_id = ?`, avatarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]time.Time{}
	for rows.Next() {
		var quest string
		var finishedAt int64
		if err := rows.Scan(&quest, &finishedAt); err != nil {
			return nil, err
		}
		out[quest] = time.Unix(finishedAt, 0)
	}
	return out, rows.Err()
}

// MarkQuestFinished records avatarID's completion of quest.
func (s *Store) MarkQuestFinished(avatarID int64, quest string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO avatar_finished_quests (avatar_id, quest, finished_at) VALUES (?, ?, ?)`,
		avatarID, quest, time.Now().Unix(),
	)
	return err
}
