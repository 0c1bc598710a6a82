package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/deskflow/alfred/internal/core"
)

const (
	IssueStatusOpen     = "open"
	IssueStatusTicketed = "ticketed"
	IssueStatusResolved = "resolved"
)

// Issue is one tracked support conversation: who asked, what about,
// whether it ended in a ticket, and the transcript at the time of
// logging.
type Issue struct {
	ID              int64
	ConversationKey string
	EmployeeName    string
	EmployeeEmail   string
	Category        string
	Subject         string
	Transcript      []core.Message
	TicketID        *int64
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Issues struct {
	db *sql.DB
}

func NewIssues(db *sql.DB) *Issues {
	return &Issues{db: db}
}

func (r *Issues) Create(ctx context.Context, issue Issue) (int64, error) {
	transcript, err := json.Marshal(issue.Transcript)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal transcript: %w", err)
	}

	if issue.Status == "" {
		issue.Status = IssueStatusOpen
	}

	query := `INSERT INTO issues (conversation_key, employee_name, employee_email, category, subject, transcript, ticket_id, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		issue.ConversationKey, issue.EmployeeName, issue.EmployeeEmail,
		issue.Category, issue.Subject, string(transcript), issue.TicketID, issue.Status)
	if err != nil {
		return 0, fmt.Errorf("failed to insert issue: %w", err)
	}
	return res.LastInsertId()
}

// AttachTicket records the help desk ticket filed for an issue and moves
// it to the ticketed status.
func (r *Issues) AttachTicket(ctx context.Context, id, ticketID int64) error {
	query := `UPDATE issues SET ticket_id = ?, status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, ticketID, IssueStatusTicketed, id); err != nil {
		return fmt.Errorf("failed to attach ticket: %w", err)
	}
	return nil
}

// UpdateTranscript replaces an issue's stored transcript with the
// current one, so the log follows the conversation instead of freezing
// at the turn that opened it.
func (r *Issues) UpdateTranscript(ctx context.Context, id int64, transcript []core.Message) error {
	encoded, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	query := `UPDATE issues SET transcript = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, string(encoded), id); err != nil {
		return fmt.Errorf("failed to update transcript: %w", err)
	}
	return nil
}

// ResolveByConversation closes every open issue on a conversation key.
func (r *Issues) ResolveByConversation(ctx context.Context, conversationKey string) error {
	query := `UPDATE issues SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE conversation_key = ? AND status = ?`
	if _, err := r.db.ExecContext(ctx, query, IssueStatusResolved, conversationKey, IssueStatusOpen); err != nil {
		return fmt.Errorf("failed to resolve issues: %w", err)
	}
	return nil
}

// OpenByConversation returns the newest open issue for a conversation
// key, or nil when there is none.
func (r *Issues) OpenByConversation(ctx context.Context, conversationKey string) (*Issue, error) {
	query := `SELECT id, conversation_key, employee_name, employee_email, category, subject, transcript, ticket_id, status, created_at, updated_at
		FROM issues WHERE conversation_key = ? AND status = ? ORDER BY id DESC LIMIT 1`
	issue, err := r.scanOne(r.db.QueryRowContext(ctx, query, conversationKey, IssueStatusOpen))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query issue: %w", err)
	}
	return issue, nil
}

// ListByStatus returns issues in a status, newest first.
func (r *Issues) ListByStatus(ctx context.Context, status string, limit int) ([]Issue, error) {
	query := `SELECT id, conversation_key, employee_name, employee_email, category, subject, transcript, ticket_id, status, created_at, updated_at
		FROM issues WHERE status = ? ORDER BY id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer rows.Close()

	var issues []Issue
	for rows.Next() {
		issue, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, *issue)
	}
	return issues, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Issues) scanOne(row rowScanner) (*Issue, error) {
	var issue Issue
	var transcript string
	var ticketID sql.NullInt64

	err := row.Scan(&issue.ID, &issue.ConversationKey, &issue.EmployeeName, &issue.EmployeeEmail,
		&issue.Category, &issue.Subject, &transcript, &ticketID, &issue.Status,
		&issue.CreatedAt, &issue.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if ticketID.Valid {
		id := ticketID.Int64
		issue.TicketID = &id
	}
	if transcript != "" {
		if err := json.Unmarshal([]byte(transcript), &issue.Transcript); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
		}
	}
	return &issue, nil
}
