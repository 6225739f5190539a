package store

import (
	"fmt"
)

// Decision outcomes as stored in the audit log.
const (
	OutcomeForward   = "forward"
	OutcomeIntercept = "intercept"
)

// Decision represents a single audited redirect decision.
type Decision struct {
	ID           string
	Timestamp    string
	Method       string
	Host         string
	Path         string
	Query        string
	Outcome      string
	Location     string
	StatusCode   int
	LatencyMs    int64
	ErrorMessage string
	RemoteAddr   string
}

// DecisionStats holds aggregate statistics over the audit log.
type DecisionStats struct {
	Total      int64
	Forwards   int64
	Intercepts int64
	Errors     int64
}

// InsertDecision stores a new decision record. The caller is responsible
// for providing a unique ID (typically a UUID).
func (s *Store) InsertDecision(d *Decision) error {
	_, err := s.writer.Exec(`
		INSERT INTO decisions (
			id, timestamp, method, host, path, query,
			outcome, location, status_code, latency_ms,
			error_message, remote_addr
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Timestamp, d.Method, d.Host, d.Path, d.Query,
		d.Outcome, d.Location, d.StatusCode, d.LatencyMs,
		d.ErrorMessage, d.RemoteAddr,
	)
	if err != nil {
		return fmt.Errorf("store: insert decision: %w", err)
	}
	return nil
}

// RecentDecisions returns the most recent decisions, newest first.
func (s *Store) RecentDecisions(limit int) ([]*Decision, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.reader.Query(`
		SELECT id, timestamp, method, host, path, query,
		       outcome, location, status_code, latency_ms,
		       error_message, remote_addr
		FROM decisions
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query decisions: %w", err)
	}
	defer rows.Close()

	var out []*Decision
	for rows.Next() {
		d := &Decision{}
		if err := rows.Scan(
			&d.ID, &d.Timestamp, &d.Method, &d.Host, &d.Path, &d.Query,
			&d.Outcome, &d.Location, &d.StatusCode, &d.LatencyMs,
			&d.ErrorMessage, &d.RemoteAddr,
		); err != nil {
			return nil, fmt.Errorf("store: scan decision: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate decisions: %w", err)
	}
	return out, nil
}

// Stats returns aggregate counts over the whole audit log.
func (s *Store) Stats() (*DecisionStats, error) {
	stats := &DecisionStats{}
	err := s.reader.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN error_message != '' THEN 1 ELSE 0 END), 0)
		FROM decisions`, OutcomeForward, OutcomeIntercept).
		Scan(&stats.Total, &stats.Forwards, &stats.Intercepts, &stats.Errors)
	if err != nil {
		return nil, fmt.Errorf("store: decision stats: %w", err)
	}
	return stats, nil
}
