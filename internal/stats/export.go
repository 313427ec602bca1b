package stats

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
)

// exportBatchSize bounds memory per flush while streaming large exports.
const exportBatchSize = 1000

// Flusher is satisfied by http.ResponseWriter implementations that support
// incremental delivery. A nil flusher just buffers.
type Flusher interface {
	Flush()
}

type exportRow struct {
	Date           string
	ClientName     string
	AuthorName     string
	Summary        string
	Hours          float64
	Rate           float64
	Currency       string
	IsBlocked      bool
	BlockerDetails string
}

func (r exportRow) record() []string {
	blocked := "no"
	if r.IsBlocked {
		blocked = "yes"
	}
	return []string{
		r.Date,
		r.ClientName,
		r.AuthorName,
		r.Summary,
		strconv.FormatFloat(r.Hours, 'f', 2, 64),
		strconv.FormatFloat(r.Rate, 'f', 2, 64),
		strconv.FormatFloat(r.Hours*r.Rate, 'f', 2, 64),
		r.Currency,
		blocked,
		r.BlockerDetails,
	}
}

var exportHeader = []string{
	"date", "client", "author", "summary", "hours",
	"hourly_rate", "amount", "currency", "blocked", "blocker_details",
}

// ExportCSV streams the workspace's full log history as CSV, flushing every
// batch so large exports start arriving immediately. Keyset pagination on
// (date, id) keeps each query cheap regardless of history size.
func (s *Service) ExportCSV(ctx context.Context, workspaceID uuid.UUID, w io.Writer, f Flusher) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	lastDate := "￿" // sorts after every YYYY-MM-DD string
	lastID := uuid.Nil

	for {
		rows, err := s.db.Query(ctx,
			`SELECT l.date, l.id, c.company_name, u.name, l.summary, l.hours_worked,
			        c.hourly_rate, c.currency, l.is_blocked, l.blocker_details
			 FROM work_logs l
			 JOIN clients c ON c.id = l.client_id
			 JOIN users u ON u.id = l.user_id
			 WHERE c.workspace_id = $1 AND (l.date, l.id) < ($2, $3)
			 ORDER BY l.date DESC, l.id DESC
			 LIMIT $4`,
			workspaceID, lastDate, lastID, exportBatchSize)
		if err != nil {
			return fmt.Errorf("export query: %w", err)
		}

		n := 0
		for rows.Next() {
			var r exportRow
			var id uuid.UUID
			if err := rows.Scan(&r.Date, &id, &r.ClientName, &r.AuthorName, &r.Summary,
				&r.Hours, &r.Rate, &r.Currency, &r.IsBlocked, &r.BlockerDetails); err != nil {
				rows.Close()
				return fmt.Errorf("scan export row: %w", err)
			}
			if err := cw.Write(r.record()); err != nil {
				rows.Close()
				return fmt.Errorf("write csv row: %w", err)
			}
			lastDate, lastID = r.Date, id
			n++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("export rows: %w", err)
		}

		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("flush csv: %w", err)
		}
		if f != nil {
			f.Flush()
		}

		if n < exportBatchSize {
			return nil
		}
	}
}
