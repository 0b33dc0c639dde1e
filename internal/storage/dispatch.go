package storage

import "github.com/tazhate/strata/internal/domain"

// === Dispatch log ===

func (s *Storage) LogDispatch(r *domain.DispatchRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO dispatch_log (id, series_id, user_id, category, delivered, reason, sent_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SeriesID, r.UserID, r.Category, r.Delivered, r.Reason, r.SentAt,
	)
	return err
}

// ListDispatches returns the delivery decisions for a series, oldest first.
func (s *Storage) ListDispatches(seriesID int64) ([]*domain.DispatchRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, series_id, user_id, category, delivered, reason, sent_at
		 FROM dispatch_log WHERE series_id = ? ORDER BY sent_at, rowid`,
		seriesID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*domain.DispatchRecord
	for rows.Next() {
		r := &domain.DispatchRecord{}
		if err := rows.Scan(&r.ID, &r.SeriesID, &r.UserID, &r.Category, &r.Delivered, &r.Reason, &r.SentAt); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}
