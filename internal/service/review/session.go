package review

import "detectreview/internal/model"

// NoCursor marks an empty session.
const NoCursor = -1

// Session is the local view of the review store: records in store order and
// the index of the displayed one. Cursor is NoCursor exactly when Records is
// empty, otherwise it is within bounds.
type Session struct {
	Records []model.CapturedRecord `json:"records"`
	Cursor  int                    `json:"cursor"`
}

func newSession(records []model.CapturedRecord) Session {
	s := Session{Records: records, Cursor: NoCursor}
	if len(records) > 0 {
		s.Cursor = 0
	}
	return s
}

// Len returns the number of records.
func (s Session) Len() int {
	return len(s.Records)
}

// Current returns the record under the cursor.
func (s Session) Current() (model.CapturedRecord, bool) {
	if s.Cursor == NoCursor {
		return model.CapturedRecord{}, false
	}
	return s.Records[s.Cursor], true
}

// indexOf returns the position of the record with the given id, or -1.
func (s Session) indexOf(id int64) int {
	for i, r := range s.Records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// clone copies the record slice so callers never share backing arrays with
// the proxy.
func (s Session) clone() Session {
	out := Session{Cursor: s.Cursor}
	if s.Records != nil {
		out.Records = make([]model.CapturedRecord, len(s.Records))
		copy(out.Records, s.Records)
	}
	return out
}

// navigate moves the cursor by delta, clamped to the ends.
func (s Session) navigate(delta int) Session {
	if s.Cursor == NoCursor {
		return s
	}
	next := s.Cursor + delta
	if next < 0 {
		next = 0
	}
	if next >= len(s.Records) {
		next = len(s.Records) - 1
	}
	s.Cursor = next
	return s
}

// without removes the record at index i and repairs the cursor.
func (s Session) without(i int) Session {
	records := make([]model.CapturedRecord, 0, len(s.Records)-1)
	records = append(records, s.Records[:i]...)
	records = append(records, s.Records[i+1:]...)

	cursor := s.Cursor
	switch {
	case len(records) == 0:
		cursor = NoCursor
	case i < cursor:
		cursor--
	case cursor > len(records)-1:
		cursor = len(records) - 1
	}
	return Session{Records: records, Cursor: cursor}
}
