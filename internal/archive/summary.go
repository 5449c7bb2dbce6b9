package archive

import (
	"time"

	"github.com/BTreeMap/TGArchive/internal/models"
)

// NotAvailable is shown for range ends when nothing was written.
const NotAvailable = "N/A"

// Summary reports what one run did.
type Summary struct {
	// StartOffset is the message ID the run resumed from, zero for the newest.
	StartOffset int
	// LastOffset is the last message ID saved as progress, filtered ones included.
	LastOffset int
	Window     models.Window

	Count        int
	Skipped      int
	SaveFailures int

	// First and Last are the timestamps of the first and last written lines in
	// write order. Traversal is newest first, so Last is the oldest message.
	First string
	Last  string

	ReachedWindowStart bool
	Elapsed            time.Duration
}

func (s *Summary) record(ts string) {
	if s.First == "" {
		s.First = ts
	}
	s.Last = ts
	s.Count++
}

// Rate is the number of written messages per second. A run that took no
// measurable time reports its count.
func (s Summary) Rate() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return float64(s.Count)
	}
	return float64(s.Count) / secs
}

// Range renders the covered range as "Last to First", oldest message first.
func (s Summary) Range() string {
	last, first := s.Last, s.First
	if last == "" {
		last = NotAvailable
	}
	if first == "" {
		first = NotAvailable
	}
	return last + " to " + first
}
