package cache

import (
	"bytes"
	"net/http"
	"time"

	"github.com/mitchellh/copystructure"
	"github.com/sirupsen/logrus"
)

// Entry is a stored response snapshot
type Entry struct {
	Data       []byte
	Status     int
	StatusText string
	Header     http.Header
	Timestamp  time.Time
	TTL        time.Duration
}

// Expired reports whether the entry is older than its TTL at now
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.Timestamp) > e.TTL
}

// ExpiresAt returns the instant after which the entry is expired
func (e *Entry) ExpiresAt() time.Time {
	return e.Timestamp.Add(e.TTL)
}

// Clone returns a deep copy of the entry
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c, err := copystructure.Copy(e)
	if err == nil {
		return c.(*Entry)
	}

	logrus.Debugf("Falling back to manual entry copy: %v", err)
	return &Entry{
		Data:       bytes.Clone(e.Data),
		Status:     e.Status,
		StatusText: e.StatusText,
		Header:     e.Header.Clone(),
		Timestamp:  e.Timestamp,
		TTL:        e.TTL,
	}
}
