package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"piiindex/internal/core"
)

// remediationBucket is the single bbolt bucket holding every rejected
// write, keyed by a monotonically increasing sequence number so repeated
// rejections of the same (key, ref) pair are never silently collapsed.
const remediationBucket = "overflow_remediation"

// RemediationEntry records one write a Store backend refused with
// core.ErrPostingOverflow, so the key can be remediated offline.
type RemediationEntry struct {
	Key       string    `json:"key"`
	Ref       string    `json:"ref"`
	FieldTag  string    `json:"field_tag"`
	RejectedAt time.Time `json:"rejected_at"`
}

// RemediationLedger is an append-only, crash-durable record of overflow
// rejections an operator can later triage (split the value across a
// narrower field, raise the backend's posting cap, or accept data loss
// for that reference). One bucket, opened once at startup.
type RemediationLedger struct {
	db *bolt.DB
}

// OpenRemediationLedger opens (or creates) the ledger at path.
func OpenRemediationLedger(path string) (*RemediationLedger, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open remediation ledger %q: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(remediationBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create remediation bucket: %w", err)
	}
	return &RemediationLedger{db: db}, nil
}

// Record appends one rejected write to the ledger.
func (l *RemediationLedger) Record(entry RemediationEntry) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(remediationBucket))
		if b == nil {
			return fmt.Errorf("%w: remediation bucket missing", core.ErrIntegrity)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		payload, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), payload)
	})
}

// All returns every recorded rejection, oldest first.
func (l *RemediationLedger) All() ([]RemediationEntry, error) {
	var out []RemediationEntry
	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(remediationBucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var entry RemediationEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			out = append(out, entry)
			return nil
		})
	})
	return out, err
}

// Close releases the underlying bbolt file handle.
func (l *RemediationLedger) Close() error {
	return l.db.Close()
}

func seqKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%020d", seq))
}
