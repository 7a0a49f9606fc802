package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/wippyai/structview"
	"github.com/wippyai/structview/view"
)

var (
	ErrNotFound = errors.New("snapshot not found")
	ErrMismatch = errors.New("snapshot does not match view")
)

var (
	rootBucket    = []byte("snapshots")
	recordsBucket = []byte("records")
	metaKey       = []byte("meta")
)

// Info describes a stored snapshot.
type Info struct {
	ID      ksuid.KSUID
	Schema  string
	Stride  int
	Count   int
	Created time.Time
}

type meta struct {
	Schema string `msgpack:"schema"`
	Stride int    `msgpack:"stride"`
	Count  int    `msgpack:"count"`
}

// Store keeps decoded copies of record tables in a bbolt file. Each snapshot
// is a bucket named by its KSUID, so snapshots list in creation order.
type Store struct {
	db     *bbolt.DB
	logger *zap.Logger
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens or creates the snapshot file at path.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	db, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init snapshot store: %w", err)
	}
	s.db = db
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save decodes every record of v and stores the result as a new snapshot.
func (s *Store) Save(v *view.View) (Info, error) {
	id := ksuid.New()
	m := meta{Schema: v.Schema().Name, Stride: v.Stride(), Count: v.Len()}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		snap, err := tx.Bucket(rootBucket).CreateBucket(id.Bytes())
		if err != nil {
			return err
		}
		raw, err := marshal(m)
		if err != nil {
			return err
		}
		if err := snap.Put(metaKey, raw); err != nil {
			return err
		}
		recs, err := snap.CreateBucket(recordsBucket)
		if err != nil {
			return err
		}
		for i, rec := range v.All() {
			raw, err := marshal(map[string]any(rec))
			if err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			if err := recs.Put(key(i), raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Info{}, fmt.Errorf("save snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved",
		zap.String("id", id.String()),
		zap.String("schema", m.Schema),
		zap.Int("count", m.Count),
	)
	return m.info(id), nil
}

// List returns every snapshot in id order, which is creation order to the
// second.
func (s *Store) List() ([]Info, error) {
	var out []Info
	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(rootBucket)
		return root.ForEach(func(name, value []byte) error {
			if value != nil {
				return nil
			}
			id, err := ksuid.FromBytes(name)
			if err != nil {
				return err
			}
			m, err := readMeta(root.Bucket(name))
			if err != nil {
				return fmt.Errorf("snapshot %s: %w", id, err)
			}
			out = append(out, m.info(id))
			return nil
		})
	})
	return out, err
}

// Restore encodes the records of snapshot id into v. The snapshot must have
// been taken from a table with the same schema name and stride, and v must
// hold at least as many records.
func (s *Store) Restore(id ksuid.KSUID, v *view.View) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		snap := tx.Bucket(rootBucket).Bucket(id.Bytes())
		if snap == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		m, err := readMeta(snap)
		if err != nil {
			return err
		}
		switch {
		case m.Schema != v.Schema().Name:
			return fmt.Errorf("%w: schema %q, view has %q", ErrMismatch, m.Schema, v.Schema().Name)
		case m.Stride != v.Stride():
			return fmt.Errorf("%w: stride %d, view has %d", ErrMismatch, m.Stride, v.Stride())
		case m.Count > v.Len():
			return fmt.Errorf("%w: %d records, view has %d", ErrMismatch, m.Count, v.Len())
		}

		c := snap.Bucket(recordsBucket).Cursor()
		for k, raw := c.First(); k != nil; k, raw = c.Next() {
			i := int(binary.BigEndian.Uint32(k))
			var rec map[string]any
			if err := msgpack.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			if err := v.Set(i, structview.Record(rec)); err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
		}
		s.logger.Debug("snapshot restored", zap.String("id", id.String()), zap.Int("count", m.Count))
		return nil
	})
}

// Delete removes snapshot id.
func (s *Store) Delete(id ksuid.KSUID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(rootBucket).DeleteBucket(id.Bytes())
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	})
}

func readMeta(b *bbolt.Bucket) (meta, error) {
	var m meta
	raw := b.Get(metaKey)
	if raw == nil {
		return m, errors.New("missing metadata")
	}
	err := msgpack.Unmarshal(raw, &m)
	return m, err
}

func (m meta) info(id ksuid.KSUID) Info {
	return Info{ID: id, Schema: m.Schema, Stride: m.Stride, Count: m.Count, Created: id.Time()}
}

// marshal encodes v with sorted map keys so equal records produce equal bytes.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func key(i int) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(i))
}
