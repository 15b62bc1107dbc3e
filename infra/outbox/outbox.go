// Package outbox keeps encoded trade events in pebble until the downstream
// feed acknowledges them.
package outbox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Pending reports whether the record still has to reach the feed. SENT
// records are pending too: a crash between send and ack must resend.
func (s State) Pending() bool {
	return s != StateAcked
}

var (
	ErrNotFound      = errors.New("outbox: record not found")
	ErrCorruptRecord = errors.New("outbox: corrupt record")
)

// -------------------- Record --------------------

type Record struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt time.Time
	Payload     []byte
}

const headerLen = 1 + 4 + 8 + 4

// binary encoding: [state:1][retries:4][lastAttempt:8][crc:4][payload...]
// The checksum covers the payload only; the header is rewritten on every
// state change.
func encodeRecord(r Record) []byte {
	buf := make([]byte, headerLen+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	var last int64
	if !r.LastAttempt.IsZero() {
		last = r.LastAttempt.UnixNano()
	}
	binary.BigEndian.PutUint64(buf[5:13], uint64(last))
	binary.BigEndian.PutUint32(buf[13:17], crc32.ChecksumIEEE(r.Payload))
	copy(buf[headerLen:], r.Payload)
	return buf
}

// decodeRecord copies the payload out of b, which pebble reuses.
func decodeRecord(seq uint64, b []byte) (Record, error) {
	if len(b) < headerLen {
		return Record{}, fmt.Errorf("%w: %d bytes at seq %d", ErrCorruptRecord, len(b), seq)
	}
	r := Record{
		Seq:     seq,
		State:   State(b[0]),
		Retries: binary.BigEndian.Uint32(b[1:5]),
		Payload: append([]byte(nil), b[headerLen:]...),
	}
	if crc32.ChecksumIEEE(r.Payload) != binary.BigEndian.Uint32(b[13:17]) {
		return Record{}, fmt.Errorf("%w: checksum mismatch at seq %d", ErrCorruptRecord, seq)
	}
	if last := int64(binary.BigEndian.Uint64(b[5:13])); last != 0 {
		r.LastAttempt = time.Unix(0, last).UTC()
	}
	return r, nil
}

// -------------------- Outbox --------------------

type Options struct {
	// Dir is the pebble directory. Empty keeps the outbox in memory.
	Dir string
	// Sync fsyncs every write.
	Sync bool
	Now  func() time.Time
	// Logger receives pebble's own messages. Nil discards them.
	Logger *zap.Logger
}

type Outbox struct {
	db    *pebble.DB
	write *pebble.WriteOptions
	now   func() time.Time

	mu   sync.Mutex // serialises writers of the high-water mark
	last uint64
}

func Open(opts Options) (*Outbox, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("outbox")
	popts := &pebble.Options{
		Logger: newPebbleLogger(log),
		EventListener: &pebble.EventListener{
			BackgroundError: func(err error) {
				log.Error("pebble background error", zap.Error(err))
			},
		},
	}
	if opts.Dir == "" {
		popts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(opts.Dir, popts)
	if err != nil {
		return nil, fmt.Errorf("outbox: open %q: %w", opts.Dir, err)
	}
	write := pebble.NoSync
	if opts.Sync {
		write = pebble.Sync
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	o := &Outbox{db: db, write: write, now: now}
	if o.last, err = o.loadLastSeq(); err != nil {
		db.Close()
		return nil, err
	}
	return o, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Put stores a NEW record. Putting an existing seq replaces it.
func (o *Outbox) Put(seq uint64, payload []byte) error {
	return o.PutBatch([]uint64{seq}, [][]byte{payload})
}

// PutBatch stores several NEW records atomically, together with the
// high-water mark reported by LastSeq.
func (o *Outbox) PutBatch(seqs []uint64, payloads [][]byte) error {
	if len(seqs) != len(payloads) {
		return fmt.Errorf("outbox: put batch: %d seqs for %d payloads", len(seqs), len(payloads))
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	b := o.db.NewBatch()
	defer b.Close()
	last := o.last
	for i, seq := range seqs {
		rec := Record{Seq: seq, State: StateNew, Payload: payloads[i]}
		if err := b.Set(keyFor(seq), encodeRecord(rec), nil); err != nil {
			return fmt.Errorf("outbox: put batch %d: %w", seq, err)
		}
		last = max(last, seq)
	}
	if last != o.last {
		if err := b.Set([]byte(lastSeqKey), binary.BigEndian.AppendUint64(nil, last), nil); err != nil {
			return fmt.Errorf("outbox: put batch: %w", err)
		}
	}
	if err := b.Commit(o.write); err != nil {
		return fmt.Errorf("outbox: commit batch: %w", err)
	}
	o.last = last
	return nil
}

// LastSeq is the highest sequence ever put, including records since
// pruned. A writer that restarts continues numbering after it.
func (o *Outbox) LastSeq() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// UpdateState moves a record to state and stamps the attempt. FAILED bumps
// the retry counter.
func (o *Outbox) UpdateState(seq uint64, state State) error {
	rec, err := o.Get(seq)
	if err != nil {
		return err
	}
	rec.State = state
	rec.LastAttempt = o.now()
	if state == StateFailed {
		rec.Retries++
	}
	return o.set(rec, "update")
}

func (o *Outbox) Get(seq uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return Record{}, fmt.Errorf("seq %d: %w", seq, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("outbox: get %d: %w", seq, err)
	}
	defer closer.Close()
	return decodeRecord(seq, val)
}

func (o *Outbox) Delete(seq uint64) error {
	if err := o.db.Delete(keyFor(seq), o.write); err != nil {
		return fmt.Errorf("outbox: delete %d: %w", seq, err)
	}
	return nil
}

// -------------------- Scan --------------------

// Scan walks records in sequence order, stopping at the first error fn
// returns.
func (o *Outbox) Scan(fn func(Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return fmt.Errorf("outbox: scan: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (o *Outbox) ScanByState(state State, fn func(Record) error) error {
	return o.Scan(func(r Record) error {
		if r.State != state {
			return nil
		}
		return fn(r)
	})
}

func (o *Outbox) ScanPending(fn func(Record) error) error {
	return o.Scan(func(r Record) error {
		if !r.State.Pending() {
			return nil
		}
		return fn(r)
	})
}

// Prune deletes every ACKED record and returns how many went.
func (o *Outbox) Prune() (int, error) {
	var acked []uint64
	err := o.ScanByState(StateAcked, func(r Record) error {
		acked = append(acked, r.Seq)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(acked) == 0 {
		return 0, nil
	}
	b := o.db.NewBatch()
	defer b.Close()
	for _, seq := range acked {
		if err := b.Delete(keyFor(seq), nil); err != nil {
			return 0, fmt.Errorf("outbox: prune %d: %w", seq, err)
		}
	}
	if err := b.Commit(o.write); err != nil {
		return 0, fmt.Errorf("outbox: prune: %w", err)
	}
	return len(acked), nil
}

// Count returns the number of records per state.
func (o *Outbox) Count() (map[State]int, error) {
	counts := make(map[State]int)
	err := o.Scan(func(r Record) error {
		counts[r.State]++
		return nil
	})
	return counts, err
}

// -------------------- Helpers --------------------

const (
	keyPrefix  = "trade/"
	keyUpper   = "trade0" // '0' sorts right after '/'
	lastSeqKey = "meta/last-seq"
)

// Keys are big-endian so that byte order equals sequence order.
func keyFor(seq uint64) []byte {
	k := make([]byte, len(keyPrefix)+8)
	copy(k, keyPrefix)
	binary.BigEndian.PutUint64(k[len(keyPrefix):], seq)
	return k
}

func parseKey(b []byte) (uint64, error) {
	if len(b) != len(keyPrefix)+8 || string(b[:len(keyPrefix)]) != keyPrefix {
		return 0, fmt.Errorf("%w: key %q", ErrCorruptRecord, b)
	}
	return binary.BigEndian.Uint64(b[len(keyPrefix):]), nil
}

// loadLastSeq reads the stored high-water mark. The highest record key
// also counts, for stores written before the mark existed.
func (o *Outbox) loadLastSeq() (uint64, error) {
	var last uint64
	val, closer, err := o.db.Get([]byte(lastSeqKey))
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		return 0, fmt.Errorf("outbox: read last seq: %w", err)
	default:
		if len(val) != 8 {
			closer.Close()
			return 0, fmt.Errorf("%w: last seq of %d bytes", ErrCorruptRecord, len(val))
		}
		last = binary.BigEndian.Uint64(val)
		closer.Close()
	}

	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return 0, fmt.Errorf("outbox: read last seq: %w", err)
	}
	defer iter.Close()
	if iter.Last() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return 0, err
		}
		last = max(last, seq)
	}
	return last, iter.Error()
}

func (o *Outbox) set(r Record, op string) error {
	if err := o.db.Set(keyFor(r.Seq), encodeRecord(r), o.write); err != nil {
		return fmt.Errorf("outbox: %s %d: %w", op, r.Seq, err)
	}
	return nil
}
