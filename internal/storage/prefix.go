package storage

// PrefixDB scopes a DB to a key prefix. Each controller session writes its
// transcript index under its own session prefix so that many sessions can
// share one store.
type PrefixDB struct {
	inner  DB
	prefix []byte
}

// NewPrefixDB creates a new PrefixDB wrapping inner with the given prefix.
func NewPrefixDB(inner DB, prefix []byte) *PrefixDB {
	p := make([]byte, len(prefix))
	copy(p, prefix)
	return &PrefixDB{inner: inner, prefix: p}
}

// Prefix returns the namespace prefix.
func (p *PrefixDB) Prefix() []byte {
	return append([]byte(nil), p.prefix...)
}

func (p *PrefixDB) key(k []byte) []byte {
	return joinKey(p.prefix, k)
}

// Get retrieves a value by key.
func (p *PrefixDB) Get(key []byte) ([]byte, error) {
	return p.inner.Get(p.key(key))
}

// Put stores a key-value pair.
func (p *PrefixDB) Put(key, value []byte) error {
	return p.inner.Put(p.key(key), value)
}

// Delete removes a key.
func (p *PrefixDB) Delete(key []byte) error {
	return p.inner.Delete(p.key(key))
}

// Has checks if a key exists.
func (p *PrefixDB) Has(key []byte) (bool, error) {
	return p.inner.Has(p.key(key))
}

// ForEach iterates over keys under prefix within the namespace. Keys passed
// to fn have the namespace stripped.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	n := len(p.prefix)
	return p.inner.ForEach(p.key(prefix), func(key, value []byte) error {
		return fn(key[n:], value)
	})
}

// DeleteAll removes every key in the namespace.
func (p *PrefixDB) DeleteAll() error {
	var keys [][]byte
	err := p.inner.ForEach(p.prefix, func(key, _ []byte) error {
		keys = append(keys, append([]byte(nil), key...))
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := p.inner.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; the inner DB owns its lifecycle.
func (p *PrefixDB) Close() error {
	return nil
}

// NewBatch returns a batch writing into the namespace. It is atomic when the
// inner DB is a Batcher.
func (p *PrefixDB) NewBatch() Batch {
	if b, ok := p.inner.(Batcher); ok {
		return &prefixBatch{inner: b.NewBatch(), prefix: p.prefix}
	}
	return &prefixBatch{inner: &directBatch{db: p.inner}, prefix: p.prefix}
}

type prefixBatch struct {
	inner  Batch
	prefix []byte
}

func (pb *prefixBatch) Put(key, value []byte) error {
	return pb.inner.Put(joinKey(pb.prefix, key), value)
}

func (pb *prefixBatch) Delete(key []byte) error {
	return pb.inner.Delete(joinKey(pb.prefix, key))
}

func (pb *prefixBatch) Commit() error {
	return pb.inner.Commit()
}

// directBatch buffers writes and applies them one by one on Commit.
type directBatch struct {
	db  DB
	ops []memoryOp
}

func (d *directBatch) Put(key, value []byte) error {
	d.ops = append(d.ops, memoryOp{key: string(key), value: cloneValue(value)})
	return nil
}

func (d *directBatch) Delete(key []byte) error {
	d.ops = append(d.ops, memoryOp{key: string(key), del: true})
	return nil
}

func (d *directBatch) Commit() error {
	for _, op := range d.ops {
		var err error
		if op.del {
			err = d.db.Delete([]byte(op.key))
		} else {
			err = d.db.Put([]byte(op.key), op.value)
		}
		if err != nil {
			return err
		}
	}
	d.ops = nil
	return nil
}

func joinKey(prefix, key []byte) []byte {
	out := make([]byte, len(prefix)+len(key))
	copy(out, prefix)
	copy(out[len(prefix):], key)
	return out
}
