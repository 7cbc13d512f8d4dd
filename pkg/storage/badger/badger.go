// Package badger stores users, leads and shares in an embedded Badger
// database. Records are JSON encoded under these keys:
//
//	u/{username}            user
//	l/{leadID}              lead
//	o/{owner}/{leadID}      owner index (empty value)
//	s/{leadID}/{recipient}  share
package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/brilliox/brilliox/pkg/storage"
)

const maxIDAttempts = 5

var (
	userPrefix  = []byte("u/")
	leadPrefix  = []byte("l/")
	ownerPrefix = []byte("o/")
	sharePrefix = []byte("s/")
)

// Config holds configuration for BadgerStorage.
type Config struct {
	Path              string
	SyncWrites        bool
	ValueLogFileSize  int64
	NumVersionsToKeep int
	// InMemory runs badger without touching disk. Path is ignored.
	InMemory bool
}

// BadgerStorage implements storage.Store on Badger.
type BadgerStorage struct {
	db       *badger.DB
	inMemory bool
}

// NewBadgerStorage opens (or creates) the database described by cfg.
func NewBadgerStorage(cfg *Config) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(nil)
	if cfg.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(cfg.ValueLogFileSize)
	}
	if cfg.NumVersionsToKeep > 0 {
		opts = opts.WithNumVersionsToKeep(cfg.NumVersionsToKeep)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}
	return &BadgerStorage{db: db, inMemory: cfg.InMemory}, nil
}

func key(prefix []byte, parts ...string) []byte {
	k := append([]byte(nil), prefix...)
	for i, p := range parts {
		if i > 0 {
			k = append(k, '/')
		}
		k = append(k, p...)
	}
	return k
}

// scoped returns key(prefix, parts...) followed by a separator, for
// iterating every record below it.
func scoped(prefix []byte, parts ...string) []byte {
	return append(key(prefix, parts...), '/')
}

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &storage.SerializationError{Operation: "marshal", Cause: err}
	}
	return data, nil
}

func decode(item *badger.Item, v any) error {
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, v); err != nil {
			return &storage.SerializationError{Operation: "unmarshal", Cause: err}
		}
		return nil
	})
}

// load decodes the record at k into a new T.
func load[T any](txn *badger.Txn, k []byte, entity, id string) (*T, error) {
	item, err := txn.Get(k)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, &storage.NotFoundError{EntityType: entity, ID: id}
	}
	if err != nil {
		return nil, err
	}
	v := new(T)
	if err := decode(item, v); err != nil {
		return nil, err
	}
	return v, nil
}

// scan decodes every record under prefix. Undecodable records are skipped.
func scan[T any](txn *badger.Txn, prefix []byte) []*T {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 64})
	defer it.Close()

	var out []*T
	for it.Rewind(); it.Valid(); it.Next() {
		v := new(T)
		if decode(it.Item(), v) == nil {
			out = append(out, v)
		}
	}
	return out
}

// suffixes returns what follows prefix in every key under it.
func suffixes(txn *badger.Txn, prefix []byte) []string {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
	defer it.Close()

	var out []string
	for it.Rewind(); it.Valid(); it.Next() {
		out = append(out, string(bytes.TrimPrefix(it.Item().Key(), prefix)))
	}
	return out
}

func has(txn *badger.Txn, k []byte) (bool, error) {
	_, err := txn.Get(k)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (b *BadgerStorage) GetUser(_ context.Context, username string) (*storage.User, error) {
	var u *storage.User
	err := b.db.View(func(txn *badger.Txn) (err error) {
		u, err = load[storage.User](txn, key(userPrefix, username), "user", username)
		return err
	})
	return u, err
}

func (b *BadgerStorage) CreateUser(_ context.Context, u *storage.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	return b.putUser(u, false)
}

func (b *BadgerStorage) UpdateUser(_ context.Context, u *storage.User) error {
	return b.putUser(u, true)
}

// putUser writes u, requiring the record to exist (update) or not (create).
func (b *BadgerStorage) putUser(u *storage.User, mustExist bool) error {
	data, err := encode(u)
	if err != nil {
		return err
	}
	k := key(userPrefix, u.Username)
	return b.db.Update(func(txn *badger.Txn) error {
		found, err := has(txn, k)
		if err != nil {
			return err
		}
		switch {
		case mustExist && !found:
			return &storage.NotFoundError{EntityType: "user", ID: u.Username}
		case !mustExist && found:
			return &storage.DuplicateKeyError{EntityType: "user", ID: u.Username}
		}
		return txn.Set(k, data)
	})
}

func (b *BadgerStorage) ListUsers(context.Context) ([]*storage.User, error) {
	var users []*storage.User
	err := b.db.View(func(txn *badger.Txn) error {
		users = scan[storage.User](txn, userPrefix)
		return nil
	})
	if err != nil {
		return nil, err
	}
	storage.SortUsers(users)
	return users, nil
}

// AddLead stores lead under ownerID. An empty lead.ID is generated; on
// failure it is cleared again.
func (b *BadgerStorage) AddLead(_ context.Context, ownerID string, lead *storage.Lead) (string, error) {
	lead.OwnerID = ownerID
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now()
	}
	generated := lead.ID == ""

	err := b.db.Update(func(txn *badger.Txn) error {
		if generated {
			if err := assignLeadID(txn, lead); err != nil {
				return err
			}
		} else if found, err := has(txn, key(leadPrefix, lead.ID)); err != nil {
			return err
		} else if found {
			return &storage.DuplicateKeyError{EntityType: "lead", ID: lead.ID}
		}

		data, err := encode(lead)
		if err != nil {
			return err
		}
		if err := txn.Set(key(leadPrefix, lead.ID), data); err != nil {
			return err
		}
		return txn.Set(key(ownerPrefix, ownerID, lead.ID), nil)
	})
	if err != nil {
		if generated {
			lead.ID = ""
		}
		return "", err
	}
	return lead.ID, nil
}

func assignLeadID(txn *badger.Txn, lead *storage.Lead) error {
	for i := 0; i < maxIDAttempts; i++ {
		id := storage.NewLeadID()
		found, err := has(txn, key(leadPrefix, id))
		if err != nil {
			return err
		}
		if !found {
			lead.ID = id
			return nil
		}
	}
	return &storage.DuplicateKeyError{EntityType: "lead", ID: "generated"}
}

func (b *BadgerStorage) GetLead(_ context.Context, id string) (*storage.Lead, error) {
	var lead *storage.Lead
	err := b.db.View(func(txn *badger.Txn) (err error) {
		lead, err = load[storage.Lead](txn, key(leadPrefix, id), "lead", id)
		return err
	})
	return lead, err
}

// UpdateLead replaces an existing lead and moves its owner index entry when
// the owner changed.
func (b *BadgerStorage) UpdateLead(_ context.Context, lead *storage.Lead) error {
	data, err := encode(lead)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		old, err := load[storage.Lead](txn, key(leadPrefix, lead.ID), "lead", lead.ID)
		if err != nil {
			return err
		}
		if old.OwnerID != lead.OwnerID {
			if err := txn.Delete(key(ownerPrefix, old.OwnerID, lead.ID)); err != nil {
				return err
			}
			if err := txn.Set(key(ownerPrefix, lead.OwnerID, lead.ID), nil); err != nil {
				return err
			}
		}
		return txn.Set(key(leadPrefix, lead.ID), data)
	})
}

// DeleteLead removes a lead with its index entry and shares.
func (b *BadgerStorage) DeleteLead(_ context.Context, id string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		lead, err := load[storage.Lead](txn, key(leadPrefix, id), "lead", id)
		if err != nil {
			return err
		}
		doomed := [][]byte{key(leadPrefix, id), key(ownerPrefix, lead.OwnerID, id)}
		for _, recipient := range suffixes(txn, scoped(sharePrefix, id)) {
			doomed = append(doomed, key(sharePrefix, id, recipient))
		}
		for _, k := range doomed {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetLeads resolves the owner index. Dangling index entries are skipped.
func (b *BadgerStorage) GetLeads(_ context.Context, ownerID string) ([]*storage.Lead, error) {
	var leads []*storage.Lead
	err := b.db.View(func(txn *badger.Txn) error {
		for _, id := range suffixes(txn, scoped(ownerPrefix, ownerID)) {
			if lead, err := load[storage.Lead](txn, key(leadPrefix, id), "lead", id); err == nil {
				leads = append(leads, lead)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	storage.SortLeads(leads)
	return leads, nil
}

func (b *BadgerStorage) GetAllLeads(context.Context) ([]*storage.Lead, error) {
	var leads []*storage.Lead
	err := b.db.View(func(txn *badger.Txn) error {
		leads = scan[storage.Lead](txn, leadPrefix)
		return nil
	})
	if err != nil {
		return nil, err
	}
	storage.SortLeads(leads)
	return leads, nil
}

// AddShare records that a lead was shared. Sharing again with the same
// recipient overwrites the earlier record.
func (b *BadgerStorage) AddShare(_ context.Context, share *storage.Share) error {
	if share.CreatedAt.IsZero() {
		share.CreatedAt = time.Now()
	}
	data, err := encode(share)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		found, err := has(txn, key(leadPrefix, share.LeadID))
		if err != nil {
			return err
		}
		if !found {
			return &storage.NotFoundError{EntityType: "lead", ID: share.LeadID}
		}
		return txn.Set(key(sharePrefix, share.LeadID, share.SharedWith), data)
	})
}

func (b *BadgerStorage) GetShares(_ context.Context, leadID string) ([]*storage.Share, error) {
	shares := []*storage.Share{}
	err := b.db.View(func(txn *badger.Txn) error {
		shares = append(shares, scan[storage.Share](txn, scoped(sharePrefix, leadID))...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	storage.SortShares(shares)
	return shares, nil
}

// Close runs one value log GC pass on disk-backed stores, then closes.
func (b *BadgerStorage) Close() error {
	if !b.inMemory {
		_ = b.db.RunValueLogGC(0.5)
	}
	return b.db.Close()
}

var _ storage.Store = (*BadgerStorage)(nil)
