package utm

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketLinks = []byte("links")
	bucketMeta  = []byte("meta")

	keySchemaVersion = []byte("schema_version")
)

const schemaVersion = 1

// SavedLink is a generated tracking link kept for reuse.
type SavedLink struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Destination string    `json:"destination"`
	Platform    string    `json:"platform,omitempty"`
	Params      Params    `json:"params"`
	Link        string    `json:"link"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists saved links in BoltDB.
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) a link store at the given path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketLinks, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		meta := tx.Bucket(bucketMeta)
		if v := meta.Get(keySchemaVersion); v != nil {
			if got := binary.BigEndian.Uint32(v); got > schemaVersion {
				return fmt.Errorf("link store schema version %d is newer than supported %d", got, schemaVersion)
			}
		}
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], schemaVersion)
		return meta.Put(keySchemaVersion, buf[:])
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Save stores a link. A missing ID and timestamp are filled in.
func (s *Store) Save(link *SavedLink) error {
	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(link)
		if err != nil {
			return fmt.Errorf("failed to marshal link: %w", err)
		}
		return tx.Bucket(bucketLinks).Put([]byte(link.ID), data)
	})
}

// Get retrieves a saved link by ID. Returns nil, nil when not found.
func (s *Store) Get(id string) (*SavedLink, error) {
	var link *SavedLink
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketLinks).Get([]byte(id))
		if data == nil {
			return nil
		}
		link = &SavedLink{}
		return json.Unmarshal(data, link)
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// List returns all saved links, newest first.
func (s *Store) List() ([]*SavedLink, error) {
	var links []*SavedLink
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLinks).ForEach(func(k, v []byte) error {
			var link SavedLink
			if err := json.Unmarshal(v, &link); err != nil {
				return fmt.Errorf("failed to unmarshal link %s: %w", k, err)
			}
			links = append(links, &link)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

// Delete removes a saved link.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLinks).Delete([]byte(id))
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
