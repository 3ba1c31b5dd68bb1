// Package store keeps exported posts in a BoltDB file read by the API server.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/takak2166/notionblog/internal/models"
)

// ErrNotFound is returned when no post has the requested slug
var ErrNotFound = errors.New("not found")

var (
	bucketPosts = []byte("posts") // slug -> PostRecord
	bucketMeta  = []byte("meta")

	keyExportedAt = []byte("exported_at")
)

// Store is a BoltDB-backed post store
type Store struct {
	db *bolt.DB
}

// Open opens or creates the store at path. A read-only store requires an existing file
// and lets the server run while another process holds the write lock.
func Open(path string, readOnly bool) (*Store, error) {
	if !readOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0644, &bolt.Options{
		Timeout:  5 * time.Second,
		ReadOnly: readOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}

	s := &Store{db: db}
	if readOnly {
		return s, nil
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPosts, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func encode(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func decode(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

func putRecord(b *bolt.Bucket, rec models.PostRecord) error {
	if rec.Post.Slug == "" {
		return fmt.Errorf("post %s has no slug", rec.Post.ID)
	}
	data, err := encode(rec)
	if err != nil {
		return fmt.Errorf("failed to encode post %s: %w", rec.Post.Slug, err)
	}
	return b.Put([]byte(rec.Post.Slug), data)
}

// PutPost inserts or overwrites a single post
func (s *Store) PutPost(rec models.PostRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putRecord(tx.Bucket(bucketPosts), rec)
	})
}

// Replace swaps the whole post set in one transaction
func (s *Store) Replace(records []models.PostRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketPosts); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(bucketPosts)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := putRecord(b, rec); err != nil {
				return err
			}
		}

		stamp, err := time.Now().UTC().MarshalBinary()
		if err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		return meta.Put(keyExportedAt, stamp)
	})
}

// GetPost returns the post with the given slug
func (s *Store) GetPost(slug string) (models.PostRecord, error) {
	var rec models.PostRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPosts)
		if b == nil {
			return ErrNotFound
		}
		data := b.Get([]byte(slug))
		if data == nil {
			return ErrNotFound
		}
		return decode(data, &rec)
	})
	return rec, err
}

// ListPosts returns every post, newest first
func (s *Store) ListPosts() ([]models.Post, error) {
	var posts []models.Post
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPosts)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var rec models.PostRecord
			if err := decode(v, &rec); err != nil {
				return err
			}
			posts = append(posts, rec.Post)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].Date.Equal(posts[j].Date) {
			return posts[i].Date.After(posts[j].Date)
		}
		return posts[i].Slug < posts[j].Slug
	})
	return posts, nil
}

// ExportedAt returns when Replace last ran, zero if never
func (s *Store) ExportedAt() (time.Time, error) {
	var t time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}
		data := b.Get(keyExportedAt)
		if data == nil {
			return nil
		}
		return t.UnmarshalBinary(data)
	})
	return t, err
}
