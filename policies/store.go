package policies

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Store persists an opaque q-table snapshot
type Store interface {
	Save(context.Context, []byte) error
	Load(context.Context) ([]byte, error)
	String() string
}

// FileStore keeps the snapshot in a single file
type FileStore struct {
	Path string
}

var _ Store = &FileStore{}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Save writes to a temporary file first so a failed write never truncates
// an existing snapshot
func (f *FileStore) Save(_ context.Context, bs []byte) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temporary snapshot")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(bs); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", tmp.Name())
	}
	return errors.Wrapf(os.Rename(tmp.Name(), f.Path), "replacing %s", f.Path)
}

func (f *FileStore) Load(_ context.Context) ([]byte, error) {
	bs, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", f.Path)
	}
	return bs, nil
}

func (f *FileStore) String() string {
	return "file:" + f.Path
}

// RedisStore keeps the snapshot under a single redis key
type RedisStore struct {
	client *redis.Client
	key    string
}

var _ Store = &RedisStore{}

func NewRedisStore(addr, key string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
		key: key,
	}
}

func (r *RedisStore) Save(ctx context.Context, bs []byte) error {
	return errors.Wrapf(r.client.Set(ctx, r.key, bs, 0).Err(), "setting redis key %s", r.key)
}

func (r *RedisStore) Load(ctx context.Context) ([]byte, error) {
	bs, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		return nil, errors.Wrapf(err, "getting redis key %s", r.key)
	}
	return bs, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) String() string {
	return "redis:" + r.client.Options().Addr + "/" + r.key
}
