// Package rtdb is a small realtime tree database on Redis. A node whose
// children are leaves is stored as a hash: the node path is the key and
// each child name is a field.
package rtdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// error msgs
	ClientNilErrMsg = "redis client is nil"
	BadPathErrMsg   = "path must name a child of a node"
)

// Tree is the realtime database surface handlers depend on.
type Tree interface {
	Get(ctx context.Context, path string) (string, bool, error)
	Set(ctx context.Context, path, value string) error
	Children(ctx context.Context, path string) (map[string]string, error)
	Remove(ctx context.Context, path string) error
	RemoveChildren(ctx context.Context, path string, keys ...string) error
	Push(ctx context.Context, path string, fields map[string]string) (string, error)
}

// DB implements Tree on a go-redis client.
type DB struct {
	client redis.UniversalClient
	prefix string
}

// New returns a DB storing every key under prefix.
func New(client redis.UniversalClient, prefix string) (*DB, error) {
	if client == nil {
		return nil, errors.New(ClientNilErrMsg)
	}
	return &DB{client: client, prefix: prefix}, nil
}

// Clean trims surrounding and repeated slashes from a path.
func Clean(path string) string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}

// Join joins path segments.
func Join(parts ...string) string {
	return Clean(strings.Join(parts, "/"))
}

func (d *DB) split(path string) (string, string, error) {
	p := Clean(path)
	i := strings.LastIndex(p, "/")
	if i <= 0 || i == len(p)-1 {
		return "", "", fmt.Errorf("%s: %q", BadPathErrMsg, path)
	}
	return d.prefix + p[:i], p[i+1:], nil
}

// Get reads a leaf.
func (d *DB) Get(ctx context.Context, path string) (string, bool, error) {
	node, child, err := d.split(path)
	if err != nil {
		return "", false, err
	}
	v, err := d.client.HGet(ctx, node, child).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", path, err)
	}
	return v, true, nil
}

// Set writes a leaf.
func (d *DB) Set(ctx context.Context, path, value string) error {
	node, child, err := d.split(path)
	if err != nil {
		return err
	}
	if err := d.client.HSet(ctx, node, child, value).Err(); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// Children returns every leaf directly under path.
func (d *DB) Children(ctx context.Context, path string) (map[string]string, error) {
	m, err := d.client.HGetAll(ctx, d.prefix+Clean(path)).Result()
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", path, err)
	}
	return m, nil
}

// Remove deletes a leaf.
func (d *DB) Remove(ctx context.Context, path string) error {
	node, child, err := d.split(path)
	if err != nil {
		return err
	}
	if err := d.client.HDel(ctx, node, child).Err(); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// RemoveChildren deletes the named leaves directly under path. Keys are
// used verbatim and may contain slashes.
func (d *DB) RemoveChildren(ctx context.Context, path string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := d.client.HDel(ctx, d.prefix+Clean(path), keys...).Err(); err != nil {
		return fmt.Errorf("remove children of %s: %w", path, err)
	}
	return nil
}

// Push creates a child of path under a new time-ordered id holding fields,
// and returns the id.
func (d *DB) Push(ctx context.Context, path string, fields map[string]string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate push id: %w", err)
	}
	if len(fields) == 0 {
		return "", errors.New("push needs at least one field")
	}
	values := make([]any, 0, 2*len(fields))
	for k, v := range fields {
		values = append(values, k, v)
	}
	if err := d.client.HSet(ctx, d.prefix+Join(path, id.String()), values...).Err(); err != nil {
		return "", fmt.Errorf("push to %s: %w", path, err)
	}
	return id.String(), nil
}
