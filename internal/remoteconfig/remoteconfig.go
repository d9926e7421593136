// Package remoteconfig keeps versioned remote config templates in a bucket
// and evaluates them into server-side config values.
package remoteconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/outofoffice3/aws-samples/hermes/internal/blob"
)

const (
	// error msgs
	BlobsNilErrMsg     = "blob store is nil"
	BucketNotSetErrMsg = "remote config bucket not set"

	CurrentKey = "remoteconfig/template.json"
)

// Template is a remote config template.
type Template struct {
	Parameters map[string]Parameter `json:"parameters,omitempty"`
	Version    *Version             `json:"version,omitempty"`
}

type Parameter struct {
	DefaultValue *Value `json:"defaultValue,omitempty"`
	Description  string `json:"description,omitempty"`
	ValueType    string `json:"valueType,omitempty"`
}

type Value struct {
	Value           string `json:"value,omitempty"`
	UseInAppDefault bool   `json:"useInAppDefault,omitempty"`
}

type Version struct {
	VersionNumber int64     `json:"versionNumber,string"`
	UpdateTime    time.Time `json:"updateTime"`
	UpdateOrigin  string    `json:"updateOrigin,omitempty"`
	UpdateType    string    `json:"updateType,omitempty"`
	UpdateUser    string    `json:"updateUser,omitempty"`
	Description   string    `json:"description,omitempty"`
}

// VersionKey is where version n of the template is kept.
func VersionKey(n int64) string {
	return fmt.Sprintf("remoteconfig/versions/%d.json", n)
}

// Templates reads and writes template versions.
type Templates interface {
	Current(ctx context.Context) (*Template, error)
	Version(ctx context.Context, n int64) (*Template, error)
	Publish(ctx context.Context, t *Template) (int64, error)
}

// Store implements Templates on a bucket.
type Store struct {
	blobs  blob.Store
	bucket string
	now    func() time.Time
}

func New(blobs blob.Store, bucket string) (*Store, error) {
	if blobs == nil {
		return nil, errors.New(BlobsNilErrMsg)
	}
	if bucket == "" {
		return nil, errors.New(BucketNotSetErrMsg)
	}
	return &Store{blobs: blobs, bucket: bucket, now: time.Now}, nil
}

func (s *Store) read(ctx context.Context, key string) (*Template, error) {
	obj, err := s.blobs.Download(ctx, s.bucket, key)
	if err != nil {
		return nil, err
	}
	var t Template
	if err := json.Unmarshal(obj.Data, &t); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &t, nil
}

func (s *Store) Current(ctx context.Context) (*Template, error) {
	return s.read(ctx, CurrentKey)
}

func (s *Store) Version(ctx context.Context, n int64) (*Template, error) {
	return s.read(ctx, VersionKey(n))
}

// Publish saves t as the next version and makes it current. The first
// version published is 1.
func (s *Store) Publish(ctx context.Context, t *Template) (int64, error) {
	next := int64(1)
	if cur, err := s.Current(ctx); err == nil && cur.Version != nil {
		next = cur.Version.VersionNumber + 1
	}
	out := *t
	v := Version{}
	if t.Version != nil {
		v = *t.Version
	}
	v.VersionNumber = next
	v.UpdateTime = s.now().UTC()
	out.Version = &v

	data, err := json.Marshal(out)
	if err != nil {
		return 0, fmt.Errorf("encode template: %w", err)
	}
	if err := s.blobs.Upload(ctx, s.bucket, VersionKey(next), data, "application/json"); err != nil {
		return 0, err
	}
	if err := s.blobs.Upload(ctx, s.bucket, CurrentKey, data, "application/json"); err != nil {
		return 0, err
	}
	return next, nil
}

// Diff describes the change from prev to cur, or "" when they are equal.
// Version metadata is ignored.
func Diff(prev, cur *Template) string {
	if prev == nil {
		prev = &Template{}
	}
	if cur == nil {
		cur = &Template{}
	}
	a, b := *prev, *cur
	a.Version, b.Version = nil, nil
	return cmp.Diff(a, b)
}

// ServerConfig is a template evaluated over in-code defaults.
type ServerConfig struct {
	values map[string]string
}

// Evaluate resolves every parameter: the template's default value wins,
// then the in-code default. Parameters marked useInAppDefault fall back.
func Evaluate(t *Template, defaults map[string]any) *ServerConfig {
	values := make(map[string]string, len(defaults))
	for k, v := range defaults {
		values[k] = stringify(v)
	}
	if t != nil {
		for k, p := range t.Parameters {
			if p.DefaultValue == nil || p.DefaultValue.UseInAppDefault {
				continue
			}
			values[k] = p.DefaultValue.Value
		}
	}
	return &ServerConfig{values: values}
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// GetString returns the value of key, or "".
func (c *ServerConfig) GetString(key string) string {
	return c.values[key]
}

// GetBool reports whether key holds a truthy value.
func (c *ServerConfig) GetBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(c.values[key])) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

// GetNumber returns key as a number, or 0.
func (c *ServerConfig) GetNumber(key string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(c.values[key]), 64)
	return f
}
