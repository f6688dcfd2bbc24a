//go:build !integration

package redis

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// fakeRedis is a tiny in-memory RedisClient. Func fields override behaviour per test.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration

	GetFunc  func(ctx context.Context, key string) (string, error)
	SetFunc  func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	IncrFunc func(ctx context.Context, key string) (int64, error)
}

var _ RedisClient = (*fakeRedis)(nil)

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return ""
	}
}

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if f.SetFunc != nil {
		return f.SetFunc(ctx, key, value, expiration)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = toString(value)
	f.ttls[key] = expiration
	return nil
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = toString(value)
	f.ttls[key] = expiration
	return true, nil
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	if f.GetFunc != nil {
		return f.GetFunc(ctx, key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Incr(ctx context.Context, key string) (int64, error) {
	if f.IncrFunc != nil {
		return f.IncrFunc(ctx, key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	if v, ok := f.data[key]; ok {
		for _, c := range v {
			n = n*10 + int64(c-'0')
		}
	}
	n++
	f.data[key] = itoa(n)
	return n, nil
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[key] = expiration
	return nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
		delete(f.ttls, k)
	}
	return nil
}

// Eval understands only the compare-and-delete unlock script.
func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(keys) == 1 && len(args) == 1 && f.data[keys[0]] == toString(args[0]) {
		delete(f.data, keys[0])
		return int64(1), nil
	}
	return int64(0), nil
}

func (f *fakeRedis) Close() error { return nil }
