// Package mocks provides a testify mock of the content store.
package mocks

import (
	"bytes"
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"cyberprint/internal/storage"
)

var _ storage.Storage = (*MockStorage)(nil)

// MockStorage records calls against storage.Storage.
//
// Put accepts either a storage.ObjectInfo or a func computing one from the call, so a
// test can drain the reader the way the object store would. Get accepts a []byte in
// place of an io.ReadCloser.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Put(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	args := m.Called(ctx, key, r, opt)
	switch v := args.Get(0).(type) {
	case func(context.Context, string, io.Reader, storage.PutObjectOptions) storage.ObjectInfo:
		return v(ctx, key, r, opt), args.Error(1)
	case storage.ObjectInfo:
		return v, args.Error(1)
	}
	return storage.ObjectInfo{}, args.Error(1)
}

func (m *MockStorage) Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	args := m.Called(ctx, key)
	var rc io.ReadCloser
	switch v := args.Get(0).(type) {
	case io.ReadCloser:
		rc = v
	case []byte:
		rc = io.NopCloser(bytes.NewReader(v))
	}
	info, _ := args.Get(1).(storage.ObjectInfo)
	return rc, info, args.Error(2)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}
