package mocks

import (
	"context"

	"cyberprint/internal/model"
	"cyberprint/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockIntakeService struct {
	mock.Mock
}

func (m *MockIntakeService) Submit(ctx context.Context, req service.SubmitRequest) (*model.Document, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockIntakeService) ListForCenter(ctx context.Context, p model.Principal) ([]service.SubmitterGroup, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.SubmitterGroup), args.Error(1)
}

func (m *MockIntakeService) ListMine(ctx context.Context, p model.Principal, limit, offset int) (*service.DocumentListResult, error) {
	args := m.Called(ctx, p, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}

func (m *MockIntakeService) Get(ctx context.Context, p model.Principal, id string) (*model.Document, error) {
	args := m.Called(ctx, p, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockIntakeService) Delete(ctx context.Context, p model.Principal, id string) error {
	args := m.Called(ctx, p, id)
	return args.Error(0)
}

type MockDirectoryService struct {
	mock.Mock
}

func (m *MockDirectoryService) Resolve(ctx context.Context, centerID string) (*model.CenterProfile, error) {
	args := m.Called(ctx, centerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CenterProfile), args.Error(1)
}

func (m *MockDirectoryService) BuildUploadLink(ctx context.Context, centerID string) (string, error) {
	args := m.Called(ctx, centerID)
	return args.String(0), args.Error(1)
}

func (m *MockDirectoryService) QRCode(ctx context.Context, centerID string, size int) ([]byte, error) {
	args := m.Called(ctx, centerID, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDirectoryService) List(ctx context.Context, limit, offset int) (*service.CenterListResult, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CenterListResult), args.Error(1)
}

func (m *MockDirectoryService) Create(ctx context.Context, name, address, ownerAccountID string) (*model.Center, error) {
	args := m.Called(ctx, name, address, ownerAccountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Center), args.Error(1)
}

func (m *MockDirectoryService) CenterFor(ctx context.Context, p model.Principal) (*model.Center, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Center), args.Error(1)
}

type MockOTPService struct {
	mock.Mock
}

func (m *MockOTPService) Issue(ctx context.Context, p model.Principal, documentID string) (*service.IssuedCode, error) {
	args := m.Called(ctx, p, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IssuedCode), args.Error(1)
}

func (m *MockOTPService) Verify(ctx context.Context, p model.Principal, documentID, code string) (*model.ContentAccessGrant, error) {
	args := m.Called(ctx, p, documentID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ContentAccessGrant), args.Error(1)
}

type MockPrintService struct {
	mock.Mock
}

func (m *MockPrintService) Open(ctx context.Context, p model.Principal, token string) (*service.Session, error) {
	args := m.Called(ctx, p, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Session), args.Error(1)
}

func (m *MockPrintService) MarkPrinted(ctx context.Context, p model.Principal, documentID string) (*model.Document, error) {
	args := m.Called(ctx, p, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}
