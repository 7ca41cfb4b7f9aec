package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"cyberprint/internal/model"
	"cyberprint/internal/repository"
)

const (
	defaultQRSize = 256
	minQRSize     = 128
	maxQRSize     = 1024
)

// CenterListResult is a page of public center profiles.
type CenterListResult struct {
	Items []model.CenterProfile `json:"data"`
	Total int                   `json:"total"`
}

// DirectoryService resolves centers to their public profile and upload link.
type DirectoryService interface {
	// Resolve returns the public profile of an active center.
	Resolve(ctx context.Context, centerID string) (*model.CenterProfile, error)

	// BuildUploadLink returns the anonymous upload URL encoded in the center's QR code.
	BuildUploadLink(ctx context.Context, centerID string) (string, error)

	// QRCode renders the upload link as a PNG of size x size pixels.
	QRCode(ctx context.Context, centerID string, size int) ([]byte, error)

	// List returns active centers for the owner's center picker.
	List(ctx context.Context, limit, offset int) (*CenterListResult, error)

	// Create registers a center operated by ownerAccountID.
	Create(ctx context.Context, name, address, ownerAccountID string) (*model.Center, error)

	// CenterFor returns the active center operated by the principal.
	CenterFor(ctx context.Context, p model.Principal) (*model.Center, error)
}

type directoryService struct {
	centers repository.CenterRepository
	baseURL string
	now     func() time.Time
}

// NewDirectoryService constructs a DirectoryService. baseURL prefixes upload links.
func NewDirectoryService(centers repository.CenterRepository, baseURL string) DirectoryService {
	return &directoryService{
		centers: centers,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (s *directoryService) active(ctx context.Context, centerID string) (*model.Center, error) {
	if _, err := uuid.Parse(centerID); err != nil {
		return nil, ErrCenterNotFound
	}
	c, err := s.centers.FindByID(ctx, centerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCenterNotFound
		}
		return nil, internal("find center", err)
	}
	if !c.Active {
		return nil, ErrCenterNotFound
	}
	return c, nil
}

func (s *directoryService) Resolve(ctx context.Context, centerID string) (*model.CenterProfile, error) {
	c, err := s.active(ctx, centerID)
	if err != nil {
		return nil, err
	}
	p := c.Profile()
	return &p, nil
}

func (s *directoryService) BuildUploadLink(ctx context.Context, centerID string) (string, error) {
	c, err := s.active(ctx, centerID)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/upload/" + c.ID, nil
}

func (s *directoryService) QRCode(ctx context.Context, centerID string, size int) ([]byte, error) {
	link, err := s.BuildUploadLink(ctx, centerID)
	if err != nil {
		return nil, err
	}
	switch {
	case size <= 0:
		size = defaultQRSize
	case size < minQRSize:
		size = minQRSize
	case size > maxQRSize:
		size = maxQRSize
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, internal("encode qr", err)
	}
	return png, nil
}

func (s *directoryService) List(ctx context.Context, limit, offset int) (*CenterListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	res, err := s.centers.ListActive(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, internal("list centers", err)
	}
	out := &CenterListResult{Items: make([]model.CenterProfile, 0, len(res.Items)), Total: res.Total}
	for i := range res.Items {
		out.Items = append(out.Items, res.Items[i].Profile())
	}
	return out, nil
}

func (s *directoryService) Create(ctx context.Context, name, address, ownerAccountID string) (*model.Center, error) {
	name = strings.TrimSpace(name)
	ownerAccountID = strings.TrimSpace(ownerAccountID)
	if name == "" {
		return nil, invalid("name", "name is required")
	}
	if ownerAccountID == "" {
		return nil, invalid("owner_account_id", "owner account id is required")
	}
	if _, err := s.centers.FindByOwner(ctx, ownerAccountID); err == nil {
		return nil, fmt.Errorf("%w: account already operates a center", ErrConflict)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, internal("find center by owner", err)
	}

	c, err := s.centers.Create(ctx, &model.Center{
		ID:             uuid.NewString(),
		Name:           name,
		Address:        strings.TrimSpace(address),
		OwnerAccountID: ownerAccountID,
		Active:         true,
		CreatedAt:      s.now().UTC(),
	})
	if err != nil {
		return nil, internal("create center", err)
	}
	return c, nil
}

func (s *directoryService) CenterFor(ctx context.Context, p model.Principal) (*model.Center, error) {
	if !p.IsOperator() {
		return nil, ErrForbidden
	}
	c, err := s.centers.FindByOwner(ctx, p.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoCenter
		}
		return nil, internal("find center by owner", err)
	}
	if !c.Active {
		return nil, ErrNoCenter
	}
	return c, nil
}
