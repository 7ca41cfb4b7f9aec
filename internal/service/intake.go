package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cyberprint/internal/config"
	"cyberprint/internal/model"
	"cyberprint/internal/repository"
	"cyberprint/internal/retry"
	"cyberprint/internal/storage"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeZIP  = "application/zip"

	sniffLen         = 3072
	anonymousName    = "Anonymous User"
	originalFileMeta = "original-filename"
)

// allowedTypes maps an accepted extension to its declared MIME and the sniffed types it may carry.
var allowedTypes = map[string]struct {
	declared string
	sniffed  []string
}{
	".pdf":  {declared: mimePDF, sniffed: []string{mimePDF}},
	".docx": {declared: mimeDOCX, sniffed: []string{mimeDOCX, mimeZIP}},
}

// activeStatuses are the states shown on a center dashboard.
var activeStatuses = []model.Status{model.StatusPending, model.StatusOTPIssued, model.StatusVerified}

// SubmitRequest is one upload. OwnerID is empty for anonymous QR uploads.
type SubmitRequest struct {
	Reader      io.Reader
	FileName    string
	ContentType string
	Size        int64
	CenterID    string
	OwnerID     string
	Submitter   model.Submitter
}

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// SubmitterGroup is the set of active documents one submitter sent to a center.
type SubmitterGroup struct {
	OwnerID   string           `json:"owner_id,omitempty"`
	Name      string           `json:"name"`
	Email     string           `json:"email,omitempty"`
	Phone     string           `json:"phone,omitempty"`
	Documents []model.Document `json:"documents"`
}

// IntakeService defines the document intake use cases.
type IntakeService interface {
	// Submit validates the upload, stores its bytes and creates a pending document.
	// The object is deleted again if the row cannot be created.
	Submit(ctx context.Context, req SubmitRequest) (*model.Document, error)

	// ListForCenter returns the operator's active documents grouped by submitter, newest first.
	ListForCenter(ctx context.Context, p model.Principal) ([]SubmitterGroup, error)

	// ListMine returns a page of the caller's own documents.
	ListMine(ctx context.Context, p model.Principal, limit, offset int) (*DocumentListResult, error)

	// Get returns a document visible to its owner or to the operator of its center.
	Get(ctx context.Context, p model.Principal, id string) (*model.Document, error)

	// Delete tombstones a document, revokes its codes and purges its bytes.
	Delete(ctx context.Context, p model.Principal, id string) error
}

type anonymousContact struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email,max=254"`
	Phone string `json:"phone" validate:"required,max=32"`
}

type intakeService struct {
	store    repository.Store
	content  storage.Storage
	dir      DirectoryService
	retrier  *retry.Retrier
	log      *zap.Logger
	metrics  *Metrics
	maxBytes int64
	validate *validator.Validate
	now      func() time.Time
}

// NewIntakeService constructs an IntakeService.
func NewIntakeService(store repository.Store, content storage.Storage, dir DirectoryService, r *retry.Retrier, log *zap.Logger, m *Metrics, cfg config.IntakeConfig) IntakeService {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return &intakeService{
		store:    store,
		content:  content,
		dir:      dir,
		retrier:  r,
		log:      log,
		metrics:  m,
		maxBytes: cfg.MaxBytes,
		validate: v,
		now:      time.Now,
	}
}

func (s *intakeService) Submit(ctx context.Context, req SubmitRequest) (*model.Document, error) {
	if req.Reader == nil {
		return nil, invalid("file", "file is required")
	}
	name := filepath.Base(strings.TrimSpace(req.FileName))
	if name == "" || name == "." || name == "/" {
		return nil, invalid("file", "file name is required")
	}
	if req.Size <= 0 {
		return nil, invalid("file", "file is empty")
	}
	if req.Size > s.maxBytes {
		return nil, invalid("file", fmt.Sprintf("file exceeds the maximum size of %s", formatBytes(s.maxBytes)))
	}

	ext := strings.ToLower(filepath.Ext(name))
	allowed, ok := allowedTypes[ext]
	if !ok {
		return nil, invalid("file", "only PDF and DOCX files are accepted")
	}
	if declared := mediaType(req.ContentType); declared != "" && declared != "application/octet-stream" && declared != allowed.declared {
		return nil, invalid("file", "content type does not match the file extension")
	}

	if strings.TrimSpace(req.CenterID) == "" {
		return nil, invalid("center_id", "center_id is required")
	}
	if _, err := s.dir.Resolve(ctx, req.CenterID); err != nil {
		return nil, err
	}

	submitter, err := s.submitter(req)
	if err != nil {
		return nil, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(req.Reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, transient("read upload", err)
	}
	head = head[:n]
	if !sniffMatches(mimetype.Detect(head), allowed.sniffed) {
		return nil, invalid("file", "file content is not a valid PDF or DOCX document")
	}

	id := uuid.NewString()
	key := storage.DocumentKey(req.CenterID, id, ext)
	body := &limitedReader{r: io.MultiReader(bytes.NewReader(head), req.Reader), remaining: s.maxBytes}

	var info storage.ObjectInfo
	err = s.retrier.Do(ctx, "storage.put", func(ctx context.Context) error {
		var putErr error
		info, putErr = s.content.Put(ctx, key, body, storage.PutObjectOptions{
			Size:        req.Size,
			ContentType: allowed.declared,
			Metadata:    map[string]string{originalFileMeta: name},
		})
		// A partially consumed stream cannot be replayed.
		if putErr != nil && body.read > 0 {
			return retry.Permanent(putErr)
		}
		return storageErr(putErr)
	})
	if body.exceeded {
		s.deleteObject(ctx, key)
		return nil, invalid("file", fmt.Sprintf("file exceeds the maximum size of %s", formatBytes(s.maxBytes)))
	}
	if err != nil {
		return nil, transient("upload to storage", err)
	}

	size := info.Size
	if size <= 0 {
		size = req.Size
	}
	now := s.now().UTC()
	doc := &model.Document{
		ID:          id,
		CenterID:    req.CenterID,
		OwnerID:     req.OwnerID,
		Submitter:   submitter,
		Filename:    name,
		StorageKey:  key,
		Size:        size,
		ContentType: allowed.declared,
		Status:      model.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	stored, err := s.store.Documents().Create(ctx, doc)
	if err != nil {
		if delErr := s.deleteObjectErr(ctx, key); delErr != nil {
			s.log.Error("intake_rollback_failed", zap.String("storage_key", key), zap.Error(delErr))
			return nil, internal("db save failed", fmt.Errorf("%v; rollback delete failed: %v", err, delErr))
		}
		return nil, internal("db save failed", err)
	}

	s.metrics.documentSubmitted()
	s.log.Info("document_submitted",
		zap.String("document_id", stored.ID),
		zap.String("center_id", stored.CenterID),
		zap.Bool("anonymous", stored.Anonymous()),
		zap.Int64("size", stored.Size))
	return stored, nil
}

// submitter validates the contact triple. It is mandatory only for anonymous uploads.
func (s *intakeService) submitter(req SubmitRequest) (model.Submitter, error) {
	sub := model.Submitter{
		Name:  strings.TrimSpace(req.Submitter.Name),
		Email: strings.TrimSpace(req.Submitter.Email),
		Phone: strings.TrimSpace(req.Submitter.Phone),
	}
	if req.OwnerID != "" {
		return sub, nil
	}
	err := s.validate.Struct(anonymousContact{Name: sub.Name, Email: sub.Email, Phone: sub.Phone})
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return sub, invalid(fe.Field(), fe.Field()+" is required")
		case "email":
			return sub, invalid(fe.Field(), "email is not a valid email address")
		default:
			return sub, invalid(fe.Field(), fe.Field()+" is too long")
		}
	}
	if err != nil {
		return sub, internal("validate submitter", err)
	}
	return sub, nil
}

func (s *intakeService) deleteObject(ctx context.Context, key string) {
	if err := s.deleteObjectErr(ctx, key); err != nil {
		s.log.Warn("content_delete_failed", zap.String("storage_key", key), zap.Error(err))
	}
}

func (s *intakeService) deleteObjectErr(ctx context.Context, key string) error {
	return s.retrier.Do(ctx, "storage.delete", func(ctx context.Context) error {
		return storageErr(s.content.Delete(ctx, key))
	})
}

func (s *intakeService) ListForCenter(ctx context.Context, p model.Principal) ([]SubmitterGroup, error) {
	center, err := s.dir.CenterFor(ctx, p)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.Documents().ListByCenter(ctx, center.ID, activeStatuses)
	if err != nil {
		return nil, internal("list center documents", err)
	}
	return groupBySubmitter(docs), nil
}

// groupBySubmitter keys on the owner account when present, otherwise on email and phone.
// Groups keep the order of their newest document.
func groupBySubmitter(docs []model.Document) []SubmitterGroup {
	groups := make([]SubmitterGroup, 0)
	index := make(map[string]int)
	for _, d := range docs {
		key := "owner:" + d.OwnerID
		if d.OwnerID == "" {
			key = "contact:" + strings.ToLower(d.Submitter.Email) + "|" + d.Submitter.Phone
		}
		i, ok := index[key]
		if !ok {
			name := d.Submitter.Name
			if name == "" {
				name = anonymousName
			}
			groups = append(groups, SubmitterGroup{
				OwnerID: d.OwnerID,
				Name:    name,
				Email:   d.Submitter.Email,
				Phone:   d.Submitter.Phone,
			})
			i = len(groups) - 1
			index[key] = i
		}
		groups[i].Documents = append(groups[i].Documents, d)
	}
	return groups
}

func (s *intakeService) ListMine(ctx context.Context, p model.Principal, limit, offset int) (*DocumentListResult, error) {
	if !p.Authenticated() {
		return nil, ErrForbidden
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	res, err := s.store.Documents().ListByOwner(ctx, p.AccountID, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, internal("list owner documents", err)
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *intakeService) Get(ctx context.Context, p model.Principal, id string) (*model.Document, error) {
	center, err := s.viewerCenter(ctx, p)
	if err != nil {
		return nil, err
	}
	doc, err := findDocument(ctx, s.store.Documents(), id)
	if err != nil {
		return nil, err
	}
	if !canAccess(p, center, doc) {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// viewerCenter returns the center an operator runs, or nil for other callers.
func (s *intakeService) viewerCenter(ctx context.Context, p model.Principal) (*model.Center, error) {
	if !p.IsOperator() {
		return nil, nil
	}
	center, err := s.dir.CenterFor(ctx, p)
	if err != nil && !errors.Is(err, ErrAuthorization) {
		return nil, err
	}
	return center, nil
}

// canAccess hides documents from everyone except their owner and their center's operator.
func canAccess(p model.Principal, center *model.Center, doc *model.Document) bool {
	if !p.Authenticated() {
		return false
	}
	if doc.OwnerID != "" && doc.OwnerID == p.AccountID {
		return true
	}
	return center != nil && center.ID == doc.CenterID
}

func (s *intakeService) Delete(ctx context.Context, p model.Principal, id string) error {
	center, err := s.viewerCenter(ctx, p)
	if err != nil {
		return err
	}
	var deleted *model.Document
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		doc, err := lockDocument(ctx, tx.Documents(), id)
		if err != nil {
			return err
		}
		if !canAccess(p, center, doc) {
			return ErrDocumentNotFound
		}
		now := s.now().UTC()
		if _, err := tx.Codes().InvalidateAll(ctx, doc.ID, model.ConsumeRevoked, now); err != nil {
			return internal("revoke codes", err)
		}
		if err := tx.Documents().UpdateStatus(ctx, doc.ID, doc.Status, model.StatusDeleted, now); err != nil {
			return stateError("delete document", err)
		}
		deleted = doc
		return nil
	})
	if err != nil {
		return err
	}

	purgeContent(ctx, s.content, s.retrier, s.log, deleted)
	s.log.Info("document_deleted",
		zap.String("document_id", deleted.ID),
		zap.String("previous_status", string(deleted.Status)))
	return nil
}

// findDocument loads a visible document. Deleted documents do not exist to callers.
func findDocument(ctx context.Context, docs repository.DocumentRepository, id string) (*model.Document, error) {
	return loadDocument(ctx, id, docs.FindByID)
}

// lockDocument is findDocument holding the row lock of the enclosing transaction.
func lockDocument(ctx context.Context, docs repository.DocumentRepository, id string) (*model.Document, error) {
	return loadDocument(ctx, id, docs.LockByID)
}

func loadDocument(ctx context.Context, id string, load func(context.Context, string) (*model.Document, error)) (*model.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrDocumentNotFound
	}
	doc, err := load(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, internal("load document", err)
	}
	if doc.Status == model.StatusDeleted {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// stateError maps a failed conditional update to ErrStaleState.
func stateError(op string, err error) error {
	if errors.Is(err, repository.ErrStaleState) {
		return ErrStaleState
	}
	if errors.Is(err, repository.ErrNotFound) {
		return ErrDocumentNotFound
	}
	return internal(op, err)
}

func sniffMatches(m *mimetype.MIME, accepted []string) bool {
	for ; m != nil; m = m.Parent() {
		for _, a := range accepted {
			if m.Is(a) {
				return true
			}
		}
	}
	return false
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func formatBytes(n int64) string {
	const mib = 1 << 20
	if n >= mib && n%mib == 0 {
		return fmt.Sprintf("%d MiB", n/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}

// limitedReader fails the stream once more than remaining bytes were read.
type limitedReader struct {
	r         io.Reader
	remaining int64
	read      int64
	exceeded  bool
}

var errTooLarge = errors.New("upload exceeds size limit")

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, errTooLarge
	}
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.remaining {
		l.exceeded = true
		return n, errTooLarge
	}
	return n, err
}
