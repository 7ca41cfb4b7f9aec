package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cyberprint/internal/config"
	"cyberprint/internal/grant"
	"cyberprint/internal/model"
	"cyberprint/internal/notify"
	"cyberprint/internal/repository/memory"
	"cyberprint/internal/retry"
	"cyberprint/internal/storage"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeContent is an in-memory storage.Storage with injectable failures.
type fakeContent struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	getErrs []error
	deleted []string
}

func newFakeContent() *fakeContent {
	return &fakeContent{objects: map[string][]byte{}}
}

func (f *fakeContent) Put(_ context.Context, key string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	f.mu.Lock()
	putErr := f.putErr
	f.mu.Unlock()
	if putErr != nil {
		return storage.ObjectInfo{}, putErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = b
	return storage.ObjectInfo{Key: key, Size: int64(len(b)), ContentType: opt.ContentType}, nil
}

func (f *fakeContent) Get(_ context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		return nil, storage.ObjectInfo{}, err
	}
	b, ok := f.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), storage.ObjectInfo{Key: key, Size: int64(len(b)), ContentType: mimePDF}, nil
}

func (f *fakeContent) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeContent) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeContent) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// captureNotifier records every notification and can be told to fail.
type captureNotifier struct {
	mu   sync.Mutex
	msgs []notify.CodeNotification
	err  error
}

func (c *captureNotifier) Send(_ context.Context, n notify.CodeNotification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, n)
	return nil
}

func (c *captureNotifier) last(t *testing.T) notify.CodeNotification {
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.msgs, "no notification sent")
	return c.msgs[len(c.msgs)-1]
}

func (c *captureNotifier) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

type harness struct {
	store    *memory.Store
	content  *fakeContent
	notifier *captureNotifier
	grants   *grant.Store
	redis    *miniredis.Miniredis
	clock    *testClock
	dir      *directoryService
	intake   *intakeService
	otp      *otpService
	print    *printService
	sweeper  *Sweeper

	center   *model.Center
	operator model.Principal
}

var (
	testOTP = config.OTPConfig{Length: 6, TTL: 5 * time.Minute, MaxAttempts: 5, Pepper: "pepper"}
	testPrint = config.PrintConfig{
		GrantTTL:       2 * time.Minute,
		ConfirmTimeout: 15 * time.Minute,
		DocumentTTL:    72 * time.Hour,
		SweepInterval:  time.Minute,
	}
	errUnavailable = errors.New("connection refused")
)

func newHarness(t *testing.T) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := zap.NewNop()
	retrier := retry.New(retry.Config{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, log)
	clock := &testClock{t: time.Now().UTC()}

	h := &harness{
		store:    memory.New(),
		content:  newFakeContent(),
		notifier: &captureNotifier{},
		grants:   grant.NewStore(client),
		redis:    mr,
		clock:    clock,
	}
	h.dir = NewDirectoryService(h.store.Centers(), "https://print.example.com/").(*directoryService)
	h.dir.now = clock.Now
	h.intake = NewIntakeService(h.store, h.content, h.dir, retrier, log, nil, config.IntakeConfig{MaxBytes: 10 << 20}).(*intakeService)
	h.intake.now = clock.Now
	h.otp = NewOTPService(h.store, h.dir, h.grants, h.notifier, retrier, log, nil, testOTP, testPrint.GrantTTL).(*otpService)
	h.otp.now = clock.Now
	h.print = NewPrintService(h.store, h.content, h.dir, h.grants, retrier, log, nil).(*printService)
	h.print.now = clock.Now
	h.sweeper = NewSweeper(h.store, h.content, retrier, log, nil, testPrint)
	h.sweeper.now = clock.Now

	center, err := h.dir.Create(context.Background(), "Warnet Jaya", "Jl. Merdeka 1", "op-1")
	require.NoError(t, err)
	h.center = center
	h.operator = model.Principal{AccountID: "op-1", Role: model.RoleOperator, Name: "Operator"}
	return h
}

func pdfBytes(size int) []byte {
	head := []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	if size <= len(head) {
		return head
	}
	return append(head, bytes.Repeat([]byte("0"), size-len(head))...)
}

func docxBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"[Content_Types].xml", "word/document.xml"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("<xml/>"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

var anonymous = model.Submitter{Name: "Budi", Email: "budi@example.com", Phone: "08123456789"}

// submitAnonymous uploads a small PDF through the center's QR path.
func (h *harness) submitAnonymous(t *testing.T) *model.Document {
	t.Helper()
	body := pdfBytes(2048)
	doc, err := h.intake.Submit(context.Background(), SubmitRequest{
		Reader:      bytes.NewReader(body),
		FileName:    "thesis.pdf",
		ContentType: mimePDF,
		Size:        int64(len(body)),
		CenterID:    h.center.ID,
		Submitter:   anonymous,
	})
	require.NoError(t, err)
	return doc
}

// issue returns the plain code delivered to the submitter.
func (h *harness) issue(t *testing.T, docID string) string {
	t.Helper()
	_, err := h.otp.Issue(context.Background(), h.operator, docID)
	require.NoError(t, err)
	return h.notifier.last(t).Code
}

func (h *harness) status(t *testing.T, docID string) model.Status {
	t.Helper()
	d, err := h.store.Documents().FindByID(context.Background(), docID)
	require.NoError(t, err)
	return d.Status
}

func wrongCode(code string) string {
	b := []byte(code)
	b[0] = '0' + (b[0]-'0'+1)%10
	return string(b)
}
