package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cyberprint/internal/config"
	"cyberprint/internal/grant"
	"cyberprint/internal/model"
	"cyberprint/internal/notify"
	"cyberprint/internal/repository"
	"cyberprint/internal/retry"
)

// GrantStore persists content access grants. *grant.Store satisfies it.
type GrantStore interface {
	Save(ctx context.Context, g model.ContentAccessGrant) error
	Claim(ctx context.Context, token string) (*model.ContentAccessGrant, error)
	Release(ctx context.Context, token string) error
	Consume(ctx context.Context, token string) error
}

var _ GrantStore = (*grant.Store)(nil)

// IssuedCode is what the operator learns about an issued code. The value itself only
// reaches the submitter.
type IssuedCode struct {
	DocumentID string    `json:"document_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// OTPService gates content access behind a one-time code delivered to the submitter.
type OTPService interface {
	// Issue mints a code for a pending document, or for an otp_issued document whose
	// previous code is no longer live, and sends it to the submitter.
	Issue(ctx context.Context, p model.Principal, documentID string) (*IssuedCode, error)

	// Verify checks code against the document's live code. On success the code is
	// consumed, the document becomes verified and a content access grant is returned.
	Verify(ctx context.Context, p model.Principal, documentID, code string) (*model.ContentAccessGrant, error)
}

type otpService struct {
	store       repository.Store
	dir         DirectoryService
	grants      GrantStore
	notifier    notify.Notifier
	retrier     *retry.Retrier
	log         *zap.Logger
	metrics     *Metrics
	length      int
	ttl         time.Duration
	maxAttempts int
	pepper      []byte
	grantTTL    time.Duration
	now         func() time.Time
}

// NewOTPService constructs an OTPService.
func NewOTPService(store repository.Store, dir DirectoryService, grants GrantStore, n notify.Notifier, r *retry.Retrier, log *zap.Logger, m *Metrics, cfg config.OTPConfig, grantTTL time.Duration) OTPService {
	length := cfg.Length
	if length <= 0 {
		length = 6
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &otpService{
		store:       store,
		dir:         dir,
		grants:      grants,
		notifier:    n,
		retrier:     r,
		log:         log,
		metrics:     m,
		length:      length,
		ttl:         cfg.TTL,
		maxAttempts: maxAttempts,
		pepper:      []byte(cfg.Pepper),
		grantTTL:    grantTTL,
		now:         time.Now,
	}
}

func (s *otpService) Issue(ctx context.Context, p model.Principal, documentID string) (*IssuedCode, error) {
	center, err := s.dir.CenterFor(ctx, p)
	if err != nil {
		return nil, err
	}
	plain, err := generateNumericCode(s.length)
	if err != nil {
		return nil, internal("generate code", err)
	}

	now := s.now().UTC()
	code := &model.OneTimeCode{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Digest:     s.digest(documentID, plain),
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.ttl),
	}

	var doc *model.Document
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		d, err := lockDocument(ctx, tx.Documents(), documentID)
		if err != nil {
			return err
		}
		if d.CenterID != center.ID {
			return ErrWrongCenter
		}
		switch d.Status {
		case model.StatusPending:
		case model.StatusOTPIssued:
			latest, err := tx.Codes().FindLatest(ctx, d.ID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return internal("find latest code", err)
			}
			if latest != nil && latest.Live(now) {
				return ErrCodeStillLive
			}
		case model.StatusPrinted:
			return ErrAlreadyPrinted
		default:
			return ErrStaleState
		}
		if d.Submitter.Email == "" && d.Submitter.Phone == "" {
			return invalid("contact", "submitter has no email or phone to receive the code")
		}

		if _, err := tx.Codes().InvalidateAll(ctx, d.ID, model.ConsumeSuperseded, now); err != nil {
			return internal("supersede codes", err)
		}
		if err := tx.Codes().Create(ctx, code); err != nil {
			return internal("create code", err)
		}
		if err := tx.Documents().UpdateStatus(ctx, d.ID, d.Status, model.StatusOTPIssued, now); err != nil {
			return stateError("mark otp issued", err)
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	msg := notify.CodeNotification{
		DocumentID:    doc.ID,
		Contact:       notify.Contact{Name: doc.Submitter.Name, Email: doc.Submitter.Email, Phone: doc.Submitter.Phone},
		Code:          plain,
		DocumentLabel: doc.Filename,
		CenterName:    center.Name,
		ExpiresAt:     code.ExpiresAt,
	}
	if err := s.retrier.Do(ctx, "notify.send", func(ctx context.Context) error {
		return s.notifier.Send(ctx, msg)
	}); err != nil {
		// Without delivery nobody can use the code; free the document for a re-issue.
		if revokeErr := s.store.Codes().Consume(ctx, code.ID, model.ConsumeRevoked, s.now().UTC()); revokeErr != nil && !errors.Is(revokeErr, repository.ErrStaleState) {
			s.log.Error("otp_revoke_failed", zap.String("document_id", doc.ID), zap.Error(revokeErr))
		}
		s.log.Warn("otp_delivery_failed", zap.String("document_id", doc.ID), zap.Error(err))
		return nil, transient("deliver code", err)
	}

	s.metrics.codeIssued()
	s.log.Info("otp_issued",
		zap.String("document_id", doc.ID),
		zap.String("center_id", center.ID),
		zap.String("code_id", code.ID),
		zap.Time("expires_at", code.ExpiresAt))
	return &IssuedCode{DocumentID: doc.ID, ExpiresAt: code.ExpiresAt}, nil
}

func (s *otpService) Verify(ctx context.Context, p model.Principal, documentID, supplied string) (*model.ContentAccessGrant, error) {
	supplied = strings.TrimSpace(supplied)
	if supplied == "" {
		return nil, invalid("otp", "otp is required")
	}
	center, err := s.dir.CenterFor(ctx, p)
	if err != nil {
		return nil, err
	}

	var (
		outcome error
		result  string
		g       *model.ContentAccessGrant
	)
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		doc, err := lockDocument(ctx, tx.Documents(), documentID)
		if err != nil {
			return err
		}
		if doc.CenterID != center.ID {
			return ErrWrongCenter
		}

		code, err := tx.Codes().FindLatest(ctx, doc.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				if doc.Status.Terminal() {
					return ErrStaleState
				}
				return ErrNoLiveCode
			}
			return internal("find latest code", err)
		}
		if code.Consumed {
			switch {
			case code.ConsumeReason == model.ConsumeVerified:
				return ErrAlreadyConsumed
			case doc.Status.Terminal():
				return ErrStaleState
			case code.ConsumeReason == model.ConsumeExpired:
				return ErrCodeExpired
			default:
				return ErrNoLiveCode
			}
		}
		if doc.Status != model.StatusOTPIssued {
			return ErrStaleState
		}

		now := s.now().UTC()
		if code.Expired(now) {
			if err := tx.Codes().Consume(ctx, code.ID, model.ConsumeExpired, now); err != nil {
				return stateError("expire code", err)
			}
			outcome, result = ErrCodeExpired, "expired"
			return nil
		}

		if !s.matches(doc.ID, supplied, code.Digest) {
			attempts, err := tx.Codes().IncrementAttempts(ctx, code.ID)
			if err != nil {
				return internal("record attempt", err)
			}
			result = "mismatch"
			if attempts >= s.maxAttempts {
				if err := tx.Codes().Consume(ctx, code.ID, model.ConsumeExhausted, now); err != nil {
					return stateError("exhaust code", err)
				}
				result = "exhausted"
			}
			outcome = ErrCodeMismatch
			return nil
		}

		if err := tx.Codes().Consume(ctx, code.ID, model.ConsumeVerified, now); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return ErrAlreadyConsumed
			}
			return internal("consume code", err)
		}
		if err := tx.Documents().UpdateStatus(ctx, doc.ID, model.StatusOTPIssued, model.StatusVerified, now); err != nil {
			return stateError("mark verified", err)
		}

		token, err := grant.NewToken()
		if err != nil {
			return internal("generate grant", err)
		}
		candidate := model.ContentAccessGrant{
			Token:      token,
			DocumentID: doc.ID,
			CenterID:   doc.CenterID,
			ExpiresAt:  now.Add(s.grantTTL),
		}
		if err := s.retrier.Do(ctx, "grant.save", func(ctx context.Context) error {
			return s.grants.Save(ctx, candidate)
		}); err != nil {
			return transient("save grant", err)
		}
		g = &candidate
		result = "success"
		return nil
	})
	if err != nil {
		if g != nil {
			// The transaction did not commit; the saved grant must not outlive it.
			if cErr := s.grants.Consume(ctx, g.Token); cErr != nil {
				s.log.Error("grant_discard_failed", zap.String("document_id", documentID), zap.Error(cErr))
			}
		}
		s.metrics.verifyResult(verifyLabel(err))
		s.log.Warn("otp_verify_rejected", zap.String("document_id", documentID), zap.Error(err))
		return nil, err
	}
	s.metrics.verifyResult(result)
	if outcome != nil {
		s.log.Warn("otp_verify_rejected",
			zap.String("document_id", documentID),
			zap.String("result", result),
			zap.Error(outcome))
		return nil, outcome
	}

	s.log.Info("otp_verified",
		zap.String("document_id", documentID),
		zap.Time("grant_expires_at", g.ExpiresAt))
	return g, nil
}

func verifyLabel(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyConsumed):
		return "consumed"
	case errors.Is(err, ErrCodeExpired):
		return "expired"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrAuthorization):
		return "forbidden"
	default:
		return "error"
	}
}

// digest binds the code to its document so a digest copied to another row never matches.
func (s *otpService) digest(documentID, code string) string {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(documentID))
	mac.Write([]byte{':'})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *otpService) matches(documentID, supplied, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(s.digest(documentID, supplied)), []byte(stored)) == 1
}

func generateNumericCode(length int) (string, error) {
	const digits = "0123456789"
	code := make([]byte, length)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		code[i] = digits[num.Int64()]
	}
	return string(code), nil
}
