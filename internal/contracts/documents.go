package contracts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/rentify-backend/internal/storage"
	"github.com/aldoetobex/rentify-backend/pkg/models"
	"github.com/aldoetobex/rentify-backend/pkg/sanitize"
)

// Upload is one file to attach to a contract.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// UploadDocuments stores the files and attaches them to the contract with a
// single documents_uploaded history entry. Blobs already stored are removed
// again when the contract write fails.
func (s *Service) UploadDocuments(ctx context.Context, caller Caller, id uuid.UUID, files []Upload) (*models.Contract, []models.ContractDocument, error) {
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one file is required", ErrInvalidArgument)
	}
	if len(files) > s.opts.MaxUploadFiles {
		return nil, nil, fmt.Errorf("%w: max %d files allowed", ErrInvalidArgument, s.opts.MaxUploadFiles)
	}
	for _, f := range files {
		if f.Size <= 0 {
			return nil, nil, fmt.Errorf("%w: %s is empty", ErrInvalidArgument, f.Filename)
		}
		if f.Size > s.opts.MaxUploadBytes {
			return nil, nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidArgument, f.Filename, s.opts.MaxUploadBytes)
		}
	}

	// Authorize before touching storage.
	if _, err := s.authorizeParty(ctx, caller, id); err != nil {
		return nil, nil, err
	}

	log := s.log.WithField("contract_id", id)
	stored := make([]models.ContractDocument, 0, len(files))
	keys := make([]string, 0, len(files))
	cleanup := func() {
		if len(keys) == 0 {
			return
		}
		// Detached from the request so cleanup still runs after a cancel.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := s.blob.BulkDelete(cctx, keys); err != nil {
			log.WithError(err).WithField("keys", keys).Warn("failed to remove orphaned uploads")
		}
	}

	for _, f := range files {
		ct := contentType(f)
		key := DocumentKey(id, f.Filename)

		obj, err := s.putFile(ctx, key, f, ct)
		if err != nil {
			cleanup()
			log.WithError(err).WithField("filename", f.Filename).Error("document upload failed")
			return nil, nil, fmt.Errorf("%w: upload %s: %v", ErrInternal, f.Filename, err)
		}
		keys = append(keys, key)
		stored = append(stored, models.ContractDocument{
			Filename:    strings.TrimSpace(filepath.Base(f.Filename)),
			URL:         obj.URL,
			StorageKey:  key,
			ContentType: ct,
			Size:        f.Size,
		})
	}

	c, err := s.mutate(ctx, id, func(_ *gorm.DB, c *models.Contract) (*change, error) {
		if !caller.IsAdmin() && !c.IsParty(caller.ID) {
			return nil, fmt.Errorf("%w: not a party to this contract", ErrForbidden)
		}
		ch := &change{documents: make([]models.ContractDocument, len(stored))}
		copy(ch.documents, stored)
		ch.record(models.ActionDocumentsUploaded, ptr(caller.ID), fmt.Sprintf("%d document(s) uploaded", len(stored)))
		return ch, nil
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	// Report the new rows in upload order.
	added := make([]models.ContractDocument, 0, len(keys))
	for _, k := range keys {
		for _, d := range c.Documents {
			if d.StorageKey == k {
				added = append(added, d)
				break
			}
		}
	}
	return c, added, nil
}

func (s *Service) putFile(ctx context.Context, key string, f Upload, ct string) (storage.Object, error) {
	r, err := f.Open()
	if err != nil {
		return storage.Object{}, err
	}
	defer r.Close()
	return s.blob.Upload(ctx, key, r, ct, f.Size)
}

// DocumentURL returns a short-lived download link for a contract document.
func (s *Service) DocumentURL(ctx context.Context, caller Caller, contractID, docID uuid.UUID) (string, time.Duration, error) {
	if _, err := s.authorizeParty(ctx, caller, contractID); err != nil {
		return "", 0, err
	}

	var doc models.ContractDocument
	if err := s.db.WithContext(ctx).
		First(&doc, "id = ? AND contract_id = ?", docID, contractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", 0, fmt.Errorf("%w: document not found", ErrNotFound)
		}
		return "", 0, fmt.Errorf("%w: load document: %v", ErrInternal, err)
	}

	ttl := s.opts.SignedURLTTL
	url, err := s.blob.SignedURL(ctx, doc.StorageKey, ttl)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", 0, fmt.Errorf("%w: document file is missing", ErrNotFound)
		}
		s.log.WithField("contract_id", contractID).WithError(err).Error("sign document url failed")
		return "", 0, fmt.Errorf("%w: sign url: %v", ErrInternal, err)
	}
	return url, ttl, nil
}

// authorizeParty loads the bare contract row and checks the caller may see it.
func (s *Service) authorizeParty(ctx context.Context, caller Caller, id uuid.UUID) (*models.Contract, error) {
	var c models.Contract
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: contract not found", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: load contract: %v", ErrInternal, err)
	}
	if !caller.IsAdmin() && !c.IsParty(caller.ID) {
		return nil, fmt.Errorf("%w: not a party to this contract", ErrForbidden)
	}
	return &c, nil
}

// DocumentKey is the object key for an uploaded contract document.
func DocumentKey(contractID uuid.UUID, filename string) string {
	return fmt.Sprintf("contracts/%s/documents/%s-%s", contractID, uuid.NewString(), sanitize.Filename(filename))
}

// PDFKey is the object key of the generated agreement for a target status.
func PDFKey(contractID uuid.UUID, target models.ContractStatus) string {
	return fmt.Sprintf("contracts/%s/%s", contractID, PDFFilename(contractID, target))
}

func PDFFilename(contractID uuid.UUID, target models.ContractStatus) string {
	return fmt.Sprintf("contract-%s-%s.pdf", contractID, target)
}

func contentType(f Upload) string {
	if ct := strings.TrimSpace(f.ContentType); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
