package attachments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// RefPrefix is the public URL prefix under which stored attachments are served.
const RefPrefix = "/uploads/"

var (
	ErrEmptyAttachment = errors.New("attachment is empty")
	ErrTooLarge        = errors.New("attachment exceeds size limit")
	ErrInvalidKey      = errors.New("invalid attachment key")
)

var keyPattern = regexp.MustCompile(`^[0-9A-Za-z]{26}(\.[0-9A-Za-z]{1,16})?$`)

// Attachment is an uploaded file as received from the client.
type Attachment struct {
	Filename string
	Data     []byte
}

// Stored describes an attachment after it has been written to storage.
type Stored struct {
	Key         string
	Ref         string
	ContentType string
	Size        int64
}

type Service struct {
	storage  Storage
	maxBytes int64
	log      zerolog.Logger
}

func NewService(storage Storage, maxBytes int64, log zerolog.Logger) *Service {
	return &Service{
		storage:  storage,
		maxBytes: maxBytes,
		log:      log.With().Str("component", "attachments").Logger(),
	}
}

// Store writes the attachment under a fresh key and returns its retrievable reference.
func (s *Service) Store(ctx context.Context, ownerID uuid.UUID, a Attachment) (*Stored, error) {
	size := int64(len(a.Data))
	if size == 0 {
		return nil, ErrEmptyAttachment
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, size, s.maxBytes)
	}

	mt := mimetype.Detect(a.Data)
	key := ulid.Make().String() + extensionFor(a.Filename, mt)

	if err := s.storage.Upload(ctx, key, bytes.NewReader(a.Data), size, mt.String()); err != nil {
		return nil, fmt.Errorf("upload attachment: %w", err)
	}

	s.log.Info().
		Str("owner_id", ownerID.String()).
		Str("key", key).
		Str("content_type", mt.String()).
		Int64("bytes", size).
		Msg("attachment stored")

	return &Stored{Key: key, Ref: RefPrefix + key, ContentType: mt.String(), Size: size}, nil
}

// Remove deletes a previously stored attachment by its reference or key.
func (s *Service) Remove(ctx context.Context, ref string) error {
	key := strings.TrimPrefix(ref, RefPrefix)
	if err := ValidateKey(key); err != nil {
		return err
	}
	return s.storage.Delete(ctx, key)
}

// Open streams a stored attachment. The caller closes the reader.
func (s *Service) Open(ctx context.Context, key string) (*Object, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	body, contentType, err := s.storage.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Object{Body: body, ContentType: contentType}, nil
}

func (s *Service) Health(ctx context.Context) error {
	return s.storage.Health(ctx)
}

// ValidateKey accepts only keys minted by Store.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return ErrInvalidKey
	}
	return nil
}

// extensionFor prefers the client's extension and falls back to the sniffed one.
func extensionFor(filename string, mt *mimetype.MIME) string {
	for _, ext := range []string{strings.ToLower(filepath.Ext(filepath.Base(filename))), mt.Extension()} {
		if len(ext) > 1 && keyPattern.MatchString(placeholderID+ext) {
			return ext
		}
	}
	return ""
}

var placeholderID = strings.Repeat("0", 26)
