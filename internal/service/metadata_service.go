package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/alanyoungcy/presalebot/internal/domain"
)

// MetadataConfig describes the collection's token metadata.
type MetadataConfig struct {
	NamePrefix  string
	Description string
	// ImageBase is joined with "<id>.svg" to form the image URL.
	ImageBase string
	MaxTokens int
	// Prefix is the object key prefix used by Publish.
	Prefix string
}

// PublishReport summarises a Publish run.
type PublishReport struct {
	Written int
	Skipped int
}

// MetadataService serves and publishes the per-token metadata documents the
// contract's tokenURI points at.
type MetadataService struct {
	cfg    MetadataConfig
	writer domain.BlobWriter
	reader domain.BlobReader
	client *retryablehttp.Client
	logger *slog.Logger
}

// NewMetadataService creates a MetadataService. writer and reader may be nil
// when only serving.
func NewMetadataService(cfg MetadataConfig, writer domain.BlobWriter, reader domain.BlobReader, logger *slog.Logger) *MetadataService {
	logger = logger.With(slog.String("component", "metadata_service"))

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = logger

	return &MetadataService{
		cfg:    cfg,
		writer: writer,
		reader: reader,
		client: client,
		logger: logger,
	}
}

// ForToken builds the metadata document of token id.
func (m *MetadataService) ForToken(id uint64) domain.TokenMetadata {
	return domain.TokenMetadata{
		Name:        fmt.Sprintf("%s #%d", m.cfg.NamePrefix, id),
		Description: m.cfg.Description,
		Image:       fmt.Sprintf("%s%d.svg", m.cfg.ImageBase, id),
	}
}

// Lookup parses a token id from a request path segment. Anything that is not
// a non-negative integer fails with domain.ErrInvalidTokenID.
func (m *MetadataService) Lookup(raw string) (domain.TokenMetadata, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return domain.TokenMetadata{}, fmt.Errorf("service: token id %q: %w", raw, domain.ErrInvalidTokenID)
	}
	return m.ForToken(id), nil
}

// ObjectKey is the storage key of token id's document.
func (m *MetadataService) ObjectKey(id uint64) string {
	return path.Join(m.cfg.Prefix, strconv.FormatUint(id, 10))
}

// Publish writes documents for tokens 1..MaxTokens. Existing objects are
// kept unless force is set.
func (m *MetadataService) Publish(ctx context.Context, force bool) (PublishReport, error) {
	var rep PublishReport
	if m.writer == nil {
		return rep, errors.New("service: publish: no blob writer configured")
	}
	for id := uint64(1); id <= uint64(m.cfg.MaxTokens); id++ {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		key := m.ObjectKey(id)
		if !force && m.reader != nil {
			exists, err := m.reader.Exists(ctx, key)
			if err != nil {
				return rep, fmt.Errorf("service: publish %s: %w", key, err)
			}
			if exists {
				rep.Skipped++
				continue
			}
		}

		body, err := json.Marshal(m.ForToken(id))
		if err != nil {
			return rep, fmt.Errorf("service: encode metadata %d: %w", id, err)
		}
		if err := m.writer.Put(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
			return rep, fmt.Errorf("service: publish %s: %w", key, err)
		}
		rep.Written++
	}
	m.logger.InfoContext(ctx, "metadata published",
		slog.Int("written", rep.Written),
		slog.Int("skipped", rep.Skipped),
	)
	return rep, nil
}

// Preflight fetches the document of token 1 from baseURL, the URI the
// contract will be deployed with, and checks that it decodes.
func (m *MetadataService) Preflight(ctx context.Context, baseURL string) error {
	url := baseURL + "1"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("service: preflight %s: %w", url, err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("service: preflight %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service: preflight %s: status %d", url, resp.StatusCode)
	}
	var doc domain.TokenMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&doc); err != nil {
		return fmt.Errorf("service: preflight %s: decode: %w", url, err)
	}
	if doc.Name == "" {
		return fmt.Errorf("service: preflight %s: document has no name", url)
	}
	return nil
}
