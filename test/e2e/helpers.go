//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/petrorag/petrorag/internal/api/handlers"
	"github.com/petrorag/petrorag/internal/embedding"
	"github.com/petrorag/petrorag/internal/ingest"
	"github.com/petrorag/petrorag/internal/memory"
	"github.com/petrorag/petrorag/internal/server"
	"github.com/petrorag/petrorag/internal/service"
	"github.com/petrorag/petrorag/internal/storage"
	"github.com/petrorag/petrorag/internal/testutil"
	"github.com/petrorag/petrorag/internal/textproc"
)

const (
	s3Bucket = "e2e-embeddings"
	s3Key    = "embeddings.bin"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	MinIOC     *testutil.MinIOContainer
	S3Client   *storage.S3Client
	DataDir    string
	StoreFile  string
	Provider   *hashProvider
	Engine     *service.Engine
	Indexer    *service.Indexer
	ServerURL  string
	HTTPClient *http.Client
	closeSrv   func()
}

// SetupE2EEnv wires the full pipeline against MinIO and a deterministic
// provider, and serves it over HTTP.
func SetupE2EEnv(t *testing.T, useMemory bool) *E2ETestEnv {
	ctx := context.Background()

	minioC := testutil.NewMinIOContainer(ctx, t)

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        minioC.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.MinIOAccessKey,
		SecretAccessKey: testutil.MinIOSecretKey,
		Bucket:          s3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dataDir := t.TempDir()
	storeFile := filepath.Join(t.TempDir(), "embeddings.bin")

	segmenter, err := textproc.NewPunktSegmenter()
	if err != nil {
		t.Fatalf("failed to load segmenter: %v", err)
	}
	processor := ingest.NewProcessor(plainTextExtractor{}, segmenter, service.ChunkConfig{SentencesPerChunk: 2}, logger)

	var sessions *memory.Store
	if useMemory {
		sessions = memory.NewStore(memory.DefaultConfig())
	}

	provider := &hashProvider{dim: 64}
	engine := service.NewEngine(provider, sessions, service.DefaultEngineConfig(), logger)

	blob := storage.NewMirror(storage.NewS3Blob(s3Client, s3Key), storage.NewFileBlob(storeFile))
	indexer := service.NewIndexer(processor, provider, blob, engine, service.IndexerConfig{
		DataDir: dataDir,
		Compute: embedding.DefaultComputeOptions(),
	}, logger)

	srv := httptest.NewServer(server.NewRouter(server.RouterConfig{
		QueryHandler: handlers.NewQueryHandler(engine),
		Logger:       logger,
	}))

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		MinIOC:     minioC,
		S3Client:   s3Client,
		DataDir:    dataDir,
		StoreFile:  storeFile,
		Provider:   provider,
		Engine:     engine,
		Indexer:    indexer,
		ServerURL:  srv.URL,
		HTTPClient: srv.Client(),
		closeSrv:   srv.Close,
	}
}

// Cleanup releases all test resources
func (e *E2ETestEnv) Cleanup() {
	e.closeSrv()
	if err := e.MinIOC.Terminate(e.Ctx); err != nil {
		e.T.Logf("failed to terminate minio: %v", err)
	}
}

// WriteDocument places a source document in the data directory. The
// extractor used by the environment reads it as plain text.
func (e *E2ETestEnv) WriteDocument(name, text string) {
	path := filepath.Join(e.DataDir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		e.T.Fatalf("failed to write %s: %v", name, err)
	}
}

// APIResponse is a raw HTTP exchange result
type APIResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the response body into v
func (r *APIResponse) Decode(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// Get sends a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, "")
}

// Post sends a JSON POST request, with an optional session header
func (e *E2ETestEnv) Post(path string, body interface{}, sessionID string) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body, sessionID)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, sessionID string) (*APIResponse, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.ServerURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set(handlers.SessionHeader, sessionID)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &APIResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// plainTextExtractor treats every source file as UTF-8 text. Files whose name
// contains "broken" fail, like an unreadable PDF.
type plainTextExtractor struct{}

func (plainTextExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	if strings.Contains(filepath.Base(path), "broken") {
		return "", errors.New("malformed xref table")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// hashProvider embeds text as a bag of hashed words and answers with a
// counter, recording every prompt it receives.
type hashProvider struct {
	dim int

	mu      sync.Mutex
	embeds  int
	prompts []string
}

func (p *hashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:?!()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%uint32(p.dim)]++
	}

	p.mu.Lock()
	p.embeds++
	p.mu.Unlock()
	return vec, nil
}

func (p *hashProvider) Generate(ctx context.Context, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	return fmt.Sprintf("answer %d", len(p.prompts)), nil
}

func (p *hashProvider) EmbedCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.embeds
}

func (p *hashProvider) LastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return ""
	}
	return p.prompts[len(p.prompts)-1]
}
