package visual

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credent-works/certverify-cli/internal/model"
	"github.com/credent-works/certverify-cli/pkg/clip"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("fake image bytes"), 0o644))
	return path
}

// embedServer returns a clip client backed by a test server that answers
// every embed request with the given vector.
func embedServer(t *testing.T, vec []float64) clip.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	}))
	t.Cleanup(srv.Close)
	return clip.NewClient(srv.URL)
}

func TestVerify_MissingReferenceSkips(t *testing.T) {
	dir := t.TempDir()
	cand := writeFile(t, dir, "crop.png")

	v := NewVerifier(context.Background(), nil)
	res := v.Verify(context.Background(), filepath.Join(dir, "missing.png"), cand)

	assert.False(t, res.Verified)
	assert.Equal(t, model.LogoMethodSkipped, res.Method)
	assert.NotEmpty(t, res.Reason)
}

func TestVerify_MissingCandidateSkips(t *testing.T) {
	dir := t.TempDir()
	ref := writeFile(t, dir, "ref.png")

	v := NewVerifier(context.Background(), nil)
	res := v.Verify(context.Background(), ref, filepath.Join(dir, "missing.png"))

	assert.False(t, res.Verified)
	assert.Equal(t, model.LogoMethodSkipped, res.Method)
	assert.Equal(t, "extracted logo not found", res.Reason)
}

func TestVerify_BothMissingNeverPanics(t *testing.T) {
	v := NewVerifier(context.Background(), nil)
	res := v.Verify(context.Background(), "/no/such/ref.png", "/no/such/crop.png")

	assert.False(t, res.Verified)
	assert.Equal(t, model.LogoMethodSkipped, res.Method)
	assert.NotEmpty(t, res.Reason)
}

func TestVerify_EmptyPathsSkip(t *testing.T) {
	v := NewVerifier(context.Background(), nil)
	res := v.Verify(context.Background(), "", "")
	assert.Equal(t, model.LogoMethodSkipped, res.Method)
}

func TestVerify_CLIPMatch(t *testing.T) {
	dir := t.TempDir()
	ref := writeFile(t, dir, "ref.png")
	cand := writeFile(t, dir, "crop.png")

	// Identical embeddings: cosine similarity 1.0, well above threshold.
	v := NewVerifier(context.Background(), embedServer(t, []float64{0.5, 0.5, 0.5}))
	require.True(t, v.ClipAvailable())

	res := v.Verify(context.Background(), ref, cand)
	assert.True(t, res.Verified)
	assert.Equal(t, model.LogoMethodCLIP, res.Method)
	require.NotNil(t, res.Score)
	assert.InDelta(t, 1.0, *res.Score, 1e-6)
}

func TestNewVerifier_UnreachableBackendDegrades(t *testing.T) {
	c := clip.NewClient("http://127.0.0.1:1")
	v := NewVerifier(context.Background(), c)
	assert.False(t, v.ClipAvailable())
}
