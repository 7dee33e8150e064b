//go:build e2e

package e2e

import (
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/petrorag/petrorag/internal/api/handlers"
	"github.com/petrorag/petrorag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	drillingText = "Drilling mud cools the bit. It also carries cuttings to the surface. " +
		"Mud weight controls formation pressure."
	reservoirText = "Porosity is the fraction of rock volume that is pore space. " +
		"Permeability measures how easily fluids flow through rock. " +
		"Both properties control reservoir quality."
)

func seedCorpus(env *E2ETestEnv) {
	env.WriteDocument("drilling.pdf", drillingText)
	env.WriteDocument("reservoir.pdf", reservoirText)
	env.WriteDocument("broken.pdf", "unreadable")
}

func TestE2E_StatelessQuery(t *testing.T) {
	env := SetupE2EEnv(t, false)
	defer env.Cleanup()
	seedCorpus(env)

	t.Run("not ready before prepare", func(t *testing.T) {
		health, err := env.Get("/health")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, health.StatusCode)
		assert.JSONEq(t, `{"status":"ok","ready":false,"chunks":0}`, string(health.Body))

		resp, err := env.Post("/api/query", map[string]string{"query": "What is porosity?"}, "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body struct {
			Code string `json:"code"`
		}
		require.NoError(t, resp.Decode(&body))
		assert.Equal(t, domain.ErrCodeEngineNotReady, body.Code)
	})

	t.Run("prepare skips the broken document", func(t *testing.T) {
		result, err := env.Indexer.Prepare(env.Ctx, false)
		require.NoError(t, err)
		assert.True(t, result.Recomputed)
		// 3 drilling sentences and 3 reservoir sentences in windows of 2
		assert.Equal(t, 4, result.Chunks)

		health, err := env.Get("/health")
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"ok","ready":true,"chunks":4}`, string(health.Body))
	})

	t.Run("query answers from context", func(t *testing.T) {
		resp, err := env.Post("/api/query", map[string]string{"query": "What is porosity?"}, "")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		require.NoError(t, resp.Decode(&body))
		assert.Equal(t, map[string]string{"answer": "answer 1"}, body)
		assert.Empty(t, resp.Header.Get(handlers.SessionHeader))

		prompt := env.Provider.LastPrompt()
		assert.Contains(t, prompt, "Document 1:\n")
		assert.Contains(t, prompt, "Porosity is the fraction of rock volume that is pore space.")
		assert.True(t, strings.HasSuffix(prompt, "\n\nQuestion: What is porosity?\nAnswer:"))
		assert.NotContains(t, prompt, "Chat History:")
	})

	t.Run("missing query", func(t *testing.T) {
		resp, err := env.Post("/api/query", map[string]string{}, "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.JSONEq(t, `{"error":"Query parameter missing"}`, string(resp.Body))
	})

	t.Run("clear memory is a no-op", func(t *testing.T) {
		resp, err := env.Post("/api/clear-memory", nil, "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"success":true,"message":"Memory functionality is disabled"}`, string(resp.Body))
	})
}

func TestE2E_StoreLifecycle(t *testing.T) {
	env := SetupE2EEnv(t, false)
	defer env.Cleanup()
	seedCorpus(env)

	first, err := env.Indexer.Prepare(env.Ctx, false)
	require.NoError(t, err)
	require.True(t, first.Recomputed)
	embedded := env.Provider.EmbedCalls()
	assert.Equal(t, first.Chunks, embedded)

	t.Run("persisted to S3 and disk", func(t *testing.T) {
		remote, err := env.S3Client.GetObject(env.Ctx, s3Key)
		require.NoError(t, err)
		local, err := os.ReadFile(env.StoreFile)
		require.NoError(t, err)
		assert.Equal(t, remote, local)
	})

	t.Run("unchanged corpus reuses the store", func(t *testing.T) {
		result, err := env.Indexer.Prepare(env.Ctx, false)
		require.NoError(t, err)
		assert.False(t, result.Recomputed)
		assert.Equal(t, embedded, env.Provider.EmbedCalls())
	})

	t.Run("S3 copy survives losing the local file", func(t *testing.T) {
		require.NoError(t, os.Remove(env.StoreFile))

		result, err := env.Indexer.Prepare(env.Ctx, false)
		require.NoError(t, err)
		assert.False(t, result.Recomputed)
	})

	t.Run("new document triggers a rebuild", func(t *testing.T) {
		env.WriteDocument("completion.pdf", "Perforations connect the wellbore to the reservoir.")

		result, err := env.Indexer.Prepare(env.Ctx, false)
		require.NoError(t, err)
		assert.True(t, result.Recomputed)
		assert.Equal(t, 5, result.Chunks)
		assert.Equal(t, 5, env.Engine.Stats().Chunks)
	})

	t.Run("corrupt store is rebuilt", func(t *testing.T) {
		require.NoError(t, env.S3Client.PutObject(env.Ctx, s3Key, []byte("garbage")))

		result, err := env.Indexer.Prepare(env.Ctx, false)
		require.NoError(t, err)
		assert.True(t, result.Recomputed)
	})
}

func TestE2E_ConversationMemory(t *testing.T) {
	env := SetupE2EEnv(t, true)
	defer env.Cleanup()
	seedCorpus(env)

	_, err := env.Indexer.Prepare(env.Ctx, false)
	require.NoError(t, err)

	first, err := env.Post("/api/query", map[string]string{"query": "What is porosity?"}, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, first.StatusCode)

	sessionID := first.Header.Get(handlers.SessionHeader)
	require.NotEmpty(t, sessionID)

	var firstBody map[string]string
	require.NoError(t, first.Decode(&firstBody))
	assert.Equal(t, sessionID, firstBody["session_id"])
	assert.NotContains(t, env.Provider.LastPrompt(), "Chat History:")

	t.Run("follow-up sees history", func(t *testing.T) {
		resp, err := env.Post("/api/query", map[string]string{"query": "And permeability?"}, sessionID)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		prompt := env.Provider.LastPrompt()
		assert.True(t, strings.HasPrefix(prompt, "Chat History:\nUser: What is porosity?\nSystem: answer 1\n"))
		assert.Contains(t, prompt, "Question: And permeability?")
	})

	t.Run("other sessions are isolated", func(t *testing.T) {
		resp, err := env.Post("/api/query", map[string]string{"query": "What is mud weight?", "session_id": "someone-else"}, "")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotContains(t, env.Provider.LastPrompt(), "Chat History:")
	})

	t.Run("clear memory forgets history", func(t *testing.T) {
		resp, err := env.Post("/api/clear-memory", nil, sessionID)
		require.NoError(t, err)
		assert.JSONEq(t, `{"success":true,"message":"Memory cleared"}`, string(resp.Body))

		resp, err = env.Post("/api/query", map[string]string{"query": "What is porosity?"}, sessionID)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotContains(t, env.Provider.LastPrompt(), "Chat History:")
	})
}
