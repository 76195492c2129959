package memory_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/dubctl/internal/translate"
	translatememory "github.com/MrWong99/dubctl/internal/translate/memory"
	"github.com/MrWong99/dubctl/internal/translate/mock"
	"github.com/MrWong99/dubctl/pkg/provider/embeddings"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if DUBCTL_TEST_POSTGRES_DSN is not set — this package's tests exercise
// a real pgvector instance and are not run by default.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("DUBCTL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DUBCTL_TEST_POSTGRES_DSN not set — skipping translation memory integration test")
	}
	return dsn
}

type fixedEmbedder struct {
	vec []float32
}

func (f fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) { return f.vec, nil }
func (f fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}
func (f fixedEmbedder) Dimensions() int { return len(f.vec) }
func (f fixedEmbedder) ModelID() string { return "fixed-test-embedder" }

var _ embeddings.Provider = fixedEmbedder{}

func TestTranslator_CachesIdenticalSourceText(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, translatememory.Schema); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pool.Exec(ctx, "DROP TABLE IF EXISTS translation_memory") })

	backend := &mock.Translator{Responses: map[string]string{"utt_0001": "Hello there."}}
	embedder := fixedEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	tr := translatememory.New(backend, pool, embedder, 0.01)

	req := translate.Request{UttID: "utt_0001", SourceText: "你好。", SourceLang: "zh", TargetLang: "en"}
	first, err := tr.Translate(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if first != "Hello there." {
		t.Fatalf("got %q, want Hello there.", first)
	}
	if len(backend.Calls) != 1 {
		t.Fatalf("expected backend called once, got %d", len(backend.Calls))
	}

	// Same embedding vector (identical source text) should hit the cache
	// and never reach the backend a second time.
	req2 := translate.Request{UttID: "utt_0002", SourceText: "你好。", SourceLang: "zh", TargetLang: "en"}
	second, err := tr.Translate(ctx, req2)
	if err != nil {
		t.Fatal(err)
	}
	if second != "Hello there." {
		t.Fatalf("got %q, want cached Hello there.", second)
	}
	if len(backend.Calls) != 1 {
		t.Errorf("expected backend NOT called again on a cache hit, got %d calls", len(backend.Calls))
	}
}
