package embedding

import (
	"context"
	"crypto/sha256"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/Septimus4/AgendaFlow/pkg/ai"
)

// fakeClient returns deterministic pseudo-vectors derived from the input and
// records every call, so cache behavior is observable.
type fakeClient struct {
	calls  int
	inputs [][]string
	fail   bool
}

func (f *fakeClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeClient) GenerateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	f.calls++
	f.inputs = append(f.inputs, inputs)
	if f.fail {
		return nil, errors.New("backend down")
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		sum := sha256.Sum256([]byte(in))
		vec := make([]float32, 8)
		for j := range vec {
			vec[j] = float32(sum[j]) + 1
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeClient) ResetMetrics()               {}
func (f *fakeClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func newTestGenerator(t *testing.T, client ai.Client, model, cacheDir string) *Generator {
	t.Helper()
	g, err := NewGenerator(NewGeneratorParams{
		Client:   client,
		Model:    model,
		CacheDir: cacheDir,
	})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g
}

func TestEmbedTexts(t *testing.T) {
	t.Run("vectors are normalized", func(t *testing.T) {
		g := newTestGenerator(t, &fakeClient{}, "test-model", "")
		vecs, err := g.EmbedTexts(context.Background(), []string{"jazz concert"})
		if err != nil {
			t.Fatalf("EmbedTexts: %v", err)
		}
		var sum float64
		for _, v := range vecs[0] {
			sum += float64(v) * float64(v)
		}
		if math.Abs(sum-1.0) > 1e-5 {
			t.Errorf("vector not L2-normalized: squared norm %f", sum)
		}
	})

	t.Run("empty text rejected", func(t *testing.T) {
		g := newTestGenerator(t, &fakeClient{}, "test-model", "")
		if _, err := g.EmbedTexts(context.Background(), []string{"ok", "   "}); err == nil {
			t.Error("expected error for empty text")
		}
	})

	t.Run("backend error propagates", func(t *testing.T) {
		g := newTestGenerator(t, &fakeClient{fail: true}, "test-model", "")
		if _, err := g.EmbedTexts(context.Background(), []string{"jazz"}); err == nil {
			t.Error("expected backend error")
		}
	})

	t.Run("cache hit equals fresh vector", func(t *testing.T) {
		client := &fakeClient{}
		g := newTestGenerator(t, client, "test-model", t.TempDir())

		first, err := g.EmbedTexts(context.Background(), []string{"jazz concert"})
		if err != nil {
			t.Fatalf("first embed: %v", err)
		}
		second, err := g.EmbedTexts(context.Background(), []string{"jazz concert"})
		if err != nil {
			t.Fatalf("second embed: %v", err)
		}
		if client.calls != 1 {
			t.Errorf("expected 1 backend call, got %d", client.calls)
		}
		if len(first[0]) != len(second[0]) {
			t.Fatalf("vector lengths differ")
		}
		for i := range first[0] {
			if first[0][i] != second[0][i] {
				t.Fatalf("cached vector differs at %d: %f vs %f", i, first[0][i], second[0][i])
			}
		}
	})
}

func TestEmbedQuery(t *testing.T) {
	t.Run("empty query rejected", func(t *testing.T) {
		g := newTestGenerator(t, &fakeClient{}, "test-model", "")
		if _, err := g.EmbedQuery(context.Background(), " "); err == nil {
			t.Error("expected error for empty query")
		}
	})

	t.Run("e5 model gets asymmetric prefixes", func(t *testing.T) {
		client := &fakeClient{}
		g := newTestGenerator(t, client, "intfloat/multilingual-e5-base", "")

		if _, err := g.EmbedQuery(context.Background(), "jazz"); err != nil {
			t.Fatalf("EmbedQuery: %v", err)
		}
		if _, err := g.EmbedTexts(context.Background(), []string{"jazz"}); err != nil {
			t.Fatalf("EmbedTexts: %v", err)
		}

		if got := client.inputs[0][0]; got != "query: jazz" {
			t.Errorf("query input = %q, want %q", got, "query: jazz")
		}
		if got := client.inputs[1][0]; got != "passage: jazz" {
			t.Errorf("passage input = %q, want %q", got, "passage: jazz")
		}
	})

	t.Run("non-e5 model has no prefixes", func(t *testing.T) {
		client := &fakeClient{}
		g := newTestGenerator(t, client, "text-embedding-3-small", "")
		if _, err := g.EmbedQuery(context.Background(), "jazz"); err != nil {
			t.Fatalf("EmbedQuery: %v", err)
		}
		if got := client.inputs[0][0]; got != "jazz" {
			t.Errorf("input = %q, want %q", got, "jazz")
		}
	})
}

func TestPrepareTruncation(t *testing.T) {
	g := newTestGenerator(t, &fakeClient{}, "test-model", "")
	g.maxTokens = 4

	long := strings.Repeat("event ", 100)
	first := g.prepare(long, "passage: ")
	second := g.prepare(long, "passage: ")

	if first != second {
		t.Error("truncation is not deterministic")
	}
	if tokens := g.enc.Encode(first, nil, nil); len(tokens) > 4 {
		t.Errorf("expected at most 4 tokens, got %d", len(tokens))
	}
}
