package backend

import (
	"context"

	"studyrag/internal/domain"
)

var (
	_ domain.Embedder  = (*Embedder)(nil)
	_ domain.Generator = (*Generator)(nil)
)

// Embedder defers building the real embedder until the first embed call.
// Construction failures surface as domain.ErrIndexUnavailable.
type Embedder struct {
	name   string
	handle *Lazy[domain.Embedder]
}

func NewEmbedder(name string, init func(ctx context.Context) (domain.Embedder, error)) *Embedder {
	return &Embedder{name: name, handle: NewLazy(init)}
}

func (e *Embedder) get(ctx context.Context) (domain.Embedder, error) {
	emb, err := e.handle.Get(ctx)
	if err != nil {
		return nil, domain.OpError(domain.ErrIndexUnavailable, "embedder_init", e.name, err)
	}
	return emb, nil
}

// Name reports the configured name until the embedder has been built.
func (e *Embedder) Name() string {
	if e.handle.Loaded() {
		emb, _ := e.handle.Get(context.Background())
		return emb.Name()
	}
	return e.name
}

// Dimension is 0 until the embedder has been built.
func (e *Embedder) Dimension() int {
	if !e.handle.Loaded() {
		return 0
	}
	emb, _ := e.handle.Get(context.Background())
	return emb.Dimension()
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	emb, err := e.get(ctx)
	if err != nil {
		return nil, err
	}
	return emb.EmbedDocuments(ctx, texts)
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	emb, err := e.get(ctx)
	if err != nil {
		return nil, err
	}
	return emb.EmbedQuery(ctx, text)
}

// Generator defers building the real generator until the first completion.
// Construction failures surface as domain.ErrGenerationProvider.
type Generator struct {
	handle *Lazy[domain.Generator]
}

func NewGenerator(init func(ctx context.Context) (domain.Generator, error)) *Generator {
	return &Generator{handle: NewLazy(init)}
}

func (g *Generator) get(ctx context.Context) (domain.Generator, error) {
	gen, err := g.handle.Get(ctx)
	if err != nil {
		return nil, domain.OpError(domain.ErrGenerationProvider, "generator_init", "", err)
	}
	return gen, nil
}

func (g *Generator) CompleteChat(ctx context.Context, messages []domain.Message) (string, error) {
	gen, err := g.get(ctx)
	if err != nil {
		return "", err
	}
	return gen.CompleteChat(ctx, messages)
}

func (g *Generator) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	gen, err := g.get(ctx)
	if err != nil {
		return "", err
	}
	return gen.CompleteJSON(ctx, prompt)
}
