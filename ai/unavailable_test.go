package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestUnavailableEmbedder(t *testing.T) {
	cause := errors.New("credentials not found")
	e := UnavailableEmbedder(cause, 768)

	_, err := e.EmbedText(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.ErrorIs(t, err, cause)

	_, err = e.EmbedTexts(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Equal(t, 768, e.Dimensions())
}

func TestUnavailableGenerator(t *testing.T) {
	cause := errors.New("model not found")
	g := UnavailableGenerator(cause)

	_, err := g.Generate(context.Background(), "prompt", GenerateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
	assert.ErrorIs(t, err, cause)
}

func TestCompositeProvider(t *testing.T) {
	e := UnavailableEmbedder(errors.New("x"), 8)
	g := UnavailableGenerator(errors.New("y"))

	var closed []string
	first := closerFunc(func() error { closed = append(closed, "first"); return nil })
	second := closerFunc(func() error { closed = append(closed, "second"); return errors.New("boom") })

	p := NewCompositeProvider(e, g, first, second)
	assert.Same(t, e, p.Embedder())
	assert.Same(t, g, p.Generator())

	err := p.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []string{"first", "second"}, closed)
}
