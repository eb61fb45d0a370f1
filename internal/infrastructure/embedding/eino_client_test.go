package embedding

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "novel-rag-engine/pkg/errors"
)

// poisonEmbedder 输入中含 "坏" 的整批失败
type poisonEmbedder struct {
	calls int
}

func (p *poisonEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	p.calls++
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if strings.Contains(t, "坏") {
			return nil, assert.AnError
		}
		out[i] = []float64{float64(len([]rune(t))), 1}
	}
	return out, nil
}

func TestEmbedManyIsolatesFailures(t *testing.T) {
	inner := &poisonEmbedder{}
	e := NewEmbedder(inner, 2)

	vecs, errs := e.EmbedMany(context.Background(), []string{"萧炎", "坏片段", "药老说", "纳兰嫣然"})
	require.Len(t, vecs, 4)
	require.Len(t, errs, 4)

	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], apperrors.ErrProviderTransient)
	assert.Nil(t, vecs[1])
	assert.Equal(t, []float32{3, 1}, vecs[2])
	assert.Equal(t, []float32{4, 1}, vecs[3])
	// 首批失败后逐条重试两次，第二批一次
	assert.Equal(t, 4, inner.calls)
}

func TestEmbedSingle(t *testing.T) {
	e := NewEmbedder(&poisonEmbedder{}, 0)
	v, err := e.Embed(context.Background(), "斗气")
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 1}, v)

	_, err = e.Embed(context.Background(), "坏")
	assert.True(t, apperrors.IsTransient(err))
}
