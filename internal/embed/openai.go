package embed

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	openAIMaxBatch     = 2048 // OpenAI supports up to 2048 inputs per request
	openAIDefaultModel = "text-embedding-3-small"
)

// OpenAI implements Provider using the OpenAI embeddings API. It also works
// with any OpenAI-compatible endpoint via baseURL.
type OpenAI struct {
	client *openai.Client
	model  string
}

var _ Provider = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI-compatible provider. model defaults to
// text-embedding-3-small; baseURL may be empty for api.openai.com.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	if model == "" {
		model = openAIDefaultModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, model: model}
}

// Model returns the embedding model identifier.
func (o *OpenAI) Model() string { return o.model }

// Embed returns the embedding for a single text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns embeddings for multiple texts. Batches larger than the
// API limit are split into multiple calls transparently.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	result := make([][]float32, len(texts))
	for i := 0; i < len(texts); i += openAIMaxBatch {
		end := min(i+openAIMaxBatch, len(texts))
		vecs, err := o.callAPI(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("%w: batch [%d:%d]: %v", ErrProvider, i, end, err)
		}
		copy(result[i:], vecs)
	}
	return result, nil
}

func (o *OpenAI) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model:          o.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= int64(len(texts)) {
			return nil, fmt.Errorf("unexpected embedding index %d for batch size %d", idx, len(texts))
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		vecs[idx] = vec
	}

	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}
	return vecs, nil
}
