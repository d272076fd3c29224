package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	DefaultModel      = "amazon.titan-embed-text-v2:0"
	DefaultDimensions = 1024
)

// InvokeModelAPI is the part of the Bedrock runtime client the provider uses.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock embeds text with an Amazon Titan text embedding model.
type Bedrock struct {
	client     InvokeModelAPI
	model      string
	dimensions int
	normalize  bool
}

func NewBedrock(client InvokeModelAPI, model string, dimensions int) *Bedrock {
	if model == "" {
		model = DefaultModel
	}
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Bedrock{client: client, model: model, dimensions: dimensions, normalize: true}
}

// NewBedrockFromEnv resolves AWS credentials the standard way (env, shared
// config, instance role) for region.
func NewBedrockFromEnv(ctx context.Context, region, model string, dimensions int) (*Bedrock, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewBedrock(bedrockruntime.NewFromConfig(cfg), model, dimensions), nil
}

type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize"`
}

type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

func (b *Bedrock) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	body, err := json.Marshal(titanRequest{InputText: text, Dimensions: b.dimensions, Normalize: b.normalize})
	if err != nil {
		return nil, err
	}
	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke %s: %w", b.model, err)
	}
	var resp titanResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("bedrock decode: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("bedrock returned an empty embedding")
	}
	return resp.Embedding, nil
}
