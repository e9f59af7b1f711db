package nlu

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockExtractor extracts hints with a Bedrock Converse model.
type BedrockExtractor struct {
	api     bedrockConverseAPI
	modelID string
}

func NewBedrockExtractor(api bedrockConverseAPI, modelID string) *BedrockExtractor {
	if api == nil {
		panic("nlu: bedrock converse client cannot be nil")
	}
	return &BedrockExtractor{api: api, modelID: modelID}
}

func (e *BedrockExtractor) Extract(ctx context.Context, turn Turn) (Hint, error) {
	if strings.TrimSpace(e.modelID) == "" {
		return Hint{}, errors.New("nlu: bedrock model id is required")
	}
	if strings.TrimSpace(turn.Message) == "" {
		return Hint{}, errors.New("nlu: empty message")
	}

	out, err := e.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(e.modelID),
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: systemPrompt},
		},
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: buildUserPrompt(turn)},
				},
			},
		},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(256),
			Temperature: aws.Float32(0),
		},
	})
	if err != nil {
		return Hint{}, err
	}

	text, err := converseOutputText(out)
	if err != nil {
		return Hint{}, err
	}
	return parseHint(text)
}

func converseOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("nlu: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("nlu: bedrock response did not include a message output")
	}

	var builder strings.Builder
	for _, block := range msgOut.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			builder.WriteString(textBlock.Value)
		}
	}
	text := builder.String()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("nlu: bedrock response contained no text content blocks")
	}
	return text, nil
}
