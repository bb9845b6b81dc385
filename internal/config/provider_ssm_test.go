package config

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// mockSSMClient is a configurable mock for the SSM GetParameters API.
type mockSSMClient struct {
	values    map[string]string
	err       error
	callCount int
	batches   [][]string
}

func (m *mockSSMClient) GetParameters(_ context.Context, params *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	m.callCount++
	m.batches = append(m.batches, params.Names)
	if m.err != nil {
		return nil, m.err
	}

	output := &ssm.GetParametersOutput{}
	for _, name := range params.Names {
		if v, ok := m.values[name]; ok {
			output.Parameters = append(output.Parameters, ssmtypes.Parameter{
				Name:  aws.String(name),
				Value: aws.String(v),
			})
		} else {
			output.InvalidParameters = append(output.InvalidParameters, name)
		}
	}
	return output, nil
}

func TestSSMProviderGetParametersBatch(t *testing.T) {
	client := &mockSSMClient{
		values: map[string]string{
			"/prod/stashbox/database/url": "postgres://resolved",
		},
	}
	provider := newSSMProviderWithClient("us-east-1", client)

	result, err := provider.GetParametersBatch(context.Background(), []string{"/prod/stashbox/database/url"})
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}

	if result["/prod/stashbox/database/url"] != "postgres://resolved" {
		t.Errorf("resolved value = %q, want %q", result["/prod/stashbox/database/url"], "postgres://resolved")
	}
	if client.callCount != 1 {
		t.Errorf("callCount = %d, want 1", client.callCount)
	}
}

func TestSSMProviderEmptyKeys(t *testing.T) {
	client := &mockSSMClient{}
	provider := newSSMProviderWithClient("us-east-1", client)

	result, err := provider.GetParametersBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("result length = %d, want 0", len(result))
	}
	if client.callCount != 0 {
		t.Errorf("callCount = %d, want 0 (no API call for empty keys)", client.callCount)
	}
}

func TestSSMProviderBatching(t *testing.T) {
	// 23 keys should produce 3 batches: 10, 10, 3.
	values := make(map[string]string, 23)
	keys := make([]string, 0, 23)
	for i := 0; i < 23; i++ {
		k := fmt.Sprintf("/test/param%02d", i)
		keys = append(keys, k)
		values[k] = fmt.Sprintf("value%02d", i)
	}

	client := &mockSSMClient{values: values}
	provider := newSSMProviderWithClient("us-east-1", client)

	result, err := provider.GetParametersBatch(context.Background(), keys)
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}

	if len(result) != 23 {
		t.Errorf("result length = %d, want 23", len(result))
	}
	if client.callCount != 3 {
		t.Errorf("callCount = %d, want 3", client.callCount)
	}
	if len(client.batches[0]) != 10 || len(client.batches[1]) != 10 || len(client.batches[2]) != 3 {
		t.Errorf("batch sizes = %d/%d/%d, want 10/10/3",
			len(client.batches[0]), len(client.batches[1]), len(client.batches[2]))
	}
}

func TestSSMProviderInvalidParameter(t *testing.T) {
	client := &mockSSMClient{
		values: map[string]string{}, // nothing resolvable
	}
	provider := newSSMProviderWithClient("us-east-1", client)

	_, err := provider.GetParametersBatch(context.Background(), []string{"/missing/param"})
	if err == nil {
		t.Fatal("expected error for invalid parameter, got nil")
	}
}

func TestSSMProviderAPIError(t *testing.T) {
	client := &mockSSMClient{err: fmt.Errorf("throttled")}
	provider := newSSMProviderWithClient("us-east-1", client)

	_, err := provider.GetParametersBatch(context.Background(), []string{"/some/param"})
	if err == nil {
		t.Fatal("expected error when SSM API fails, got nil")
	}
}

func TestSSMProviderContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &mockSSMClient{values: map[string]string{"/a": "1"}}
	provider := newSSMProviderWithClient("us-east-1", client)

	_, err := provider.GetParametersBatch(ctx, []string{"/a"})
	if err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
	if client.callCount != 0 {
		t.Errorf("callCount = %d, want 0 (cancellation checked before batch)", client.callCount)
	}
}
