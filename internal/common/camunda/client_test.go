package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"search-workers/internal/common/config"
	"search-workers/internal/common/errors"
)

func testClient(maxRetries int) *Client {
	return &Client{config: &ClientConfig{
		ConnectionTimeout: time.Second,
		RequestTimeout:    time.Second,
		RetryConfig: &RetryConfig{
			MaxRetries: maxRetries,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		},
	}}
}

func TestExecuteWithRetry(t *testing.T) {
	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		out, err := testClient(3).ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
			calls++
			if calls < 3 {
				return nil, stderrors.New("rpc error: code = Unavailable")
			}
			return "ok", nil
		}, "op")

		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up on permanent errors", func(t *testing.T) {
		calls := 0
		_, err := testClient(3).ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
			calls++
			return nil, stderrors.New("process definition not found")
		}, "op")

		assert.Equal(t, 1, calls)
		assert.True(t, errors.HasCode(err, errors.ErrCodeResourceNotFound))
	})

	t.Run("exhausts retries", func(t *testing.T) {
		calls := 0
		_, err := testClient(2).ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
			calls++
			return nil, stderrors.New("context deadline exceeded")
		}, "op")

		assert.Equal(t, 3, calls)
		assert.True(t, errors.HasCode(err, errors.ErrCodeTimeout))
	})
}

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		code errors.ErrorCode
	}{
		{"connection refused", errors.ErrCodeExternalService},
		{"deadline exceeded", errors.ErrCodeTimeout},
		{"resource not found", errors.ErrCodeResourceNotFound},
		{"instance already exists", errors.ErrCodeBusinessRule},
		{"permission denied", errors.ErrCodeAuthentication},
		{"something odd", errors.ErrCodeExternalService},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := mapZeebeError(stderrors.New(tt.msg), "op", 0)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestConfigFrom(t *testing.T) {
	cc := ConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500"})
	assert.Equal(t, "zeebe:26500", cc.GatewayAddress)
	assert.Equal(t, 30*time.Second, cc.RequestTimeout)
	assert.True(t, cc.UsePlaintextConnection)
}

func TestDecodeVariables(t *testing.T) {
	vars, err := decodeVariables(`{"answer":"Paris","mode":"direct"}`)
	require.NoError(t, err)
	assert.Equal(t, "Paris", vars["answer"])

	vars, err = decodeVariables("")
	require.NoError(t, err)
	assert.Empty(t, vars)

	_, err = decodeVariables("{")
	assert.Error(t, err)
}

func TestInstrument(t *testing.T) {
	called := false
	h := instrument("route-query", HandlerFunc(func(client worker.JobClient, job entities.Job) {
		called = true
	}))
	h(nil, entities.Job{})
	assert.True(t, called)
}
