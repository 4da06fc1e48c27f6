package orders

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/BaSui01/agentswarm/llm"
	llmtools "github.com/BaSui01/agentswarm/llm/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type sanitizerFunc func(string) string

func (f sanitizerFunc) SanitizeOutput(s string) string { return f(s) }

type failingStore struct{}

func (failingStore) Get(context.Context, string) (*Order, error)       { return nil, errors.New("disk on fire") }
func (failingStore) ByEmail(context.Context, string) ([]Order, error) { return nil, errors.New("disk on fire") }
func (failingStore) All(context.Context) ([]Order, error)             { return nil, errors.New("disk on fire") }

func TestService_Answers(t *testing.T) {
	svc := NewService(NewCSVStore(testCSV))
	ctx := context.Background()

	tests := []struct {
		name string
		call func() (string, error)
		want string
	}{
		{
			name: "status",
			call: func() (string, error) { return svc.OrderStatus(ctx, "1001") },
			want: `{"order_id":"1001","order_status":"Shipped","last_update_note":"Left the regional hub this morning","est_delivery":"2025-09-06"}`,
		},
		{
			name: "tracking",
			call: func() (string, error) { return svc.TrackingInfo(ctx, "1001") },
			want: `{"order_id":"1001","tracking_number":"1Z999AA10123456784","carrier":"UPS","status":"Shipped","est_delivery":"2025-09-06"}`,
		},
		{
			name: "items",
			call: func() (string, error) { return svc.OrderItems(ctx, "1002") },
			want: `{"order_id":"1002","items":[{"sku":"MS-22","name":"Wireless Mouse","qty":2,"price":24.5}],"total_amount":"49.00","currency":"USD","order_date":"2025-09-03"}`,
		},
		{
			name: "returnable",
			call: func() (string, error) { return svc.ReturnEligibility(ctx, "1001") },
			want: `{"order_id":"1001","order_status":"Shipped","is_returnable":true,"message":"This order can be returned","items":[{"sku":"KB-01","name":"Mechanical Keyboard","qty":1,"price":89.99}]}`,
		},
		{
			name: "not returnable",
			call: func() (string, error) { return svc.ReturnEligibility(ctx, "1004") },
			want: `{"order_id":"1004","order_status":"Cancelled","is_returnable":false,"message":"This order cannot be returned","items":[{"sku":"HP-10","name":"Headphones","qty":1,"price":59.95}]}`,
		},
		{
			name: "shipping",
			call: func() (string, error) { return svc.ShippingAddress(ctx, "1004") },
			want: `{"order_id":"1004","shipping_address":"3 Rue de la Paix, 75002 Paris","carrier":"","tracking_number":""}`,
		},
		{
			name: "by email",
			call: func() (string, error) { return svc.OrdersByEmail(ctx, "liam.smith@example.com") },
			want: `{"customer_email":"liam.smith@example.com","order_count":1,"orders":[{"order_id":"1002","order_date":"2025-09-03","order_status":"Processing","total_amount":"49.00","currency":"USD"}]}`,
		},
		{
			name: "by email none",
			call: func() (string, error) { return svc.OrdersByEmail(ctx, "nobody@example.com") },
			want: `{"customer_email":"nobody@example.com","order_count":0,"orders":[]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.call()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
			assert.Contains(t, got, "\n  ", "responses are indented")
		})
	}
}

func TestService_FullOrderDetails(t *testing.T) {
	svc := NewService(NewCSVStore(testCSV))
	got, err := svc.FullOrderDetails(context.Background(), "1003")
	require.NoError(t, err)

	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &v))
	assert.Len(t, v, 13)
	assert.Equal(t, "Sophia.Johnson@example.com", v["customer_email"])
	assert.Len(t, v["items"], 2)
	assert.Equal(t, false, v["is_returnable"])
	assert.NotContains(t, v, "items_json")
}

func TestService_NotFound(t *testing.T) {
	svc := NewService(NewCSVStore(testCSV))
	for _, name := range OrderToolNames()[:6] {
		got, err := svc.Answer(context.Background(), name, "9999")
		require.NoError(t, err, name)
		assert.Equal(t, "Order 9999 not found", got, name)
	}

	_, err := svc.Lookup(context.Background(), ToolOrderStatus, "9999")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Answer(context.Background(), "get_weather", "1001")
	assert.EqualError(t, err, `unknown order tool "get_weather"`)
}

type badItemsStore struct{}

func (badItemsStore) Get(_ context.Context, id string) (*Order, error) {
	return &Order{ID: id, Status: "Shipped", ItemsJSON: `[{"sku":`, TotalAmount: "129.90"}, nil
}
func (badItemsStore) ByEmail(context.Context, string) ([]Order, error) { return nil, nil }
func (badItemsStore) All(context.Context) ([]Order, error)             { return nil, nil }

func TestService_InvalidItemsJSON(t *testing.T) {
	svc := NewService(badItemsStore{})
	ctx := context.Background()

	tests := []struct {
		tool    string
		wantErr bool
	}{
		{tool: ToolOrderStatus},
		{tool: ToolTrackingInfo},
		{tool: ToolShippingAddress},
		{tool: ToolOrderItems, wantErr: true},
		{tool: ToolReturnEligible, wantErr: true},
		{tool: ToolFullOrderDetails, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			_, err := svc.Answer(ctx, tt.tool, "7001")
			if tt.wantErr {
				assert.EqualError(t, err, "order 7001: items_json is not valid JSON")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestService_StoreErrorsPropagate(t *testing.T) {
	svc := NewService(failingStore{})
	_, err := svc.OrderStatus(context.Background(), "1001")
	assert.EqualError(t, err, "disk on fire")
	_, err = svc.OrdersByEmail(context.Background(), "a@b.c")
	assert.EqualError(t, err, "disk on fire")
}

func TestService_Sanitizer(t *testing.T) {
	svc := NewService(NewCSVStore(testCSV), WithSanitizer(sanitizerFunc(func(s string) string {
		return strings.ReplaceAll(s, "liam.smith@example.com", "[REDACTED]")
	})))
	got, err := svc.FullOrderDetails(context.Background(), "1002")
	require.NoError(t, err)
	assert.Contains(t, got, `"customer_email": "[REDACTED]"`)
	assert.NotContains(t, got, "liam.smith")
}

func TestService_ToolsThroughRegistry(t *testing.T) {
	svc := NewService(NewCSVStore(testCSV))
	registry := llmtools.NewDefaultRegistry(nil)
	require.NoError(t, svc.Register(registry))
	assert.ElementsMatch(t, OrderToolNames(), registry.Names())
	assert.Len(t, svc.Tools(), 7)

	executor := llmtools.NewDefaultExecutor(registry, nil)
	res := executor.ExecuteOne(context.Background(), llm.ToolCall{
		ID: "call_1", Name: ToolOrderStatus, Arguments: json.RawMessage(`{"order_id":"1002"}`),
	})
	require.Empty(t, res.Error)
	want, err := svc.OrderStatus(context.Background(), "1002")
	require.NoError(t, err)
	assert.Equal(t, want, res.Text())

	res = executor.ExecuteOne(context.Background(), llm.ToolCall{
		ID: "call_2", Name: ToolTrackingInfo, Arguments: json.RawMessage(`{"order_id":"7777"}`),
	})
	require.Empty(t, res.Error)
	assert.Equal(t, "Order 7777 not found", res.Text())

	res = executor.ExecuteOne(context.Background(), llm.ToolCall{
		ID: "call_3", Name: ToolOrdersByEmail, Arguments: json.RawMessage(`{}`),
	})
	assert.Contains(t, res.Error, "invalid arguments")
}

func TestService_Select(t *testing.T) {
	svc := NewService(NewCSVStore(testCSV))
	tools, err := svc.Select(ToolTrackingInfo, ToolOrderStatus)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, ToolTrackingInfo, tools[0].Name())
	assert.Equal(t, ToolOrderStatus, tools[1].Name())

	_, err = svc.Select("drop_orders")
	assert.ErrorContains(t, err, `unknown order tool "drop_orders"`)
}

func TestService_UnknownIDsNeverError(t *testing.T) {
	svc := NewService(NewCSVStore(testCSV, WithCache()))
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.StringMatching(`[0-9]{5,8}`).Draw(t, "id")
		tool := rapid.SampledFrom(OrderToolNames()[:6]).Draw(t, "tool")
		got, err := svc.Answer(context.Background(), tool, id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != NotFoundMessage(id) {
			t.Fatalf("got %q", got)
		}
	})
}
