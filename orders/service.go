package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	llmtools "github.com/BaSui01/agentswarm/llm/tools"
	"go.uber.org/zap"
)

// Tool names served by Service.
const (
	ToolOrderStatus      = "get_order_status"
	ToolTrackingInfo     = "get_tracking_info"
	ToolOrderItems       = "get_order_items"
	ToolReturnEligible   = "check_return_eligibility"
	ToolShippingAddress  = "get_shipping_address"
	ToolFullOrderDetails = "get_full_order_details"
	ToolOrdersByEmail    = "get_orders_by_email"
)

// Sanitizer scrubs tool output before it reaches the model.
// *guardrails.GuardRails satisfies it.
type Sanitizer interface {
	SanitizeOutput(text string) string
}

type statusView struct {
	OrderID        string `json:"order_id"`
	OrderStatus    string `json:"order_status"`
	LastUpdateNote string `json:"last_update_note"`
	EstDelivery    string `json:"est_delivery"`
}

type trackingView struct {
	OrderID        string `json:"order_id"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
	Status         string `json:"status"`
	EstDelivery    string `json:"est_delivery"`
}

type itemsView struct {
	OrderID     string          `json:"order_id"`
	Items       json.RawMessage `json:"items"`
	TotalAmount string          `json:"total_amount"`
	Currency    string          `json:"currency"`
	OrderDate   string          `json:"order_date"`
}

type returnView struct {
	OrderID      string          `json:"order_id"`
	OrderStatus  string          `json:"order_status"`
	IsReturnable bool            `json:"is_returnable"`
	Message      string          `json:"message"`
	Items        json.RawMessage `json:"items"`
}

type shippingView struct {
	OrderID         string `json:"order_id"`
	ShippingAddress string `json:"shipping_address"`
	Carrier         string `json:"carrier"`
	TrackingNumber  string `json:"tracking_number"`
}

type fullView struct {
	OrderID         string          `json:"order_id"`
	CustomerEmail   string          `json:"customer_email"`
	OrderDate       string          `json:"order_date"`
	OrderStatus     string          `json:"order_status"`
	Items           json.RawMessage `json:"items"`
	TotalAmount     string          `json:"total_amount"`
	Currency        string          `json:"currency"`
	TrackingNumber  string          `json:"tracking_number"`
	Carrier         string          `json:"carrier"`
	EstDelivery     string          `json:"est_delivery"`
	ShippingAddress string          `json:"shipping_address"`
	IsReturnable    bool            `json:"is_returnable"`
	LastUpdateNote  string          `json:"last_update_note"`
}

type orderSummary struct {
	OrderID     string `json:"order_id"`
	OrderDate   string `json:"order_date"`
	OrderStatus string `json:"order_status"`
	TotalAmount string `json:"total_amount"`
	Currency    string `json:"currency"`
}

type emailView struct {
	CustomerEmail string         `json:"customer_email"`
	OrderCount    int            `json:"order_count"`
	Orders        []orderSummary `json:"orders"`
}

type orderTool struct {
	name        string
	description string
	view        func(o *Order) (any, error)
}

var orderTools = []orderTool{
	{ToolOrderStatus, "Get the status of an order by order ID", func(o *Order) (any, error) {
		return statusView{o.ID, o.Status, o.LastUpdateNote, o.EstDelivery}, nil
	}},
	{ToolTrackingInfo, "Get tracking information for an order", func(o *Order) (any, error) {
		return trackingView{o.ID, o.TrackingNumber, o.Carrier, o.Status, o.EstDelivery}, nil
	}},
	{ToolOrderItems, "Get items and pricing for an order", func(o *Order) (any, error) {
		items, err := o.rawItems()
		if err != nil {
			return nil, err
		}
		return itemsView{o.ID, items, o.TotalAmount, o.Currency, o.OrderDate}, nil
	}},
	{ToolReturnEligible, "Check if an order is eligible for return", func(o *Order) (any, error) {
		items, err := o.rawItems()
		if err != nil {
			return nil, err
		}
		msg := "This order cannot be returned"
		if o.IsReturnable {
			msg = "This order can be returned"
		}
		return returnView{o.ID, o.Status, o.IsReturnable, msg, items}, nil
	}},
	{ToolShippingAddress, "Get shipping address for an order", func(o *Order) (any, error) {
		return shippingView{o.ID, o.ShippingAddress, o.Carrier, o.TrackingNumber}, nil
	}},
	{ToolFullOrderDetails, "Get complete order information", func(o *Order) (any, error) {
		items, err := o.rawItems()
		if err != nil {
			return nil, err
		}
		return fullView{
			OrderID:         o.ID,
			CustomerEmail:   o.CustomerEmail,
			OrderDate:       o.OrderDate,
			OrderStatus:     o.Status,
			Items:           items,
			TotalAmount:     o.TotalAmount,
			Currency:        o.Currency,
			TrackingNumber:  o.TrackingNumber,
			Carrier:         o.Carrier,
			EstDelivery:     o.EstDelivery,
			ShippingAddress: o.ShippingAddress,
			IsReturnable:    o.IsReturnable,
			LastUpdateNote:  o.LastUpdateNote,
		}, nil
	}},
}

const ordersByEmailDescription = "List all orders placed with a customer email address"

// ToolInfo names and describes one order tool. ByEmail tools take an
// "email" argument, the rest take "order_id".
type ToolInfo struct {
	Name        string
	Description string
	ByEmail     bool
}

// Catalog lists every order tool in a stable order.
func Catalog() []ToolInfo {
	out := make([]ToolInfo, 0, len(orderTools)+1)
	for _, t := range orderTools {
		out = append(out, ToolInfo{Name: t.name, Description: t.description})
	}
	return append(out, ToolInfo{Name: ToolOrdersByEmail, Description: ordersByEmailDescription, ByEmail: true})
}

// OrderToolNames lists every tool name, including get_orders_by_email.
func OrderToolNames() []string {
	catalog := Catalog()
	names := make([]string, len(catalog))
	for i, t := range catalog {
		names[i] = t.Name
	}
	return names
}

// Service answers order questions on top of a Store.
type Service struct {
	store     Store
	sanitizer Sanitizer
	logger    *zap.Logger
}

type ServiceOption func(*Service)

func WithSanitizer(s Sanitizer) ServiceOption {
	return func(svc *Service) { svc.sanitizer = s }
}

func WithLogger(logger *zap.Logger) ServiceOption {
	return func(svc *Service) {
		if logger != nil {
			svc.logger = logger
		}
	}
}

func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "order_service"))
	return s
}

func (s *Service) Store() Store { return s.store }

// Lookup returns the record a tool reports for id, without rendering it.
// Unknown ids return an error wrapping ErrNotFound.
func (s *Service) Lookup(ctx context.Context, tool, id string) (any, error) {
	var view func(*Order) (any, error)
	for _, t := range orderTools {
		if t.name == tool {
			view = t.view
			break
		}
	}
	if view == nil {
		return nil, fmt.Errorf("unknown order tool %q", tool)
	}
	o, err := s.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	return view(o)
}

// Answer renders the tool's view of id as indented JSON. Unknown ids yield
// NotFoundMessage rather than an error.
func (s *Service) Answer(ctx context.Context, tool, id string) (string, error) {
	v, err := s.Lookup(ctx, tool, id)
	if errors.Is(err, ErrNotFound) {
		s.logger.Debug("order not found", zap.String("tool", tool), zap.String("order_id", id))
		return NotFoundMessage(id), nil
	}
	if err != nil {
		return "", err
	}
	return s.Render(v)
}

func (s *Service) OrderStatus(ctx context.Context, id string) (string, error) {
	return s.Answer(ctx, ToolOrderStatus, id)
}

func (s *Service) TrackingInfo(ctx context.Context, id string) (string, error) {
	return s.Answer(ctx, ToolTrackingInfo, id)
}

func (s *Service) OrderItems(ctx context.Context, id string) (string, error) {
	return s.Answer(ctx, ToolOrderItems, id)
}

func (s *Service) ReturnEligibility(ctx context.Context, id string) (string, error) {
	return s.Answer(ctx, ToolReturnEligible, id)
}

func (s *Service) ShippingAddress(ctx context.Context, id string) (string, error) {
	return s.Answer(ctx, ToolShippingAddress, id)
}

func (s *Service) FullOrderDetails(ctx context.Context, id string) (string, error) {
	return s.Answer(ctx, ToolFullOrderDetails, id)
}

// LookupByEmail summarizes every order placed with email.
func (s *Service) LookupByEmail(ctx context.Context, email string) (any, error) {
	email = strings.TrimSpace(email)
	found, err := s.store.ByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	v := emailView{CustomerEmail: email, OrderCount: len(found), Orders: make([]orderSummary, 0, len(found))}
	for _, o := range found {
		v.Orders = append(v.Orders, orderSummary{o.ID, o.OrderDate, o.Status, o.TotalAmount, o.Currency})
	}
	return v, nil
}

func (s *Service) OrdersByEmail(ctx context.Context, email string) (string, error) {
	v, err := s.LookupByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return s.Render(v)
}

// Render encodes v as indented JSON and applies the sanitizer.
func (s *Service) Render(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode order response: %w", err)
	}
	out := string(b)
	if s.sanitizer != nil {
		out = s.sanitizer.SanitizeOutput(out)
	}
	return out, nil
}

type orderIDArgs struct {
	OrderID string `json:"order_id" jsonschema:"description=The order ID to look up"`
}

type emailArgs struct {
	Email string `json:"email" jsonschema:"description=The customer email address"`
}

// Tools returns the seven order tools bound to s.
func (s *Service) Tools() []llmtools.Tool {
	out := make([]llmtools.Tool, 0, len(orderTools)+1)
	for _, t := range orderTools {
		name := t.name
		out = append(out, llmtools.MustFunctionTool(name, t.description,
			func(ctx context.Context, a orderIDArgs) (any, error) {
				return s.Answer(ctx, name, a.OrderID)
			}))
	}
	out = append(out, llmtools.MustFunctionTool(ToolOrdersByEmail, ordersByEmailDescription,
		func(ctx context.Context, a emailArgs) (any, error) {
			return s.OrdersByEmail(ctx, a.Email)
		}))
	return out
}

// Register adds every order tool to registry.
func (s *Service) Register(registry llmtools.ToolRegistry) error {
	return llmtools.RegisterAll(registry, s.Tools()...)
}

// Select returns the named tools in the given order.
func (s *Service) Select(names ...string) ([]llmtools.Tool, error) {
	all := s.Tools()
	byName := make(map[string]llmtools.Tool, len(all))
	for _, t := range all {
		byName[t.Name()] = t
	}
	out := make([]llmtools.Tool, 0, len(names))
	for _, n := range names {
		t, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown order tool %q", n)
		}
		out = append(out, t)
	}
	return out, nil
}
