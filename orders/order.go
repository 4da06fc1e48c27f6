package orders

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when no order has the requested id.
var ErrNotFound = errors.New("order not found")

// Order is one row of the order book.
type Order struct {
	ID              string  `gorm:"column:order_id;primaryKey;size:32" json:"order_id"`
	CustomerEmail   string  `gorm:"column:customer_email;index;size:255" json:"customer_email"`
	OrderDate       string  `gorm:"column:order_date;size:32" json:"order_date"`
	Status          string  `gorm:"column:order_status;size:64" json:"order_status"`
	ItemsJSON       string  `gorm:"column:items_json;type:text" json:"items_json"`
	TotalAmount     string  `gorm:"column:total_amount;size:32" json:"total_amount"`
	Currency        string  `gorm:"column:currency;size:8" json:"currency"`
	TrackingNumber  string  `gorm:"column:tracking_number;size:64" json:"tracking_number"`
	Carrier         string  `gorm:"column:carrier;size:64" json:"carrier"`
	EstDelivery     string  `gorm:"column:est_delivery;size:32" json:"est_delivery"`
	ShippingAddress string  `gorm:"column:shipping_address;type:text" json:"shipping_address"`
	IsReturnable    bool    `gorm:"column:is_returnable" json:"is_returnable"`
	LastUpdateNote  string  `gorm:"column:last_update_note;type:text" json:"last_update_note"`
}

func (Order) TableName() string { return "orders" }

// Item is one line of an order.
type Item struct {
	SKU   string  `json:"sku,omitempty"`
	Name  string  `json:"name"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
}

// Items decodes ItemsJSON.
func (o *Order) Items() ([]Item, error) {
	if o.ItemsJSON == "" {
		return nil, nil
	}
	var items []Item
	if err := json.Unmarshal([]byte(o.ItemsJSON), &items); err != nil {
		return nil, fmt.Errorf("order %s: decode items: %w", o.ID, err)
	}
	return items, nil
}

// rawItems keeps items exactly as stored so unknown item fields survive.
// An order without items yields an empty list.
func (o *Order) rawItems() (json.RawMessage, error) {
	if o.ItemsJSON == "" {
		return json.RawMessage(`[]`), nil
	}
	if !json.Valid([]byte(o.ItemsJSON)) {
		return nil, fmt.Errorf("order %s: items_json is not valid JSON", o.ID)
	}
	return json.RawMessage(o.ItemsJSON), nil
}

// NotFoundMessage is the text agents receive for unknown ids.
func NotFoundMessage(id string) string {
	return fmt.Sprintf("Order %s not found", id)
}
