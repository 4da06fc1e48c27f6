package orders

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

var csvColumns = []string{
	"order_id", "customer_email", "order_date", "order_status", "items_json",
	"total_amount", "currency", "tracking_number", "carrier", "est_delivery",
	"shipping_address", "is_returnable", "last_update_note",
}

// ParseCSV reads orders from r. Columns are matched by header name, so
// their order in the file does not matter; every known column is required.
// Values are kept as written. Short rows leave the missing fields empty and
// rows without an order_id are skipped, so one bad row never hides the rest.
func ParseCSV(r io.Reader) ([]Order, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("orders csv: missing header")
		}
		return nil, fmt.Errorf("orders csv: read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	var missing []string
	for _, c := range csvColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("orders csv: missing columns: %s", strings.Join(missing, ", "))
	}

	var out []Order
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("orders csv: %w", err)
		}
		field := func(name string) string {
			if i := idx[name]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		o := Order{
			ID:              field("order_id"),
			CustomerEmail:   field("customer_email"),
			OrderDate:       field("order_date"),
			Status:          field("order_status"),
			ItemsJSON:       field("items_json"),
			TotalAmount:     field("total_amount"),
			Currency:        field("currency"),
			TrackingNumber:  field("tracking_number"),
			Carrier:         field("carrier"),
			EstDelivery:     field("est_delivery"),
			ShippingAddress: field("shipping_address"),
			IsReturnable:    strings.EqualFold(field("is_returnable"), "true"),
			LastUpdateNote:  field("last_update_note"),
		}
		if o.ID == "" {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// LoadCSV parses the file at path.
func LoadCSV(path string) ([]Order, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open orders csv: %w", err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// CSVStore serves orders from a CSV file. By default the file is read on
// every call so edits show up immediately; WithCache reads it once and
// keeps the rows until Reload.
type CSVStore struct {
	path   string
	cached bool

	mu     sync.RWMutex
	orders []Order
	loaded bool
}

type CSVOption func(*CSVStore)

func WithCache() CSVOption {
	return func(s *CSVStore) { s.cached = true }
}

func NewCSVStore(path string, opts ...CSVOption) *CSVStore {
	s := &CSVStore{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CSVStore) Path() string { return s.path }

// Reload re-reads the file into the cache.
func (s *CSVStore) Reload() error {
	orders, err := LoadCSV(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.orders = orders
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *CSVStore) rows() ([]Order, error) {
	if !s.cached {
		return LoadCSV(s.path)
	}
	s.mu.RLock()
	if s.loaded {
		orders := s.orders
		s.mu.RUnlock()
		return orders, nil
	}
	s.mu.RUnlock()
	if err := s.Reload(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orders, nil
}

func (s *CSVStore) Get(ctx context.Context, id string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.rows()
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].ID == id {
			o := rows[i]
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (s *CSVStore) ByEmail(ctx context.Context, email string) ([]Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.rows()
	if err != nil {
		return nil, err
	}
	var out []Order
	for _, o := range rows {
		if strings.EqualFold(o.CustomerEmail, email) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *CSVStore) All(ctx context.Context) ([]Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.rows()
	if err != nil {
		return nil, err
	}
	return append([]Order(nil), rows...), nil
}
