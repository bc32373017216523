package broker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// flexFloat accepts both JSON numbers and numeric strings; the broker
// encodes most decimal fields as strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid numeric string %q: %w", s, err)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

type clockResponse struct {
	IsOpen   bool   `json:"is_open"`
	NextOpen string `json:"next_open"`
}

type positionResponse struct {
	Symbol        string    `json:"symbol"`
	Qty           flexFloat `json:"qty"`
	CurrentPrice  flexFloat `json:"current_price"`
	AvgEntryPrice flexFloat `json:"avg_entry_price"`
	MarketValue   flexFloat `json:"market_value"`
	CostBasis     flexFloat `json:"cost_basis"`
}

type accountResponse struct {
	Cash flexFloat `json:"cash"`
}

type orderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
}

type orderResponse struct {
	ID     string    `json:"id"`
	Symbol string    `json:"symbol"`
	Qty    flexFloat `json:"qty"`
	Side   string    `json:"side"`
	Status string    `json:"status"`
}

type latestTradeResponse struct {
	Symbol string `json:"symbol"`
	Trade  struct {
		Price flexFloat `json:"p"`
	} `json:"trade"`
}
