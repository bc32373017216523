package venue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Pagination markers of the trade history feed
const (
	InitialCursor  = "MA=="
	TerminalCursor = "LTE="
)

// numString decodes a JSON number or numeric string
type numString float64

func (n *numString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", s, err)
		}
		*n = numString(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = numString(v)
	return nil
}

// unixTime decodes unix seconds given as number or string
type unixTime time.Time

func (u *unixTime) UnmarshalJSON(data []byte) error {
	var n numString
	if err := n.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid unix time: %w", err)
	}
	if n == 0 {
		*u = unixTime(time.Time{})
		return nil
	}
	*u = unixTime(time.Unix(int64(n), 0).UTC())
	return nil
}

type tradeResponse struct {
	ID        string    `json:"id"`
	AssetID   string    `json:"asset_id"`
	Market    string    `json:"market"`
	Outcome   string    `json:"outcome"`
	Side      string    `json:"side"`
	Size      numString `json:"size"`
	Price     numString `json:"price"`
	MatchTime unixTime  `json:"match_time"`
}

type tradesPageResponse struct {
	Data       []tradeResponse `json:"data"`
	NextCursor string          `json:"next_cursor"`
}

type marketTokenResponse struct {
	TokenID string    `json:"token_id"`
	Price   numString `json:"price"`
	Outcome string    `json:"outcome"`
}

type marketResponse struct {
	ConditionID string                `json:"condition_id"`
	Tokens      []marketTokenResponse `json:"tokens"`
}
