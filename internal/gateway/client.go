package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mkelleher/buywrite/internal/models"
)

// APIError represents an API error with status code and response body
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// Client talks to the brokerage's REST API.
type Client struct {
	client    *http.Client
	apiKey    string
	baseURL   string
	accountID string
	loc       *time.Location
	now       func() time.Time
	sandbox   bool
	timeout   time.Duration // configurable timeout for HTTP requests
}

// NewClient creates a new gateway client with default settings.
func NewClient(apiKey, accountID string, sandbox bool) *Client {
	return NewClientWithBaseURL(apiKey, accountID, sandbox, "")
}

// NewClientWithBaseURL creates a new gateway client with a custom baseURL,
// mainly for tests and self-hosted proxies.
func NewClientWithBaseURL(apiKey, accountID string, sandbox bool, baseURL string) *Client {
	if baseURL == "" {
		if sandbox {
			baseURL = "https://sandbox.tradier.com/v1"
		} else {
			baseURL = "https://api.tradier.com/v1"
		}
	}
	// Normalize once
	baseURL = strings.TrimRight(baseURL, "/")

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("ET", -5*60*60)
	}

	defaultTimeout := 10 * time.Second
	return &Client{
		apiKey:    apiKey,
		baseURL:   baseURL,
		accountID: accountID,
		client:    &http.Client{Timeout: defaultTimeout},
		loc:       loc,
		now:       time.Now,
		sandbox:   sandbox,
		timeout:   defaultTimeout,
	}
}

// WithHTTPClient allows overriding the HTTP client (tests, custom transport).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.client = hc
	}
	return c
}

// WithTimeout sets the HTTP client timeout duration.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	if c.client != nil {
		c.client.Timeout = timeout
	}
	return c
}

// WithLocation sets the venue time zone used to bound "today" when filtering
// executed orders.
func (c *Client) WithLocation(loc *time.Location) *Client {
	if loc != nil {
		c.loc = loc
	}
	return c
}

// WithClock overrides the clock that decides the venue's current date.
func (c *Client) WithClock(now func() time.Time) *Client {
	if now != nil {
		c.now = now
	}
	return c
}

// ============ API Response Structures ============

// Handle single-object vs array responses
type singleOrArray[T any] []T

func (s *singleOrArray[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '[' {
		return json.Unmarshal(b, (*[]T)(s))
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*s = append(*s, one)
	return nil
}

type balancesResponse struct {
	Balances struct {
		TotalEquity float64 `json:"total_equity"`
	} `json:"balances"`
}

type positionsResponse struct {
	Positions positionsWrapper `json:"positions"`
}

// positionsWrapper handles the case where positions can be "null" string or an object
type positionsWrapper struct {
	Position singleOrArray[positionItem] `json:"position"`
}

func (pw *positionsWrapper) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)

	// Handle both bare null and quoted "null" cases
	if bytes.Equal(trimmed, []byte(`null`)) || bytes.Equal(trimmed, []byte(`"null"`)) {
		*pw = positionsWrapper{}
		return nil
	}

	type normalWrapper positionsWrapper
	return json.Unmarshal(b, (*normalWrapper)(pw))
}

type positionItem struct {
	Symbol    string  `json:"symbol"`
	CostBasis float64 `json:"cost_basis"`
	Quantity  float64 `json:"quantity"`
}

type quotesResponse struct {
	Quotes struct {
		Quote singleOrArray[quoteItem] `json:"quote"`
	} `json:"quotes"`
}

type quoteItem struct {
	Symbol string  `json:"symbol"`
	Last   float64 `json:"last"`
}

type ordersResponse struct {
	Orders struct {
		Order singleOrArray[orderItem] `json:"order"`
	} `json:"orders"`
}

// orderItem doubles as the combo leg shape; the API nests legs under "leg"
// with the same fields as top-level orders.
type orderItem struct {
	ID              int                      `json:"id"`
	Class           string                   `json:"class"` // equity | option | combo
	Symbol          string                   `json:"symbol"`
	OptionSymbol    string                   `json:"option_symbol,omitempty"`
	Side            string                   `json:"side"` // buy, sell, buy_to_cover, sell_short, buy_to_open, ...
	Status          string                   `json:"status"`
	Ratio           int                      `json:"ratio,omitempty"`
	ExecQuantity    float64                  `json:"exec_quantity"`
	AvgFillPrice    float64                  `json:"avg_fill_price"`
	Commission      float64                  `json:"commission"`
	RealizedPNL     float64                  `json:"realized_pnl"`
	TransactionDate string                   `json:"transaction_date"` // RFC3339, UTC
	Leg             singleOrArray[orderItem] `json:"leg,omitempty"`
}

type optionChainResponse struct {
	Options struct {
		Option singleOrArray[chainOption] `json:"option"`
	} `json:"options"`
}

type chainOption struct {
	Greeks     *chainGreeks `json:"greeks,omitempty"`
	Symbol     string       `json:"symbol"`
	OptionType string       `json:"option_type"`
	Strike     float64      `json:"strike"`
}

type chainGreeks struct {
	UpdatedAt string  `json:"updated_at"`
	Delta     float64 `json:"delta"`
	Gamma     float64 `json:"gamma"`
	Theta     float64 `json:"theta"`
	Vega      float64 `json:"vega"`
}

// ============ Gateway methods ============

// GetAccountValue implements Gateway.
func (c *Client) GetAccountValue(ctx context.Context) (float64, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/balances", c.baseURL, c.accountID)
	var resp balancesResponse
	if err := c.makeRequestCtx(ctx, "GET", endpoint, nil, &resp); err != nil {
		return 0, fmt.Errorf("fetching balances: %w", err)
	}
	return resp.Balances.TotalEquity, nil
}

// GetPortfolio implements Gateway. Positions are fetched first, then market
// prices for every held symbol in one quotes call.
func (c *Client) GetPortfolio(ctx context.Context) ([]models.PortfolioPosition, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/positions", c.baseURL, c.accountID)
	var resp positionsResponse
	if err := c.makeRequestCtx(ctx, "GET", endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching positions: %w", err)
	}
	items := resp.Positions.Position
	if len(items) == 0 {
		return nil, nil
	}

	symbols := make([]string, 0, len(items))
	for _, item := range items {
		symbols = append(symbols, item.Symbol)
	}
	quotes, err := c.getQuotes(ctx, symbols)
	if err != nil {
		return nil, err
	}

	portfolio := make([]models.PortfolioPosition, 0, len(items))
	for _, item := range items {
		contract := contractFromSymbol(item.Symbol)
		marketPrice := quotes[item.Symbol]

		multiplier := 1.0
		if contract.SecType == models.SecTypeOption {
			multiplier = float64(contract.Multiplier)
		}
		marketValue := item.Quantity * marketPrice * multiplier

		avgCost := 0.0
		if item.Quantity != 0 {
			avgCost = item.CostBasis / (item.Quantity * multiplier)
		}

		portfolio = append(portfolio, models.PortfolioPosition{
			Contract:      contract,
			Position:      item.Quantity,
			MarketPrice:   marketPrice,
			MarketValue:   marketValue,
			AverageCost:   avgCost,
			UnrealizedPNL: marketValue - item.CostBasis,
		})
	}
	return portfolio, nil
}

// GetFillsForToday implements Gateway. Only orders executed on the venue's
// current date count; the API also returns recent history.
func (c *Client) GetFillsForToday(ctx context.Context) ([]models.Trade, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/orders?includeTags=true", c.baseURL, c.accountID)
	var resp ordersResponse
	if err := c.makeRequestCtx(ctx, "GET", endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching orders: %w", err)
	}

	today := c.now().In(c.loc).Format("2006-01-02")
	var trades []models.Trade
	for _, order := range resp.Orders.Order {
		if order.Status != "filled" {
			continue
		}
		trade, ok := c.tradeFromOrder(order, today)
		if !ok {
			continue
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// GetOptionDelta implements Gateway. Sentinels per the Gateway contract:
// DeltaInvalidContract when expiration/strike do not resolve to a call,
// DeltaNoModel when the chain entry carries no greeks.
func (c *Client) GetOptionDelta(ctx context.Context, symbol, expiration string, strike float64) (float64, error) {
	exp, err := time.Parse("20060102", expiration)
	if err != nil {
		return models.DeltaInvalidContract, nil
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("expiration", exp.Format("2006-01-02"))
	params.Set("greeks", "true")
	endpoint := c.baseURL + "/markets/options/chains?" + params.Encode()

	var resp optionChainResponse
	if err := c.makeRequestCtx(ctx, "GET", endpoint, nil, &resp); err != nil {
		return 0, fmt.Errorf("fetching option chain: %w", err)
	}

	for _, opt := range resp.Options.Option {
		if opt.OptionType != "call" || opt.Strike != strike {
			continue
		}
		if opt.Greeks == nil {
			return models.DeltaNoModel, nil
		}
		return opt.Greeks.Delta, nil
	}
	return models.DeltaInvalidContract, nil
}

// ============ mapping helpers ============

func (c *Client) tradeFromOrder(order orderItem, today string) (models.Trade, bool) {
	switch order.Class {
	case "combo":
		parent := models.Contract{Symbol: order.Symbol, SecType: models.SecTypeCombo}
		trade := models.Trade{Contract: parent}
		for _, leg := range order.Leg {
			fill, ok := c.fillFromOrder(leg, today)
			if !ok {
				return models.Trade{}, false
			}
			ratio := leg.Ratio
			if ratio == 0 {
				ratio = 1
			}
			trade.Legs = append(trade.Legs, models.ComboLeg{
				Ratio:  ratio,
				Action: legActionFromSide(leg.Side),
			})
			trade.Fills = append(trade.Fills, fill)
		}
		if len(trade.Fills) == 0 {
			return models.Trade{}, false
		}
		return trade, true
	case "equity", "option":
		fill, ok := c.fillFromOrder(order, today)
		if !ok {
			return models.Trade{}, false
		}
		return models.Trade{Contract: fill.Contract, Fills: []models.Fill{fill}}, true
	default:
		return models.Trade{}, false
	}
}

func (c *Client) fillFromOrder(order orderItem, today string) (models.Fill, bool) {
	execTime, err := time.Parse(time.RFC3339, order.TransactionDate)
	if err != nil {
		return models.Fill{}, false
	}
	if execTime.In(c.loc).Format("2006-01-02") != today {
		return models.Fill{}, false
	}

	symbol := order.Symbol
	if order.OptionSymbol != "" {
		symbol = order.OptionSymbol
	}

	return models.Fill{
		Contract:    contractFromSymbol(symbol),
		Side:        fillSideFromOrderSide(order.Side),
		Shares:      order.ExecQuantity,
		Price:       order.AvgFillPrice,
		Commission:  order.Commission,
		RealizedPNL: order.RealizedPNL,
		Time:        execTime.UTC(),
	}, true
}

// contractFromSymbol builds a stock or option contract from a position or
// order symbol. OSI symbols decode into option contracts keyed by their
// underlying; everything else is a stock.
func contractFromSymbol(symbol string) models.Contract {
	if osi, ok := ParseOSISymbol(symbol); ok {
		return models.Contract{
			Symbol:     osi.Underlying,
			SecType:    models.SecTypeOption,
			Strike:     osi.Strike,
			Expiration: osi.Expiration,
			Multiplier: 100,
		}
	}
	return models.Contract{Symbol: symbol, SecType: models.SecTypeStock}
}

func fillSideFromOrderSide(side string) models.FillSide {
	if strings.HasPrefix(strings.ToLower(side), "sell") {
		return models.SideSld
	}
	return models.SideBot
}

func legActionFromSide(side string) models.LegAction {
	if strings.HasPrefix(strings.ToLower(side), "sell") {
		return models.LegSell
	}
	return models.LegBuy
}

func (c *Client) getQuotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	endpoint := c.baseURL + "/markets/quotes?" + params.Encode()

	var resp quotesResponse
	if err := c.makeRequestCtx(ctx, "GET", endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching quotes: %w", err)
	}

	quotes := make(map[string]float64, len(resp.Quotes.Quote))
	for _, q := range resp.Quotes.Quote {
		quotes[q.Symbol] = q.Last
	}
	return quotes, nil
}

func (c *Client) makeRequestCtx(ctx context.Context, method, endpoint string,
	params url.Values, response interface{}) error {
	var req *http.Request
	var err error

	if method == "POST" && params != nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(params.Encode()))
		if err != nil {
			return err
		}
		req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, http.NoBody)
		if err != nil {
			return err
		}
	}

	req.Header.Add("Authorization", "Bearer "+c.apiKey)
	req.Header.Add("Accept", "application/json")
	req.Header.Add("User-Agent", "buywrite-recorder/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			// Log error but don't fail the operation
			log.Printf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated &&
		resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNoContent {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) // 64KB cap to avoid huge payloads
		if err != nil {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> failed to read error body", method, endpoint)}
		}
		ct := resp.Header.Get("Content-Type")
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s (%s) -> %s (retry-after: %s)", method, endpoint, ct, string(body), ra)}
		}
		return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s (%s) -> %s", method, endpoint, ct, string(body))}
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	return dec.Decode(response)
}
