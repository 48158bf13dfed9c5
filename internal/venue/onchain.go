package venue

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/aineonlabs/arbd/internal/domain"
)

// getAmountsOut is the only router method the quoter needs.
const routerABIJSON = `[{"name":"getAmountsOut","type":"function","stateMutability":"view","inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"outputs":[{"name":"amounts","type":"uint256[]"}]}]`

const defaultTokenDecimals = 18

// OnchainClient quotes a pair by calling a UniswapV2-style router's
// getAmountsOut on an Ethereum JSON-RPC endpoint. Pool liquidity and fee come
// from venue configuration; the chain supplies the price.
type OnchainClient struct {
	name         string
	client       *ethclient.Client
	routerAddr   common.Address
	routerABI    abi.ABI
	tokens       map[string]common.Address
	decimals     map[string]int
	feeRate      float64
	reliability  float64
	liquidityUSD float64
}

// OnchainConfig holds construction parameters for an OnchainClient.
type OnchainConfig struct {
	Name         string
	RPCURL       string
	RouterAddr   string
	Tokens       map[string]string // symbol -> contract address
	Decimals     map[string]int    // symbol -> decimals, defaults to 18
	FeeRate      float64
	Reliability  float64
	LiquidityUSD float64
}

// NewOnchainClient dials the RPC endpoint and prepares the router ABI.
func NewOnchainClient(ctx context.Context, cfg OnchainConfig) (*OnchainClient, error) {
	parsed, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("venue %s: parse router abi: %w", cfg.Name, err)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("venue %s: dial rpc: %w", cfg.Name, err)
	}

	tokens := make(map[string]common.Address, len(cfg.Tokens))
	for sym, addr := range cfg.Tokens {
		if !common.IsHexAddress(addr) {
			client.Close()
			return nil, fmt.Errorf("venue %s: invalid token address %q for %s", cfg.Name, addr, sym)
		}
		tokens[strings.ToUpper(sym)] = common.HexToAddress(addr)
	}

	return &OnchainClient{
		name:         cfg.Name,
		client:       client,
		routerAddr:   common.HexToAddress(cfg.RouterAddr),
		routerABI:    parsed,
		tokens:       tokens,
		decimals:     cfg.Decimals,
		feeRate:      cfg.FeeRate,
		reliability:  cfg.Reliability,
		liquidityUSD: cfg.LiquidityUSD,
	}, nil
}

// Name returns the configured venue name.
func (c *OnchainClient) Name() string { return c.name }

// Close releases the underlying RPC connection.
func (c *OnchainClient) Close() {
	c.client.Close()
}

func (c *OnchainClient) tokenDecimals(symbol string) int {
	if d, ok := c.decimals[symbol]; ok && d > 0 {
		return d
	}
	return defaultTokenDecimals
}

// Quote prices one whole unit of pair.TokenIn through the router.
func (c *OnchainClient) Quote(ctx context.Context, pair domain.Pair) (domain.Quote, error) {
	addrIn, ok := c.tokens[pair.TokenIn]
	if !ok {
		return domain.Quote{}, fmt.Errorf("venue %s: unknown token %s", c.name, pair.TokenIn)
	}
	addrOut, ok := c.tokens[pair.TokenOut]
	if !ok {
		return domain.Quote{}, fmt.Errorf("venue %s: unknown token %s", c.name, pair.TokenOut)
	}

	decIn := c.tokenDecimals(pair.TokenIn)
	decOut := c.tokenDecimals(pair.TokenOut)
	amountIn := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decIn)), nil)

	data, err := c.routerABI.Pack("getAmountsOut", amountIn, []common.Address{addrIn, addrOut})
	if err != nil {
		return domain.Quote{}, fmt.Errorf("venue %s: pack call: %w", c.name, err)
	}

	raw, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.routerAddr,
		Data: data,
	}, nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("venue %s: quote %s: %w", c.name, pair, err)
	}

	outputs, err := c.routerABI.Unpack("getAmountsOut", raw)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("venue %s: unpack amounts: %w", c.name, err)
	}
	amounts, ok := outputs[0].([]*big.Int)
	if !ok || len(amounts) < 2 || amounts[len(amounts)-1].Sign() <= 0 {
		return domain.Quote{}, fmt.Errorf("venue %s: %w for %s", c.name, domain.ErrNoQuote, pair)
	}

	out := new(big.Float).SetInt(amounts[len(amounts)-1])
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decOut)), nil))
	price, _ := new(big.Float).Quo(out, scale).Float64()
	if price <= 0 {
		return domain.Quote{}, fmt.Errorf("venue %s: %w for %s", c.name, domain.ErrNoQuote, pair)
	}

	return domain.Quote{
		Venue:        c.name,
		Pair:         pair,
		Price:        price,
		LiquidityUSD: c.liquidityUSD,
		FeeRate:      c.feeRate,
		Reliability:  c.reliability,
		ObservedAt:   time.Now().UTC(),
	}, nil
}

// Compile-time interface check.
var _ domain.VenueClient = (*OnchainClient)(nil)
