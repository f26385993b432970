// Package data provides the executors that pull external data through the
// Fetcher collaborator, caching successful results.
package data

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/nova-hud/nova/pkg/cache"
	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes"
	"github.com/nova-hud/nova/pkg/protocol"
)

// Result lifetimes per fetch kind. Zero disables caching.
var ttls = map[protocol.FetchKind]time.Duration{
	protocol.FetchWebSearch: 10 * time.Minute,
	protocol.FetchRSS:       10 * time.Minute,
	protocol.FetchCoinbase:  time.Minute,
	protocol.FetchHTTP:      time.Minute,
}

const defaultMaxResults = 5

// Executor handles one data node type.
type Executor struct {
	nodeType models.NodeType
	fetcher  protocol.Fetcher
	cache    cache.Cache
}

func NewWebSearchExecutor(f protocol.Fetcher, c cache.Cache) *Executor {
	return &Executor{nodeType: models.NodeTypeWebSearch, fetcher: f, cache: c}
}

func NewHTTPRequestExecutor(f protocol.Fetcher, c cache.Cache) *Executor {
	return &Executor{nodeType: models.NodeTypeHTTPRequest, fetcher: f, cache: c}
}

func NewRSSFeedExecutor(f protocol.Fetcher, c cache.Cache) *Executor {
	return &Executor{nodeType: models.NodeTypeRSSFeed, fetcher: f, cache: c}
}

func NewCoinbaseExecutor(f protocol.Fetcher, c cache.Cache) *Executor {
	return &Executor{nodeType: models.NodeTypeCoinbase, fetcher: f, cache: c}
}

func (e *Executor) Type() models.NodeType { return e.nodeType }

func (e *Executor) Execute(ctx context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	if node == nil || node.Base().Type != e.nodeType {
		return nodes.WrongType(node, e.nodeType)
	}

	if e.fetcher == nil {
		return models.Failed("no data fetcher configured", nodes.CodeCollaborator)
	}

	req, ok := request(node, ec)
	if !ok {
		return models.Failed("node has nothing to fetch", nodes.CodeNoInput)
	}

	req.Scope = ec.Scope

	key, ttl := cacheKey(req)
	if cached, hit := e.lookup(ctx, key, ttl); hit {
		cached.Data = withFlag(cached.Data, "cached", true)

		return cached
	}

	out, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		ec.Logger.Warn("Fetch failed", "node_id", node.Base().ID, "node_type", e.nodeType, "error", err)

		return models.Failed(err.Error(), nodes.CodeCollaborator)
	}

	if out.OK {
		e.store(ctx, key, ttl, out, ec)
	}

	return out
}

func request(node models.Node, ec *execution.Context) (protocol.FetchRequest, bool) {
	switch n := node.(type) {
	case *models.WebSearchNode:
		query := strings.TrimSpace(ec.ResolveExpr(n.Query))
		maxResults := n.MaxResults
		if maxResults <= 0 {
			maxResults = defaultMaxResults
		}

		return protocol.FetchRequest{
			Kind:            protocol.FetchWebSearch,
			Query:           query,
			MaxResults:      maxResults,
			IncludePageText: n.FetchContent,
		}, query != ""
	case *models.HTTPRequestNode:
		method := strings.ToUpper(n.Method)
		if method == "" {
			method = http.MethodGet
		}

		headers := make(map[string]string, len(n.Headers))
		for k, v := range n.Headers {
			headers[k] = ec.ResolveExpr(v)
		}

		url := strings.TrimSpace(ec.ResolveExpr(n.URL))

		return protocol.FetchRequest{
			Kind:    protocol.FetchHTTP,
			URL:     url,
			Method:  method,
			Headers: headers,
			Body:    ec.ResolveExpr(n.Body),
		}, url != ""
	case *models.RSSFeedNode:
		url := strings.TrimSpace(ec.ResolveExpr(n.URL))

		return protocol.FetchRequest{Kind: protocol.FetchRSS, URL: url, MaxResults: n.MaxItems}, url != ""
	case *models.CoinbaseNode:
		quote := n.Quote
		if quote == "" {
			quote = "USD"
		}

		return protocol.FetchRequest{Kind: protocol.FetchCoinbase, Symbols: n.Assets, Quote: quote}, len(n.Assets) > 0
	}

	return protocol.FetchRequest{}, false
}

// cacheKey hashes the request. Only idempotent HTTP requests are cacheable.
func cacheKey(req protocol.FetchRequest) (string, time.Duration) {
	ttl := ttls[req.Kind]
	if req.Kind == protocol.FetchHTTP && req.Method != http.MethodGet {
		ttl = 0
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return "", 0
	}

	sum := sha256.Sum256(raw)

	return string(req.Kind) + ":" + hex.EncodeToString(sum[:]), ttl
}

func (e *Executor) lookup(ctx context.Context, key string, ttl time.Duration) (models.NodeOutput, bool) {
	if e.cache == nil || ttl <= 0 || key == "" {
		return models.NodeOutput{}, false
	}

	raw, ok, err := e.cache.Get(ctx, key)
	if err != nil || !ok {
		return models.NodeOutput{}, false
	}

	var out models.NodeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.NodeOutput{}, false
	}

	return out, true
}

func (e *Executor) store(ctx context.Context, key string, ttl time.Duration, out models.NodeOutput, ec *execution.Context) {
	if e.cache == nil || ttl <= 0 || key == "" {
		return
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return
	}

	if err := e.cache.Set(ctx, key, raw, ttl); err != nil {
		ec.Logger.Debug("Failed to cache fetch result", "key", key, "error", err)
	}
}

func withFlag(data map[string]any, key string, value any) map[string]any {
	if data == nil {
		data = map[string]any{}
	}

	data[key] = value

	return data
}
