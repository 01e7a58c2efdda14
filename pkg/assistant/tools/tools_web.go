package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/goccy/go-json"
)

func (d *Deps) weatherTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "get_weather",
			Description: "Get the current weather for a given city.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"city": {"type": "string", "description": "City name, e.g. London"}
				},
				"required": ["city"]
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				City string `json:"city"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}

			body, status, err := d.httpGetText(ctx, fmt.Sprintf("https://wttr.in/%s?format=3", url.PathEscape(in.City)))
			if err != nil {
				return "", fmt.Errorf("could not retrieve weather for %s: %w", in.City, err)
			}
			if status != 200 {
				return fmt.Sprintf("Could not retrieve weather for %s.", in.City), nil
			}

			report := strings.TrimSpace(string(body))
			d.Logger.Infof("weather for %s: %s", in.City, report)
			return report, nil
		},
	}
}

// ddgResponse is the DuckDuckGo instant answer payload, trimmed to the
// fields we read back.
type ddgResponse struct {
	Heading       string `json:"Heading"`
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Answer        string `json:"Answer"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

func (d *Deps) searchWebTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "search_web",
			Description: "Search the web using DuckDuckGo.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Search query"}
				},
				"required": ["query"]
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}

			u := fmt.Sprintf("https://api.duckduckgo.com/?q=%s&format=json&no_html=1&skip_disambig=1", url.QueryEscape(in.Query))
			body, status, err := d.httpGetText(ctx, u)
			if err != nil {
				return "", fmt.Errorf("error searching the web for %q: %w", in.Query, err)
			}
			if status != 200 {
				return fmt.Sprintf("Web search failed with status %d.", status), nil
			}

			var res ddgResponse
			if err := json.Unmarshal(body, &res); err != nil {
				return "", fmt.Errorf("unexpected search response: %w", err)
			}

			return condenseSearchResults(in.Query, &res), nil
		},
	}
}

// condenseSearchResults prefers the instant answer, then the abstract, then
// the first few related topics.
func condenseSearchResults(query string, res *ddgResponse) string {
	var sb strings.Builder

	if res.Answer != "" {
		sb.WriteString(res.Answer)
	}
	if res.AbstractText != "" {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(res.AbstractText)
		if res.AbstractURL != "" {
			sb.WriteString("\nSource: " + res.AbstractURL)
		}
	}
	if sb.Len() == 0 {
		count := 0
		for _, topic := range res.RelatedTopics {
			if topic.Text == "" {
				continue
			}
			sb.WriteString(fmt.Sprintf("- %s\n", topic.Text))
			count++
			if count >= 5 {
				break
			}
		}
	}
	if sb.Len() == 0 {
		return fmt.Sprintf("No results found for '%s'.", query)
	}
	return strings.TrimSpace(sb.String())
}

// defaultNewsFeeds maps topics to RSS feeds. Config can override per topic.
var defaultNewsFeeds = map[string]string{
	"technology": "https://feeds.feedburner.com/TechCrunch",
	"business":   "https://feeds.bbci.co.uk/news/business/rss.xml",
	"world":      "https://feeds.bbci.co.uk/news/world/rss.xml",
	"science":    "https://rss.nytimes.com/services/xml/rss/nyt/Science.xml",
	"health":     "https://rss.nytimes.com/services/xml/rss/nyt/Health.xml",
	"sports":     "https://sports.yahoo.com/rss/",
	"us":         "https://feeds.bbci.co.uk/news/world/us_and_canada/rss.xml",
}

type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description"`
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

func (d *Deps) newsTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "get_news",
			Description: "Get latest news on a specific topic.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"topic": {"type": "string", "description": "News topic: technology, business, world, science, health, sports or us"},
					"count": {"type": "integer", "description": "Number of news items to return, default 5"}
				}
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			in := struct {
				Topic string `json:"topic"`
				Count int    `json:"count"`
			}{Topic: "technology", Count: 5}
			if len(args) > 0 {
				if err := json.Unmarshal(args, &in); err != nil {
					return "", err
				}
			}
			if in.Topic == "" {
				in.Topic = "technology"
			}
			if in.Count <= 0 {
				in.Count = 5
			}
			if in.Count > 10 {
				in.Count = 10
			}

			feedURL := d.newsFeedURL(strings.ToLower(in.Topic))
			body, status, err := d.httpGetText(ctx, feedURL)
			if err != nil {
				return "", fmt.Errorf("error retrieving news for %s: %w", in.Topic, err)
			}
			if status != 200 {
				return fmt.Sprintf("Could not retrieve news for %s (status %d).", in.Topic, status), nil
			}

			var feed rssFeed
			if err := xml.Unmarshal(body, &feed); err != nil {
				return "", fmt.Errorf("could not parse news feed: %w", err)
			}

			return formatNewsItems(in.Topic, &feed, in.Count), nil
		},
	}
}

func (d *Deps) newsFeedURL(topic string) string {
	if d.Settings != nil {
		if u, ok := d.Settings.NewsFeeds[topic]; ok && u != "" {
			return u
		}
	}
	if u, ok := defaultNewsFeeds[topic]; ok {
		return u
	}
	return defaultNewsFeeds["technology"]
}

func formatNewsItems(topic string, feed *rssFeed, count int) string {
	source := feed.Channel.Title
	if source == "" {
		source = "Unknown Source"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Latest %s news from %s:\n", capitalize(topic), source))

	for i, item := range feed.Channel.Items {
		if i >= count {
			break
		}
		published := item.PubDate
		if published == "" {
			published = "N/A"
		}
		summary := clampSummary(stripHTML(item.Description), 200)
		if summary == "" {
			summary = "No summary available."
		}
		sb.WriteString(fmt.Sprintf("\n%d. %s\nPublished: %s\n%s\nLink: %s\n", i+1, strings.TrimSpace(item.Title), published, summary, item.Link))
	}

	if len(feed.Channel.Items) == 0 {
		sb.WriteString("\nNo news items found.")
	}
	return sb.String()
}

func stripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(htmlTagRe.ReplaceAllString(s, "")))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func clampSummary(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// yahooChart is the subset of Yahoo Finance's v8 chart payload we read.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				ShortName          string  `json:"shortName"`
				LongName           string  `json:"longName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				MarketCap          float64 `json:"marketCap"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (d *Deps) stockPriceTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "get_stock_price",
			Description: "Get the current stock price and recent performance for a given ticker symbol.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"symbol": {"type": "string", "description": "Stock ticker symbol, e.g. AAPL, MSFT, GOOGL"}
				},
				"required": ["symbol"]
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Symbol string `json:"symbol"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}
			symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
			if symbol == "" {
				return "Please provide a stock ticker symbol.", nil
			}

			u := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s?interval=1d&range=1d", url.PathEscape(symbol))
			body, status, err := d.httpGetText(ctx, u)
			if err != nil {
				return "", fmt.Errorf("error retrieving stock price for %s: %w", symbol, err)
			}
			if status != 200 {
				return fmt.Sprintf("Could not retrieve stock information for %s (status %d).", symbol, status), nil
			}

			var chart yahooChart
			if err := json.Unmarshal(body, &chart); err != nil {
				return "", fmt.Errorf("unexpected stock response for %s: %w", symbol, err)
			}
			return formatStockQuote(symbol, &chart)
		},
	}
}

func formatStockQuote(symbol string, chart *yahooChart) (string, error) {
	if chart.Chart.Error != nil {
		return fmt.Sprintf("Could not retrieve stock information for %s: %s.", symbol, chart.Chart.Error.Description), nil
	}
	if len(chart.Chart.Result) == 0 {
		return fmt.Sprintf("No stock information found for %s.", symbol), nil
	}

	meta := chart.Chart.Result[0].Meta
	name := meta.ShortName
	if name == "" {
		name = meta.LongName
	}
	if name == "" {
		name = symbol
	}

	previousClose := meta.PreviousClose
	if previousClose == 0 {
		previousClose = meta.ChartPreviousClose
	}
	if meta.RegularMarketPrice == 0 || previousClose == 0 {
		return fmt.Sprintf("Stock information for %s is incomplete right now.", symbol), nil
	}

	change := meta.RegularMarketPrice - previousClose
	changePct := change / previousClose * 100
	sign := ""
	if change >= 0 {
		sign = "+"
	}

	marketCap := "N/A"
	if meta.MarketCap >= 1_000_000_000 {
		marketCap = fmt.Sprintf("$%.2fB", meta.MarketCap/1_000_000_000)
	} else if meta.MarketCap > 0 {
		marketCap = fmt.Sprintf("$%.2fM", meta.MarketCap/1_000_000)
	}

	return fmt.Sprintf(
		"Stock information for %s (%s):\nCurrent Price: %.2f %s (%s%.2f, %s%.2f%%)\nPrevious Close: %.2f %s\nMarket Cap: %s",
		name, meta.Symbol, meta.RegularMarketPrice, meta.Currency, sign, change, sign, changePct, previousClose, meta.Currency, marketCap,
	), nil
}
