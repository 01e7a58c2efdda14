package tools

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	_ "time/tzdata"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePassword(t *testing.T) {
	t.Run("length out of range", func(t *testing.T) {
		for _, length := range []int{0, 7, 129} {
			p, err := generatePassword(length, true)
			require.NoError(t, err)
			assert.Empty(t, p)
		}
	})

	t.Run("contains every class", func(t *testing.T) {
		p, err := generatePassword(16, true)
		require.NoError(t, err)
		assert.Len(t, p, 16)
		assert.True(t, strings.ContainsAny(p, passwordLowercase))
		assert.True(t, strings.ContainsAny(p, passwordUppercase))
		assert.True(t, strings.ContainsAny(p, passwordDigits))
		assert.True(t, strings.ContainsAny(p, passwordSpecial))
	})

	t.Run("without special characters", func(t *testing.T) {
		p, err := generatePassword(12, false)
		require.NoError(t, err)
		assert.Len(t, p, 12)
		assert.False(t, strings.ContainsAny(p, passwordSpecial))
	})

	t.Run("handler reports range errors", func(t *testing.T) {
		handler := (&Deps{}).passwordTool().Handler
		out, err := handler(context.Background(), json.RawMessage(`{"length": 4}`))
		require.NoError(t, err)
		assert.Equal(t, "Password length must be at least 8 characters for security", out)

		out, err = handler(context.Background(), json.RawMessage(`{"length": 300}`))
		require.NoError(t, err)
		assert.Equal(t, "Password length must not exceed 128 characters", out)
	})
}

func TestBuildAgenda(t *testing.T) {
	t.Run("requires a title", func(t *testing.T) {
		assert.Equal(t, "Please provide a meeting title.", buildAgenda("", 60, ""))
	})

	t.Run("default topics and even split", func(t *testing.T) {
		agenda := buildAgenda("Weekly Sync", 60, "")
		assert.Contains(t, agenda, "# Meeting Agenda: Weekly Sync")
		assert.Contains(t, agenda, "Duration: 60 minutes")
		assert.Contains(t, agenda, "## Opening (5 minutes)")
		// 50 available minutes over five default topics.
		assert.Contains(t, agenda, "## Introduction (10 minutes)")
		assert.Contains(t, agenda, "## Next Steps (10 minutes)")
		assert.Contains(t, agenda, "## Closing (5 minutes)")
	})

	t.Run("remainder goes to closing", func(t *testing.T) {
		agenda := buildAgenda("Planning", 45, "One, Two, Three")
		// 35 available minutes, 11 each, 2 left for the closing.
		assert.Contains(t, agenda, "## One (11 minutes)")
		assert.Contains(t, agenda, "## Closing (7 minutes)")
	})

	t.Run("topic bullets vary by position", func(t *testing.T) {
		agenda := buildAgenda("Review", 60, "Alpha, Beta, Gamma")
		first := strings.Index(agenda, "## Alpha")
		last := strings.Index(agenda, "## Gamma")
		require.True(t, first >= 0 && last > first)
		assert.Contains(t, agenda[first:last], "- Presentation of key points")
		assert.Contains(t, agenda[first:last], "- Update and status report")
		assert.Contains(t, agenda[last:], "- Summary of decisions")
	})
}

func TestCalculateROI(t *testing.T) {
	t.Run("guards", func(t *testing.T) {
		assert.Equal(t, "Initial investment must be greater than zero.", calculateROI(0, 100, 1))
		assert.Equal(t, "Time period must be greater than zero.", calculateROI(100, 150, 0))
	})

	t.Run("single year omits annualized line", func(t *testing.T) {
		out := calculateROI(1000, 1500, 1)
		assert.Contains(t, out, "Net Return: $500.00")
		assert.Contains(t, out, "ROI: 50.00%")
		assert.NotContains(t, out, "Annualized")
	})

	t.Run("multi year annualizes", func(t *testing.T) {
		out := calculateROI(1000, 2000, 2)
		assert.Contains(t, out, "ROI: 100.00%")
		assert.Contains(t, out, "Annualized ROI: 41.42%")
	})

	t.Run("losses work too", func(t *testing.T) {
		out := calculateROI(1000, 800, 1)
		assert.Contains(t, out, "Net Return: $-200.00")
		assert.Contains(t, out, "ROI: -20.00%")
	})
}

func TestParseGitRepoURL(t *testing.T) {
	t.Run("github with git suffix", func(t *testing.T) {
		out := parseGitRepoURL("https://github.com/acme/widget.git")
		assert.Contains(t, out, "- Type: GitHub")
		assert.Contains(t, out, "- Owner: acme")
		assert.Contains(t, out, "- Repository: widget")
		assert.Contains(t, out, "- HTTPS URL: https://github.com/acme/widget.git")
		assert.Contains(t, out, "- SSH URL: git@github.com:acme/widget.git")
		assert.Contains(t, out, "Clone command: git clone https://github.com/acme/widget.git")
	})

	t.Run("gitlab without scheme", func(t *testing.T) {
		out := parseGitRepoURL("gitlab.com/group/tool/")
		assert.Contains(t, out, "- Type: GitLab")
		assert.Contains(t, out, "- Repository: tool")
	})

	t.Run("bitbucket with www", func(t *testing.T) {
		out := parseGitRepoURL("https://www.bitbucket.org/team/repo")
		assert.Contains(t, out, "- Type: Bitbucket")
	})

	t.Run("unsupported urls", func(t *testing.T) {
		for _, u := range []string{
			"https://example.com/foo/bar",
			"https://github.com/just-an-owner",
			"not a url",
		} {
			assert.Equal(t, "Invalid or unsupported Git repository URL format.", parseGitRepoURL(u))
		}
	})
}

func TestLookupCodeSnippet(t *testing.T) {
	t.Run("known language and task", func(t *testing.T) {
		out := lookupCodeSnippet("python", "how do I read file contents")
		assert.True(t, strings.HasPrefix(out, "```python\n"))
		assert.True(t, strings.HasSuffix(out, "\n```"))
	})

	t.Run("language is normalized", func(t *testing.T) {
		out := lookupCodeSnippet(" Go ", "make an http request")
		assert.True(t, strings.HasPrefix(out, "```go\n"))
	})

	t.Run("unknown task falls back", func(t *testing.T) {
		out := lookupCodeSnippet("python", "sort a list")
		assert.Equal(t, "No pre-defined code snippet available for 'sort a list' in python. Try asking the coding assistant for a tailored example.", out)
	})

	t.Run("unknown language falls back", func(t *testing.T) {
		out := lookupCodeSnippet("rust", "read file")
		assert.Contains(t, out, "in rust")
	})
}

func TestResolveTimezone(t *testing.T) {
	t.Run("exact zone", func(t *testing.T) {
		_, name, note := resolveTimezone("America/New_York")
		assert.Equal(t, "America/New_York", name)
		assert.Empty(t, note)
	})

	t.Run("substring match", func(t *testing.T) {
		_, name, note := resolveTimezone("Tokyo")
		assert.Equal(t, "Asia/Tokyo", name)
		assert.Equal(t, "Using closest match: Asia/Tokyo", note)
	})

	t.Run("unknown falls back to UTC", func(t *testing.T) {
		loc, name, note := resolveTimezone("Atlantis/Nowhere")
		assert.Equal(t, "UTC", name)
		assert.Equal(t, "Invalid timezone. Using UTC instead.", note)
		assert.NotNil(t, loc)
	})

	t.Run("empty means UTC", func(t *testing.T) {
		_, name, note := resolveTimezone("")
		assert.Equal(t, "UTC", name)
		assert.Empty(t, note)
	})
}

func TestJokesForCategory(t *testing.T) {
	assert.Len(t, jokesForCategory("chuck"), len(jokeCategories["chuck"]))
	assert.Len(t, jokesForCategory("TWISTER"), len(jokeCategories["twister"]))
	assert.Len(t, jokesForCategory("all"),
		len(jokeCategories["neutral"])+len(jokeCategories["chuck"])+len(jokeCategories["twister"]))
	assert.Equal(t, jokeCategories["neutral"], jokesForCategory("programming"))
	assert.Equal(t, jokeCategories["neutral"], jokesForCategory(""))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", formatFileSize(512))
	assert.Equal(t, "1.50 KB", formatFileSize(1536))
	assert.Equal(t, "5.00 MB", formatFileSize(5*1024*1024))
}

func TestSearchFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(rel string) {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))
	}
	write("report.pdf")
	write("notes.txt")
	write(".hidden-report.pdf")
	write("projects/report_v2.pdf")
	write(".git/report_secret.pdf")

	t.Run("matches by name and skips hidden", func(t *testing.T) {
		out := searchFiles(dir, "report", "", 20)
		assert.Contains(t, out, "Found 2 file(s) matching 'report':")
		assert.Contains(t, out, "report.pdf")
		assert.Contains(t, out, "report_v2.pdf")
		assert.NotContains(t, out, "hidden-report")
		assert.NotContains(t, out, "report_secret")
	})

	t.Run("extension filter", func(t *testing.T) {
		out := searchFiles(dir, "notes", "pdf", 20)
		assert.Equal(t, fmt.Sprintf("No files found matching 'notes' with extension(s): .pdf in '%s'.", dir), out)

		out = searchFiles(dir, "notes", ".TXT", 20)
		assert.Contains(t, out, "Found 1 file(s) matching 'notes':")
	})

	t.Run("result limit noted", func(t *testing.T) {
		out := searchFiles(dir, "report", "", 1)
		assert.Contains(t, out, "Found 1 file(s)")
		assert.Contains(t, out, "Note: Results limited to 1 files.")
	})

	t.Run("missing path", func(t *testing.T) {
		missing := filepath.Join(dir, "missing")
		out := searchFiles(missing, "x", "", 20)
		assert.Equal(t, fmt.Sprintf("Error: The specified path '%s' does not exist.", missing), out)
	})
}

func TestCondenseSearchResults(t *testing.T) {
	t.Run("instant answer wins", func(t *testing.T) {
		res := &ddgResponse{Answer: "42"}
		assert.Equal(t, "42", condenseSearchResults("meaning", res))
	})

	t.Run("abstract with source", func(t *testing.T) {
		res := &ddgResponse{AbstractText: "Go is a language.", AbstractURL: "https://go.dev"}
		out := condenseSearchResults("golang", res)
		assert.Contains(t, out, "Go is a language.")
		assert.Contains(t, out, "Source: https://go.dev")
	})

	t.Run("related topics capped at five", func(t *testing.T) {
		var res ddgResponse
		require.NoError(t, json.Unmarshal([]byte(`{
			"RelatedTopics": [
				{"Text": "one"}, {"Text": "two"}, {"Text": "three"},
				{"Text": "four"}, {"Text": "five"}, {"Text": "six"}
			]
		}`), &res))
		out := condenseSearchResults("q", &res)
		assert.Contains(t, out, "- five")
		assert.NotContains(t, out, "- six")
	})

	t.Run("nothing found", func(t *testing.T) {
		assert.Equal(t, "No results found for 'query'.", condenseSearchResults("query", &ddgResponse{}))
	})
}

func TestFormatStockQuote(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		var chart yahooChart
		require.NoError(t, json.Unmarshal([]byte(`{"chart": {"error": {"code": "Not Found", "description": "No data found"}}}`), &chart))
		out, err := formatStockQuote("NOPE", &chart)
		require.NoError(t, err)
		assert.Equal(t, "Could not retrieve stock information for NOPE: No data found.", out)
	})

	t.Run("empty result", func(t *testing.T) {
		out, err := formatStockQuote("NOPE", &yahooChart{})
		require.NoError(t, err)
		assert.Equal(t, "No stock information found for NOPE.", out)
	})

	t.Run("quote with gain", func(t *testing.T) {
		var chart yahooChart
		require.NoError(t, json.Unmarshal([]byte(`{"chart": {"result": [{"meta": {
			"currency": "USD", "symbol": "ACME", "shortName": "Acme Corp",
			"regularMarketPrice": 110.0, "previousClose": 100.0,
			"marketCap": 2500000000.0
		}}]}}`), &chart))
		out, err := formatStockQuote("ACME", &chart)
		require.NoError(t, err)
		assert.Contains(t, out, "Stock information for Acme Corp (ACME):")
		assert.Contains(t, out, "Current Price: 110.00 USD (+10.00, +10.00%)")
		assert.Contains(t, out, "Previous Close: 100.00 USD")
		assert.Contains(t, out, "Market Cap: $2.50B")
	})

	t.Run("falls back to chart previous close", func(t *testing.T) {
		var chart yahooChart
		require.NoError(t, json.Unmarshal([]byte(`{"chart": {"result": [{"meta": {
			"currency": "EUR", "symbol": "ACME",
			"regularMarketPrice": 95.0, "chartPreviousClose": 100.0
		}}]}}`), &chart))
		out, err := formatStockQuote("ACME", &chart)
		require.NoError(t, err)
		assert.Contains(t, out, "Stock information for ACME (ACME):")
		assert.Contains(t, out, "(-5.00, -5.00%)")
		assert.Contains(t, out, "Market Cap: N/A")
	})

	t.Run("market cap below a billion reads in millions", func(t *testing.T) {
		var chart yahooChart
		require.NoError(t, json.Unmarshal([]byte(`{"chart": {"result": [{"meta": {
			"currency": "USD", "symbol": "ACME",
			"regularMarketPrice": 12.0, "previousClose": 10.0,
			"marketCap": 450000000.0
		}}]}}`), &chart))
		out, err := formatStockQuote("ACME", &chart)
		require.NoError(t, err)
		assert.Contains(t, out, "Market Cap: $450.00M")
	})
}

func TestFormatNewsItems(t *testing.T) {
	t.Run("formats items and strips html", func(t *testing.T) {
		feed := &rssFeed{}
		feed.Channel.Title = "Example News"
		feed.Channel.Items = []rssItem{
			{Title: " First story ", Link: "https://example.com/1", PubDate: "Mon, 02 Jan 2006", Description: "<p>Hello &amp; welcome</p>"},
			{Title: "Second story", Link: "https://example.com/2"},
			{Title: "Third story", Link: "https://example.com/3"},
		}

		out := formatNewsItems("technology", feed, 2)
		assert.Contains(t, out, "Latest Technology news from Example News:")
		assert.Contains(t, out, "1. First story\nPublished: Mon, 02 Jan 2006\nHello & welcome\nLink: https://example.com/1")
		assert.Contains(t, out, "2. Second story\nPublished: N/A\nNo summary available.")
		assert.NotContains(t, out, "Third story")
	})

	t.Run("empty feed", func(t *testing.T) {
		feed := &rssFeed{}
		out := formatNewsItems("world", feed, 5)
		assert.Contains(t, out, "from Unknown Source")
		assert.Contains(t, out, "No news items found.")
	})
}

func TestStripHTMLAndClampSummary(t *testing.T) {
	assert.Equal(t, "Hello & world", stripHTML("<p>Hello &amp; <b>world</b></p>"))
	assert.Equal(t, "short", clampSummary("short", 200))

	long := strings.Repeat("a", 300)
	clamped := clampSummary(long, 200)
	assert.Len(t, clamped, 203)
	assert.True(t, strings.HasSuffix(clamped, "..."))
}

func TestNewsFeedURL(t *testing.T) {
	d := &Deps{}
	assert.Equal(t, defaultNewsFeeds["world"], d.newsFeedURL("world"))
	assert.Equal(t, defaultNewsFeeds["technology"], d.newsFeedURL("unknown-topic"))
}

func TestWrapBase64(t *testing.T) {
	data := []byte(strings.Repeat("binary payload ", 20))
	wrapped := wrapBase64(data)

	for _, line := range strings.Split(strings.TrimRight(string(wrapped), "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
	assert.True(t, strings.HasSuffix(string(wrapped), "\r\n"))
}

func TestEmailFailureMessage(t *testing.T) {
	t.Run("auth rejections", func(t *testing.T) {
		err := &textproto.Error{Code: 535, Msg: "Username and Password not accepted"}
		assert.Equal(t, "Email sending failed: Authentication error. Please check your Gmail credentials.", emailFailureMessage(err))
	})

	t.Run("other smtp errors", func(t *testing.T) {
		err := &textproto.Error{Code: 550, Msg: "mailbox unavailable"}
		assert.Equal(t, "Email sending failed: SMTP error - 550 mailbox unavailable", emailFailureMessage(err))
	})

	t.Run("transport errors", func(t *testing.T) {
		assert.Equal(t, "An error occurred while sending email: connection refused",
			emailFailureMessage(errors.New("connection refused")))
	})
}
