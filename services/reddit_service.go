package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"narrator/logging"
)

const redditBaseURL = "https://www.reddit.com"

// Reddit listing time frames.
const (
	TimeFrameAll   = "all"
	TimeFrameYear  = "year"
	TimeFrameMonth = "month"
	TimeFrameWeek  = "week"
	TimeFrameDay   = "day"
	TimeFrameHour  = "hour"
)

// ValidTimeFrame reports whether tf is a listing time frame.
func ValidTimeFrame(tf string) bool {
	switch tf {
	case TimeFrameAll, TimeFrameYear, TimeFrameMonth, TimeFrameWeek, TimeFrameDay, TimeFrameHour:
		return true
	}
	return false
}

// Post is one text post from a listing.
type Post struct {
	URL    string
	Title  string
	Author string
	Body   string
}

// RedditSource reads top posts from a subreddit's public JSON listing.
type RedditSource struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRedditSource creates a content source.
func NewRedditSource(logger *slog.Logger) *RedditSource {
	return &RedditSource{
		baseURL:   redditBaseURL,
		userAgent: "narrator/1.0",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logging.NewComponentLogger(logger, "reddit"),
	}
}

// TopPosts pages through the subreddit's top listing until count posts are
// collected or the listing ends. Stickied and promoted posts are skipped.
func (rs *RedditSource) TopPosts(ctx context.Context, subreddit, timeFrame string, count int) ([]Post, error) {
	subreddit = strings.TrimPrefix(strings.TrimSpace(subreddit), "r/")
	if subreddit == "" {
		return nil, fmt.Errorf("subreddit is required")
	}
	if timeFrame == "" {
		timeFrame = TimeFrameAll
	}
	if !ValidTimeFrame(timeFrame) {
		return nil, fmt.Errorf("unknown time frame %q", timeFrame)
	}
	if count <= 0 {
		count = 25
	}

	posts := make([]Post, 0, count)
	after := ""
	for len(posts) < count {
		page, err := rs.fetchPage(ctx, subreddit, timeFrame, after, count-len(posts))
		if err != nil {
			return nil, err
		}

		page.Get("data.children").ForEach(func(_, child gjson.Result) bool {
			data := child.Get("data")
			if data.Get("stickied").Bool() || data.Get("promoted").Bool() {
				return true
			}
			posts = append(posts, parsePost(data))
			return len(posts) < count
		})

		after = page.Get("data.after").String()
		if after == "" {
			break
		}
	}

	rs.logger.Info("posts fetched",
		logging.String("subreddit", subreddit),
		logging.String("time_frame", timeFrame),
		logging.Int("count", len(posts)),
	)
	return posts, nil
}

func (rs *RedditSource) fetchPage(ctx context.Context, subreddit, timeFrame, after string, limit int) (gjson.Result, error) {
	params := url.Values{}
	params.Set("t", timeFrame)
	params.Set("limit", strconv.Itoa(min(limit, 100)))
	params.Set("raw_json", "1")
	if after != "" {
		params.Set("after", after)
	}
	endpoint := fmt.Sprintf("%s/r/%s/top.json?%s", rs.baseURL, url.PathEscape(subreddit), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("User-Agent", rs.userAgent)

	resp, err := rs.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("fetch listing: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read listing: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("reddit returned status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("reddit returned invalid JSON")
	}
	return gjson.ParseBytes(body), nil
}

func parsePost(data gjson.Result) Post {
	author := data.Get("author").String()
	if author == "" {
		author = "[deleted]"
	}
	link := data.Get("permalink").String()
	if link != "" && !strings.HasPrefix(link, "http") {
		link = redditBaseURL + link
	}
	return Post{
		URL:    link,
		Title:  strings.TrimSpace(data.Get("title").String()),
		Author: author,
		Body:   strings.TrimSpace(data.Get("selftext").String()),
	}
}
