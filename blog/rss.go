package blog

import (
	"encoding/xml"
	"strings"
	"time"
)

const (
	feedTitle       = "AI Agents Blog"
	feedDescription = "Tutorials and insights on building AI agents"
	feedItems       = 20
	rssTimeFormat   = "Mon, 02 Jan 2006 15:04:05 GMT"
)

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate,omitempty"`
}

// RSS 生成 RSS 2.0 文档；posts 应已按发布时间倒序
func RSS(posts []Post, baseURL string, now time.Time) ([]byte, error) {
	base := strings.TrimRight(baseURL, "/")
	feed := rssFeed{
		Version: "2.0",
		Channel: rssChannel{
			Title:         feedTitle,
			Link:          base + "/blogs",
			Description:   feedDescription,
			Language:      "en-us",
			LastBuildDate: now.UTC().Format(rssTimeFormat),
		},
	}
	for i, p := range posts {
		if i == feedItems {
			break
		}
		link := base + "/blogs/" + p.Slug
		item := rssItem{Title: p.Title, Description: p.Excerpt, Link: link, GUID: link}
		if p.PublishedAt != nil {
			item.PubDate = p.PublishedAt.UTC().Format(rssTimeFormat)
		}
		feed.Channel.Items = append(feed.Channel.Items, item)
	}

	out, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// Feed 取最近发布的文章生成 RSS
func (s *Store) Feed(baseURL string) ([]byte, error) {
	return RSS(s.RecentPublished(feedItems), baseURL, s.now())
}
