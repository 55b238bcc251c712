package blog

import (
	"encoding/xml"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/agentlab/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var t0 = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

// newTestStore 每次取时间前进一分钟，后缀固定
func newTestStore() *Store {
	s := NewStore(DefaultConfig(), nil)
	tick := 0
	s.now = func() time.Time {
		tick++
		return t0.Add(time.Duration(tick) * time.Minute)
	}
	s.suffix = func() string { return "abcdef12" }
	return s
}

func mustPost(t *testing.T, s *Store, in PostCreate) *Post {
	t.Helper()
	p, err := s.CreatePost(in)
	require.NoError(t, err)
	return p
}

func ptr[T any](v T) *T { return &v }

func TestCreatePost_Defaults(t *testing.T) {
	s := newTestStore()
	p := mustPost(t, s, PostCreate{
		Title:     "Hello <b>World</b>!",
		Content:   "# Hi\n\nSome **bold** text.<script src=\"x.js\">",
		Published: true,
	})

	assert.Equal(t, 1, p.ID)
	assert.Equal(t, "Hello World!", p.Title)
	assert.Equal(t, "hello-world-abcdef12", p.Slug)
	assert.Equal(t, "Hi\n\nSome bold text.", p.Excerpt)
	assert.NotContains(t, p.Content, "<script")
	assert.Contains(t, p.ContentHTML, "<strong>bold</strong>")
	assert.Equal(t, 1, p.ReadTime)
	assert.Equal(t, "Developer", p.Author)
	assert.Equal(t, "developer@example.com", p.AuthorEmail)
	require.NotNil(t, p.PublishedAt)
	assert.Equal(t, p.CreatedAt, *p.PublishedAt)
}

func TestCreatePost_Draft(t *testing.T) {
	s := newTestStore()
	p := mustPost(t, s, PostCreate{Title: "Draft", Content: "body", Excerpt: "custom", ReadTime: 7, Author: "ann"})
	assert.Nil(t, p.PublishedAt)
	assert.Equal(t, "custom", p.Excerpt)
	assert.Equal(t, 7, p.ReadTime)
	assert.Equal(t, "ann", p.Author)
}

func TestCreatePost_SlugCollisions(t *testing.T) {
	s := newTestStore()
	assert.Equal(t, "same-abcdef12", mustPost(t, s, PostCreate{Title: "Same", Content: "x"}).Slug)
	assert.Equal(t, "same-abcdef12-1", mustPost(t, s, PostCreate{Title: "Same", Content: "x"}).Slug)
	assert.Equal(t, "same-abcdef12-2", mustPost(t, s, PostCreate{Title: "same!", Content: "x"}).Slug)

	assert.Equal(t, "custom", mustPost(t, s, PostCreate{Title: "a", Slug: "custom", Content: "x"}).Slug)
	assert.Equal(t, "custom-1", mustPost(t, s, PostCreate{Title: "b", Slug: "custom", Content: "x"}).Slug)

	// 标题全是标点时使用 post 前缀
	assert.Equal(t, "post-abcdef12", mustPost(t, s, PostCreate{Title: "???", Content: "x"}).Slug)
}

func TestCreatePost_Validation(t *testing.T) {
	s := NewStore(Config{MaxContentLength: 10}, nil)
	cases := []struct {
		name string
		in   PostCreate
		msg  string
	}{
		{"empty title", PostCreate{Title: "  ", Content: "x"}, "Title is required"},
		{"tags only", PostCreate{Title: "<b></b>", Content: "x"}, "Title is required"},
		{"long title", PostCreate{Title: strings.Repeat("t", 256), Content: "x"}, "Title is too long"},
		{"empty content", PostCreate{Title: "t"}, "Content is required"},
		{"long content", PostCreate{Title: "t", Content: strings.Repeat("c", 11)}, "Content is too long"},
		{"bad slug", PostCreate{Title: "t", Content: "c", Slug: "Bad Slug"}, "Slug can only contain"},
		{"long excerpt", PostCreate{Title: "t", Content: "c", Excerpt: strings.Repeat("e", 501)}, "Excerpt is too long"},
		{"negative read time", PostCreate{Title: "t", Content: "c", ReadTime: -1}, "Read time"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreatePost(tc.in)
			require.Error(t, err)
			assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
	assert.Zero(t, s.Stats().TotalBlogs)
}

func TestListPosts_Filters(t *testing.T) {
	s := newTestStore()
	mustPost(t, s, PostCreate{Title: "Go agents", Content: "tools", Category: "Tutorial", Tags: "AI,Go", AgentType: "math", Published: true})
	mustPost(t, s, PostCreate{Title: "Rust", Content: "ownership", Category: "Advanced", Tags: "Rust", Published: true, Featured: true})
	mustPost(t, s, PostCreate{Title: "Hidden", Content: "draft about go"})

	titles := func(q ListQuery) []string {
		page, err := s.ListPosts(q)
		require.NoError(t, err)
		var out []string
		for _, p := range page.Blogs {
			out = append(out, p.Title)
		}
		return out
	}

	q := DefaultListQuery()
	assert.Equal(t, []string{"Rust", "Go agents"}, titles(q))

	q = DefaultListQuery()
	q.Q = "GO"
	assert.Equal(t, []string{"Go agents"}, titles(q))

	q.Published = nil
	assert.Equal(t, []string{"Hidden", "Go agents"}, titles(q))

	q = DefaultListQuery()
	q.Category = "Advanced"
	assert.Equal(t, []string{"Rust"}, titles(q))

	q = DefaultListQuery()
	q.Tags = "ai"
	assert.Equal(t, []string{"Go agents"}, titles(q))

	q = DefaultListQuery()
	q.AgentType = "math"
	assert.Equal(t, []string{"Go agents"}, titles(q))

	q = DefaultListQuery()
	q.Featured = ptr(true)
	assert.Equal(t, []string{"Rust"}, titles(q))

	q = DefaultListQuery()
	q.SortBy, q.SortOrder = SortTitle, "asc"
	assert.Equal(t, []string{"Go agents", "Rust"}, titles(q))
}

func TestListPosts_SortTieBreaksByID(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 3; i++ {
		mustPost(t, s, PostCreate{Title: fmt.Sprintf("p%d", i), Content: "x", Published: true})
	}
	q := DefaultListQuery()
	q.SortBy = SortViews
	page, err := s.ListPosts(q)
	require.NoError(t, err)
	require.Len(t, page.Blogs, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{page.Blogs[0].ID, page.Blogs[1].ID, page.Blogs[2].ID})
}

func TestListPosts_InvalidQuery(t *testing.T) {
	s := newTestStore()
	bad := []ListQuery{
		{Page: -1},
		{PageSize: 101},
		{SortBy: "author"},
		{SortOrder: "up"},
	}
	for _, q := range bad {
		_, err := s.ListPosts(q)
		assert.Equal(t, types.ErrValidation, types.GetErrorCode(err), "%+v", q)
	}
}

func TestListPosts_Pagination(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(rt, "posts")
		size := rapid.IntRange(1, 10).Draw(rt, "pageSize")

		s := newTestStore()
		for i := 0; i < n; i++ {
			if _, err := s.CreatePost(PostCreate{Title: fmt.Sprintf("post %d", i), Content: "x", Published: true}); err != nil {
				rt.Fatalf("create: %v", err)
			}
		}

		seen := make(map[int]bool)
		pages := (n + size - 1) / size
		for page := 1; page <= pages+1; page++ {
			q := DefaultListQuery()
			q.Page, q.PageSize = page, size
			res, err := s.ListPosts(q)
			if err != nil {
				rt.Fatalf("list: %v", err)
			}
			if res.Total != n || res.TotalPages != pages {
				rt.Fatalf("total=%d pages=%d, want %d/%d", res.Total, res.TotalPages, n, pages)
			}
			want := min(max(n-(page-1)*size, 0), size)
			if len(res.Blogs) != want {
				rt.Fatalf("page %d has %d posts, want %d", page, len(res.Blogs), want)
			}
			for _, p := range res.Blogs {
				if seen[p.ID] {
					rt.Fatalf("post %d returned twice", p.ID)
				}
				seen[p.ID] = true
			}
		}
		if len(seen) != n {
			rt.Fatalf("saw %d posts, want %d", len(seen), n)
		}
	})
}

func TestCreatePost_SlugsUnique(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := newTestStore()
		titles := rapid.SliceOfN(rapid.SampledFrom([]string{"Go", "go!", "Agents", "AI & ML", "a-b", "A B"}), 1, 25).Draw(rt, "titles")
		slugs := make(map[string]bool)
		for _, title := range titles {
			p, err := s.CreatePost(PostCreate{Title: title, Content: "x"})
			if err != nil {
				rt.Fatalf("create %q: %v", title, err)
			}
			if slugs[p.Slug] {
				rt.Fatalf("duplicate slug %q", p.Slug)
			}
			slugs[p.Slug] = true
		}
	})
}

func TestGetBySlug_CountsViews(t *testing.T) {
	s := newTestStore()
	p := mustPost(t, s, PostCreate{Title: "Views", Content: "x"})

	for i := 1; i <= 3; i++ {
		got, err := s.GetBySlug(p.Slug)
		require.NoError(t, err)
		assert.Equal(t, i, got.Views)
	}
	got, err := s.GetByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Views)

	_, err = s.GetBySlug("missing")
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
	_, err = s.GetByID(99)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
}

func TestUpdatePost(t *testing.T) {
	s := newTestStore()
	p := mustPost(t, s, PostCreate{Title: "Before", Content: "old", Tags: "a"})

	long := strings.Repeat("word ", 250)
	got, err := s.UpdatePost(p.ID, PostUpdate{
		Title:     ptr("After"),
		Content:   ptr(long),
		Published: ptr(true),
		Tags:      ptr("<i>b</i>"),
	})
	require.NoError(t, err)
	assert.Equal(t, "After", got.Title)
	assert.Equal(t, p.Slug, got.Slug)
	assert.Equal(t, "b", got.Tags)
	assert.Equal(t, 2, got.ReadTime)
	assert.True(t, strings.HasSuffix(got.Excerpt, "..."))
	require.NotNil(t, got.PublishedAt)
	firstPublished := *got.PublishedAt
	assert.True(t, got.UpdatedAt.After(p.UpdatedAt))

	// 已发布时不重置发布时间
	got, err = s.UpdatePost(p.ID, PostUpdate{Published: ptr(true), ReadTime: ptr(9)})
	require.NoError(t, err)
	assert.Equal(t, firstPublished, *got.PublishedAt)
	assert.Equal(t, 9, got.ReadTime)

	// 其他字段更新不影响发布时间
	got, err = s.UpdatePost(p.ID, PostUpdate{Featured: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, firstPublished, *got.PublishedAt)

	got, err = s.UpdatePost(p.ID, PostUpdate{Published: ptr(false)})
	require.NoError(t, err)
	assert.Nil(t, got.PublishedAt)

	_, err = s.UpdatePost(p.ID, PostUpdate{Title: ptr("")})
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
	_, err = s.UpdatePost(p.ID, PostUpdate{ReadTime: ptr(0)})
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
	_, err = s.UpdatePost(42, PostUpdate{Featured: ptr(true)})
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
}

func TestDeleteAndLike(t *testing.T) {
	s := newTestStore()
	p := mustPost(t, s, PostCreate{Title: "Bye", Content: "x", Published: true})

	n, err := s.LikePost(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.LikePost(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.CreateComment(p.ID, CommentCreate{Content: "nice", Author: "bob"})
	require.NoError(t, err)

	require.NoError(t, s.DeletePost(p.ID))
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(s.DeletePost(p.ID)))
	_, err = s.LikePost(p.ID)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
	assert.Empty(t, s.comments)
}

func TestComments(t *testing.T) {
	s := newTestStore()
	p := mustPost(t, s, PostCreate{Title: "Talk", Content: "x"})

	c, err := s.CreateComment(p.ID, CommentCreate{Content: " <b>Great</b> post ", Author: "amy", Email: "amy@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Great post", c.Content)
	assert.False(t, c.Approved)
	assert.Equal(t, p.ID, c.BlogID)

	list, err := s.ListComments(p.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	approved, err := s.ApproveComment(p.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, approved.Approved)

	list, err = s.ListComments(p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "amy", list[0].Author)

	_, err = s.ApproveComment(p.ID, 99)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
	_, err = s.ListComments(99)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
	_, err = s.CreateComment(99, CommentCreate{Content: "x", Author: "y"})
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))

	_, err = s.CreateComment(p.ID, CommentCreate{Content: "x", Author: "y", Email: "nope"})
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
	_, err = s.CreateComment(p.ID, CommentCreate{Content: strings.Repeat("c", 1001), Author: "y"})
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
	_, err = s.CreateComment(p.ID, CommentCreate{Content: "x"})
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
}

func TestCategoriesAndTags(t *testing.T) {
	s := newTestStore()
	c, err := s.CreateCategory(CategoryCreate{Name: "Tips & Tricks", Color: "#F59E0B"})
	require.NoError(t, err)
	assert.Equal(t, "tips-tricks", c.Slug)
	assert.Equal(t, "Tips & Tricks", c.Name)

	_, err = s.CreateCategory(CategoryCreate{Name: "tips & tricks"})
	assert.Equal(t, types.ErrConflict, types.GetErrorCode(err))
	_, err = s.CreateCategory(CategoryCreate{Name: "Other", Slug: "tips-tricks"})
	assert.Equal(t, types.ErrConflict, types.GetErrorCode(err))
	_, err = s.CreateCategory(CategoryCreate{Name: "Colorful", Color: "blue"})
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
	_, err = s.CreateCategory(CategoryCreate{Name: "%%%"})
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))

	tag, err := s.CreateTag(TagCreate{Name: "Getting Started"})
	require.NoError(t, err)
	assert.Equal(t, "getting-started", tag.Slug)
	_, err = s.CreateTag(TagCreate{Name: "GETTING STARTED"})
	assert.Equal(t, types.ErrConflict, types.GetErrorCode(err))
	_, err = s.CreateTag(TagCreate{Name: strings.Repeat("t", 51)})
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))

	assert.Len(t, s.ListCategories(), 1)
	assert.Len(t, s.ListTags(), 1)
}

func TestSearch(t *testing.T) {
	s := newTestStore()
	mustPost(t, s, PostCreate{Title: "Agents", Content: "planning loop", Published: true})
	mustPost(t, s, PostCreate{Title: "Draft", Content: "planning draft"})

	page, err := s.Search("PLANNING", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 10, page.PageSize)

	_, err = s.Search(" ", 1, 10)
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
	_, err = s.Search("x", 1, 51)
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
}

func TestStats(t *testing.T) {
	s := newTestStore()
	a := mustPost(t, s, PostCreate{Title: "a", Content: "x", Published: true, Featured: true})
	mustPost(t, s, PostCreate{Title: "b", Content: "x"})
	_, _ = s.GetBySlug(a.Slug)
	_, _ = s.LikePost(a.ID)
	_, err := s.CreateTag(TagCreate{Name: "AI"})
	require.NoError(t, err)

	assert.Equal(t, Stats{
		TotalBlogs:     2,
		PublishedBlogs: 1,
		DraftBlogs:     1,
		FeaturedBlogs:  1,
		TotalViews:     1,
		TotalLikes:     1,
		TagsCount:      1,
	}, s.Stats())
}

func TestFeed(t *testing.T) {
	s := newTestStore()
	mustPost(t, s, PostCreate{Title: "Old", Slug: "old", Content: "x", Excerpt: "first", Published: true})
	mustPost(t, s, PostCreate{Title: "Hidden", Content: "x"})
	mustPost(t, s, PostCreate{Title: "New & shiny", Slug: "new", Content: "x", Published: true})

	out, err := s.Feed("https://blog.example.com/")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), xml.Header))

	var doc rssFeed
	require.NoError(t, xml.Unmarshal(out, &doc))
	assert.Equal(t, "2.0", doc.Version)
	assert.Equal(t, "AI Agents Blog", doc.Channel.Title)
	assert.Equal(t, "https://blog.example.com/blogs", doc.Channel.Link)
	require.Len(t, doc.Channel.Items, 2)
	assert.Equal(t, "New & shiny", doc.Channel.Items[0].Title)
	assert.Equal(t, "https://blog.example.com/blogs/new", doc.Channel.Items[0].GUID)
	assert.Equal(t, "first", doc.Channel.Items[1].Description)
	assert.Equal(t, "Mon, 19 Oct 2026 08:01:00 GMT", doc.Channel.Items[1].PubDate)
}

func TestRSS_LimitsItems(t *testing.T) {
	posts := make([]Post, 25)
	for i := range posts {
		posts[i] = Post{Title: fmt.Sprintf("p%d", i), Slug: fmt.Sprintf("p%d", i)}
	}
	out, err := RSS(posts, "http://x", t0)
	require.NoError(t, err)
	var doc rssFeed
	require.NoError(t, xml.Unmarshal(out, &doc))
	assert.Len(t, doc.Channel.Items, 20)
	assert.Empty(t, doc.Channel.Items[0].PubDate)
}

func TestSeed(t *testing.T) {
	s := newTestStore()
	require.NoError(t, Seed(s, nil))
	require.NoError(t, Seed(s, nil))

	st := s.Stats()
	assert.Equal(t, 4, st.TotalBlogs)
	assert.Equal(t, 4, st.PublishedBlogs)
	assert.Equal(t, 4, st.CategoriesCount)
	assert.Equal(t, 10, st.TagsCount)

	var agentTypes []string
	for _, p := range s.RecentPublished(0) {
		agentTypes = append(agentTypes, p.AgentType)
	}
	assert.ElementsMatch(t, []string{"math", "intelligent", "autonomous", "researcher"}, agentTypes)
}
