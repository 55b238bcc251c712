package blog

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/agentlab/security"
	"github.com/BaSui01/agentlab/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config Store 配置
type Config struct {
	MaxContentLength   int
	DefaultAuthor      string
	DefaultAuthorEmail string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxContentLength:   100000,
		DefaultAuthor:      "Developer",
		DefaultAuthorEmail: "developer@example.com",
	}
}

// Store 进程内博客存储，以自增整数为主键
type Store struct {
	cfg    Config
	now    func() time.Time
	suffix func() string

	mu         sync.RWMutex
	posts      map[int]*Post
	comments   map[int][]*Comment
	categories map[int]*Category
	tags       map[int]*Tag
	nextPost   int
	nextCmt    int
	nextCat    int
	nextTag    int

	logger *zap.Logger
}

// NewStore 创建空 Store
func NewStore(cfg Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = DefaultConfig().MaxContentLength
	}
	if cfg.DefaultAuthor == "" {
		cfg.DefaultAuthor = DefaultConfig().DefaultAuthor
	}
	return &Store{
		cfg:        cfg,
		now:        time.Now,
		suffix:     func() string { return uuid.NewString()[:8] },
		posts:      make(map[int]*Post),
		comments:   make(map[int][]*Comment),
		categories: make(map[int]*Category),
		tags:       make(map[int]*Tag),
		nextPost:   1,
		nextCmt:    1,
		nextCat:    1,
		nextTag:    1,
		logger:     logger.With(zap.String("component", "blog_store")),
	}
}

func postNotFound() *types.Error { return types.NewNotFoundError("Blog post not found") }

// =============================================================================
// 文章
// =============================================================================

// CreatePost 创建文章；slug 由标题加 8 位随机后缀生成，冲突时追加 -1、-2…
func (s *Store) CreatePost(in PostCreate) (*Post, error) {
	title, err := cleanTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if err := security.ValidateLength("Content", in.Content, 1, s.cfg.MaxContentLength); err != nil {
		return nil, err
	}
	if in.Slug != "" {
		if err := security.ValidateSlug(in.Slug); err != nil {
			return nil, err
		}
	}
	if err := validateMeta(in.Excerpt, in.MetaTitle, in.MetaDescription, in.ReadTime); err != nil {
		return nil, err
	}

	content := StripDangerousTags(in.Content)
	now := s.now().UTC()
	p := &Post{
		Title:           title,
		Excerpt:         security.SanitizeInput(in.Excerpt, 500),
		Content:         content,
		ContentHTML:     RenderMarkdown(content),
		Published:       in.Published,
		Featured:        in.Featured,
		Tags:            security.SanitizeInput(in.Tags, 500),
		Category:        security.SanitizeInput(in.Category, 100),
		ReadTime:        in.ReadTime,
		MetaTitle:       security.SanitizeInput(in.MetaTitle, 255),
		MetaDescription: security.SanitizeInput(in.MetaDescription, 500),
		MetaKeywords:    security.SanitizeInput(in.MetaKeywords, 500),
		Author:          in.Author,
		AuthorEmail:     in.AuthorEmail,
		AgentID:         in.AgentID,
		AgentType:       in.AgentType,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if p.Excerpt == "" {
		p.Excerpt = Excerpt(content)
	}
	if p.ReadTime == 0 {
		p.ReadTime = ReadTime(content)
	}
	if p.Author == "" {
		p.Author, p.AuthorEmail = s.cfg.DefaultAuthor, s.cfg.DefaultAuthorEmail
	}
	if p.Published {
		p.PublishedAt = &now
	}

	base := in.Slug
	if base == "" {
		base = Slugify(title)
		if base == "" {
			base = "post"
		}
		base += "-" + s.suffix()
	}

	s.mu.Lock()
	p.Slug = s.uniqueSlugLocked(base)
	p.ID = s.nextPost
	s.nextPost++
	s.posts[p.ID] = p
	out := *p
	s.mu.Unlock()

	s.logger.Info("blog post created", zap.Int("id", out.ID), zap.String("slug", out.Slug))
	return &out, nil
}

// cleanTitle 校验原始长度后去掉标签
func cleanTitle(raw string) (string, error) {
	if err := security.ValidateLength("Title", raw, 1, 255); err != nil {
		return "", err
	}
	title := security.SanitizeInput(raw, 255)
	if title == "" {
		return "", types.NewValidationError("Title is required")
	}
	return title, nil
}

func (s *Store) uniqueSlugLocked(base string) string {
	taken := make(map[string]bool, len(s.posts))
	for _, p := range s.posts {
		taken[p.Slug] = true
	}
	slug := base
	for n := 1; taken[slug]; n++ {
		slug = fmt.Sprintf("%s-%d", base, n)
	}
	return slug
}

func validateMeta(excerpt, metaTitle, metaDescription string, readTime int) error {
	if err := security.ValidateLength("Excerpt", excerpt, 0, 500); err != nil {
		return err
	}
	if err := security.ValidateLength("Meta title", metaTitle, 0, 255); err != nil {
		return err
	}
	if err := security.ValidateLength("Meta description", metaDescription, 0, 500); err != nil {
		return err
	}
	if readTime < 0 {
		return types.NewValidationError("Read time must be at least 1")
	}
	return nil
}

// ListPosts 过滤、排序并分页
func (s *Store) ListPosts(q ListQuery) (*Page, error) {
	if err := validateQuery(&q, 100); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := make([]Post, 0, len(s.posts))
	for _, p := range s.posts {
		if q.matches(p) {
			matched = append(matched, *p)
		}
	}
	s.mu.RUnlock()

	sortPosts(matched, q.SortBy, q.SortOrder == "desc")

	total := len(matched)
	page := &Page{
		Blogs:      []Post{},
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: (total + q.PageSize - 1) / q.PageSize,
	}
	start := (q.Page - 1) * q.PageSize
	if start < total {
		end := min(start+q.PageSize, total)
		page.Blogs = matched[start:end]
	}
	return page, nil
}

func validateQuery(q *ListQuery, maxPageSize int) error {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 10
	}
	if q.SortBy == "" {
		q.SortBy = SortCreatedAt
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
	switch {
	case q.Page < 1:
		return types.NewValidationError("page must be >= 1")
	case q.PageSize < 1 || q.PageSize > maxPageSize:
		return types.NewValidationError(fmt.Sprintf("pageSize must be between 1 and %d", maxPageSize))
	case q.SortOrder != "asc" && q.SortOrder != "desc":
		return types.NewValidationError("sortOrder must be asc or desc")
	}
	switch q.SortBy {
	case SortCreatedAt, SortUpdatedAt, SortPublishedAt, SortViews, SortLikes, SortTitle:
		return nil
	default:
		return types.NewValidationError("unsupported sortBy: " + q.SortBy)
	}
}

func (q ListQuery) matches(p *Post) bool {
	if q.Published != nil && p.Published != *q.Published {
		return false
	}
	if q.Featured != nil && p.Featured != *q.Featured {
		return false
	}
	if q.Q != "" {
		text := strings.ToLower(p.Title + " " + p.Excerpt + " " + p.Content)
		if !strings.Contains(text, strings.ToLower(q.Q)) {
			return false
		}
	}
	if q.Category != "" && p.Category != q.Category {
		return false
	}
	if q.Tags != "" && !strings.Contains(strings.ToLower(p.Tags), strings.ToLower(q.Tags)) {
		return false
	}
	if q.AgentType != "" && p.AgentType != q.AgentType {
		return false
	}
	return true
}

// sortPosts 稳定排序；键相同时按 ID 升序
func sortPosts(posts []Post, by string, desc bool) {
	less := func(a, b *Post) int {
		switch by {
		case SortTitle:
			return strings.Compare(a.Title, b.Title)
		case SortViews:
			return a.Views - b.Views
		case SortLikes:
			return a.Likes - b.Likes
		case SortUpdatedAt:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case SortPublishedAt:
			return publishedAt(a).Compare(publishedAt(b))
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(posts, func(i, j int) bool {
		c := less(&posts[i], &posts[j])
		if c == 0 {
			return posts[i].ID < posts[j].ID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func publishedAt(p *Post) time.Time {
	if p.PublishedAt == nil {
		return time.Time{}
	}
	return *p.PublishedAt
}

// Search 全文检索已发布文章；q 必填，pageSize 最大 50
func (s *Store) Search(q string, page, pageSize int) (*Page, error) {
	if strings.TrimSpace(q) == "" {
		return nil, types.NewValidationError("Search query is required")
	}
	query := DefaultListQuery()
	query.Q = q
	if page != 0 {
		query.Page = page
	}
	if pageSize != 0 {
		query.PageSize = pageSize
	}
	if err := validateQuery(&query, 50); err != nil {
		return nil, err
	}
	return s.ListPosts(query)
}

// GetBySlug 返回文章并增加浏览数
func (s *Store) GetBySlug(slug string) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.posts {
		if p.Slug == slug {
			p.Views++
			out := *p
			return &out, nil
		}
	}
	return nil, postNotFound()
}

// GetByID 返回文章（不计浏览）
func (s *Store) GetByID(id int) (*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, postNotFound()
	}
	out := *p
	return &out, nil
}

// UpdatePost 部分更新；内容变化且未给出摘要/阅读时间时重新计算
func (s *Store) UpdatePost(id int, in PostUpdate) (*Post, error) {
	var title string
	if in.Title != nil {
		var err error
		if title, err = cleanTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Content != nil {
		if err := security.ValidateLength("Content", *in.Content, 1, s.cfg.MaxContentLength); err != nil {
			return nil, err
		}
	}
	var excerpt, metaTitle, metaDesc string
	readTime := 0
	if in.Excerpt != nil {
		excerpt = *in.Excerpt
	}
	if in.MetaTitle != nil {
		metaTitle = *in.MetaTitle
	}
	if in.MetaDescription != nil {
		metaDesc = *in.MetaDescription
	}
	if in.ReadTime != nil {
		if *in.ReadTime < 1 {
			return nil, types.NewValidationError("Read time must be at least 1")
		}
		readTime = *in.ReadTime
	}
	if err := validateMeta(excerpt, metaTitle, metaDesc, readTime); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, postNotFound()
	}
	now := s.now().UTC()

	if in.Title != nil {
		p.Title = title
	}
	if in.Content != nil {
		p.Content = StripDangerousTags(*in.Content)
		p.ContentHTML = RenderMarkdown(p.Content)
		if in.Excerpt == nil {
			p.Excerpt = Excerpt(p.Content)
		}
		if in.ReadTime == nil {
			p.ReadTime = ReadTime(p.Content)
		}
	}
	if in.Excerpt != nil {
		p.Excerpt = security.SanitizeInput(*in.Excerpt, 500)
	}
	if in.ReadTime != nil {
		p.ReadTime = *in.ReadTime
	}
	setString(&p.Tags, in.Tags, 500)
	setString(&p.Category, in.Category, 100)
	setString(&p.MetaTitle, in.MetaTitle, 255)
	setString(&p.MetaDescription, in.MetaDescription, 500)
	setString(&p.MetaKeywords, in.MetaKeywords, 500)
	if in.Featured != nil {
		p.Featured = *in.Featured
	}
	if in.AgentID != nil {
		p.AgentID = in.AgentID
	}
	if in.AgentType != nil {
		p.AgentType = *in.AgentType
	}
	if in.Published != nil {
		p.Published = *in.Published
		switch {
		case p.Published && p.PublishedAt == nil:
			p.PublishedAt = &now
		case !p.Published:
			p.PublishedAt = nil
		}
	}
	p.UpdatedAt = now

	out := *p
	return &out, nil
}

func setString(dst *string, v *string, maxLen int) {
	if v != nil {
		*dst = security.SanitizeInput(*v, maxLen)
	}
}

// DeletePost 删除文章及其评论
func (s *Store) DeletePost(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return postNotFound()
	}
	delete(s.posts, id)
	delete(s.comments, id)
	s.logger.Info("blog post deleted", zap.Int("id", id))
	return nil
}

// LikePost 点赞并返回最新点赞数
func (s *Store) LikePost(id int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return 0, postNotFound()
	}
	p.Likes++
	return p.Likes, nil
}

// RecentPublished 按发布时间倒序返回最多 n 篇已发布文章
func (s *Store) RecentPublished(n int) []Post {
	s.mu.RLock()
	out := make([]Post, 0, len(s.posts))
	for _, p := range s.posts {
		if p.Published {
			out = append(out, *p)
		}
	}
	s.mu.RUnlock()

	sortPosts(out, SortPublishedAt, true)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Stats 返回统计数据
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		TotalBlogs:      len(s.posts),
		CategoriesCount: len(s.categories),
		TagsCount:       len(s.tags),
	}
	for _, p := range s.posts {
		if p.Published {
			st.PublishedBlogs++
		}
		if p.Featured {
			st.FeaturedBlogs++
		}
		st.TotalViews += p.Views
		st.TotalLikes += p.Likes
	}
	st.DraftBlogs = st.TotalBlogs - st.PublishedBlogs
	return st
}

// =============================================================================
// 评论
// =============================================================================

// ListComments 返回已审核的评论
func (s *Store) ListComments(postID int) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.posts[postID]; !ok {
		return nil, postNotFound()
	}
	out := []Comment{}
	for _, c := range s.comments[postID] {
		if c.Approved {
			out = append(out, *c)
		}
	}
	return out, nil
}

// CreateComment 创建待审核评论
func (s *Store) CreateComment(postID int, in CommentCreate) (*Comment, error) {
	content := security.SanitizeInput(in.Content, 0)
	author := security.SanitizeInput(in.Author, 0)
	if err := security.ValidateLength("Content", content, 1, 1000); err != nil {
		return nil, err
	}
	if err := security.ValidateLength("Author", author, 1, 100); err != nil {
		return nil, err
	}
	if in.Email != "" {
		if err := security.ValidateEmail(in.Email); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[postID]; !ok {
		return nil, postNotFound()
	}
	now := s.now().UTC()
	c := &Comment{
		ID:        s.nextCmt,
		Content:   content,
		Author:    author,
		Email:     in.Email,
		BlogID:    postID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nextCmt++
	s.comments[postID] = append(s.comments[postID], c)
	out := *c
	return &out, nil
}

// ApproveComment 审核通过一条评论
func (s *Store) ApproveComment(postID, commentID int) (*Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[postID]; !ok {
		return nil, postNotFound()
	}
	for _, c := range s.comments[postID] {
		if c.ID == commentID {
			c.Approved = true
			c.UpdatedAt = s.now().UTC()
			out := *c
			return &out, nil
		}
	}
	return nil, types.NewNotFoundError("Comment not found")
}

// =============================================================================
// 分类与标签
// =============================================================================

// ListCategories 按 ID 返回所有分类
func (s *Store) ListCategories() []Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateCategory 创建分类；名称与 slug 唯一
func (s *Store) CreateCategory(in CategoryCreate) (*Category, error) {
	name := security.SanitizeInput(in.Name, 0)
	if err := security.ValidateLength("Name", name, 1, 100); err != nil {
		return nil, err
	}
	if err := security.ValidateLength("Description", in.Description, 0, 500); err != nil {
		return nil, err
	}
	if err := security.ValidateHexColor(in.Color); err != nil {
		return nil, err
	}
	slug, err := slugFor(in.Slug, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, name) || c.Slug == slug {
			return nil, types.NewConflictError("Category already exists")
		}
	}
	now := s.now().UTC()
	c := &Category{
		ID:          s.nextCat,
		Name:        name,
		Slug:        slug,
		Description: security.SanitizeInput(in.Description, 500),
		Color:       in.Color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextCat++
	s.categories[c.ID] = c
	out := *c
	return &out, nil
}

// ListTags 按 ID 返回所有标签
func (s *Store) ListTags() []Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateTag 创建标签；名称与 slug 唯一
func (s *Store) CreateTag(in TagCreate) (*Tag, error) {
	name := security.SanitizeInput(in.Name, 0)
	if err := security.ValidateLength("Name", name, 1, 50); err != nil {
		return nil, err
	}
	if err := security.ValidateHexColor(in.Color); err != nil {
		return nil, err
	}
	slug, err := slugFor(in.Slug, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tags {
		if strings.EqualFold(t.Name, name) || t.Slug == slug {
			return nil, types.NewConflictError("Tag already exists")
		}
	}
	now := s.now().UTC()
	t := &Tag{ID: s.nextTag, Name: name, Slug: slug, Color: in.Color, CreatedAt: now, UpdatedAt: now}
	s.nextTag++
	s.tags[t.ID] = t
	out := *t
	return &out, nil
}

func slugFor(given, name string) (string, error) {
	if given != "" {
		return given, security.ValidateSlug(given)
	}
	slug := Slugify(name)
	if slug == "" {
		return "", types.NewValidationError("Name must contain letters or digits")
	}
	return slug, nil
}
