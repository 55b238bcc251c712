package blog

import "time"

// Post 博客文章
type Post struct {
	ID              int        `json:"id"`
	Title           string     `json:"title"`
	Slug            string     `json:"slug"`
	Excerpt         string     `json:"excerpt"`
	Content         string     `json:"content"`
	ContentHTML     string     `json:"contentHtml"`
	Published       bool       `json:"published"`
	Featured        bool       `json:"featured"`
	Tags            string     `json:"tags"`
	Category        string     `json:"category"`
	ReadTime        int        `json:"readTime"`
	Views           int        `json:"views"`
	Likes           int        `json:"likes"`
	MetaTitle       string     `json:"metaTitle,omitempty"`
	MetaDescription string     `json:"metaDescription,omitempty"`
	MetaKeywords    string     `json:"metaKeywords,omitempty"`
	Author          string     `json:"author"`
	AuthorEmail     string     `json:"authorEmail,omitempty"`
	AgentID         *int       `json:"agentId"`
	AgentType       string     `json:"agentType,omitempty"`
	PublishedAt     *time.Time `json:"publishedAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// PostCreate 创建文章的参数；Slug、Excerpt、ReadTime 为空时自动生成
type PostCreate struct {
	Title           string `json:"title"`
	Slug            string `json:"slug,omitempty"`
	Excerpt         string `json:"excerpt,omitempty"`
	Content         string `json:"content"`
	Tags            string `json:"tags,omitempty"`
	Category        string `json:"category,omitempty"`
	ReadTime        int    `json:"readTime,omitempty"`
	Published       bool   `json:"published"`
	Featured        bool   `json:"featured"`
	MetaTitle       string `json:"metaTitle,omitempty"`
	MetaDescription string `json:"metaDescription,omitempty"`
	MetaKeywords    string `json:"metaKeywords,omitempty"`
	AgentID         *int   `json:"agentId,omitempty"`
	AgentType       string `json:"agentType,omitempty"`
	Author          string `json:"-"`
	AuthorEmail     string `json:"-"`
}

// PostUpdate 部分更新；nil 字段保持不变
type PostUpdate struct {
	Title           *string `json:"title,omitempty"`
	Excerpt         *string `json:"excerpt,omitempty"`
	Content         *string `json:"content,omitempty"`
	Tags            *string `json:"tags,omitempty"`
	Category        *string `json:"category,omitempty"`
	ReadTime        *int    `json:"readTime,omitempty"`
	Published       *bool   `json:"published,omitempty"`
	Featured        *bool   `json:"featured,omitempty"`
	MetaTitle       *string `json:"metaTitle,omitempty"`
	MetaDescription *string `json:"metaDescription,omitempty"`
	MetaKeywords    *string `json:"metaKeywords,omitempty"`
	AgentID         *int    `json:"agentId,omitempty"`
	AgentType       *string `json:"agentType,omitempty"`
}

// Comment 文章评论；新评论需要审核后才会出现在列表中
type Comment struct {
	ID        int       `json:"id"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Email     string    `json:"email,omitempty"`
	Approved  bool      `json:"approved"`
	BlogID    int       `json:"blogId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CommentCreate 创建评论的参数
type CommentCreate struct {
	Content string `json:"content"`
	Author  string `json:"author"`
	Email   string `json:"email,omitempty"`
}

// Category 文章分类
type Category struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CategoryCreate 创建分类的参数
type CategoryCreate struct {
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// Tag 标签
type Tag struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TagCreate 创建标签的参数
type TagCreate struct {
	Name  string `json:"name"`
	Slug  string `json:"slug,omitempty"`
	Color string `json:"color,omitempty"`
}

// Stats 博客统计
type Stats struct {
	TotalBlogs      int `json:"totalBlogs"`
	PublishedBlogs  int `json:"publishedBlogs"`
	DraftBlogs      int `json:"draftBlogs"`
	FeaturedBlogs   int `json:"featuredBlogs"`
	TotalViews      int `json:"totalViews"`
	TotalLikes      int `json:"totalLikes"`
	CategoriesCount int `json:"categoriesCount"`
	TagsCount       int `json:"tagsCount"`
}

// 排序字段
const (
	SortCreatedAt   = "createdAt"
	SortUpdatedAt   = "updatedAt"
	SortPublishedAt = "publishedAt"
	SortViews       = "views"
	SortLikes       = "likes"
	SortTitle       = "title"
)

// ListQuery 文章列表查询
type ListQuery struct {
	Q         string
	Category  string
	Tags      string
	AgentType string
	Published *bool // nil 表示不过滤
	Featured  *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string // asc / desc
}

// DefaultListQuery 第一页、每页 10 条、只看已发布、按创建时间倒序
func DefaultListQuery() ListQuery {
	published := true
	return ListQuery{
		Published: &published,
		Page:      1,
		PageSize:  10,
		SortBy:    SortCreatedAt,
		SortOrder: "desc",
	}
}

// Page 分页结果
type Page struct {
	Blogs      []Post `json:"blogs"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalPages int    `json:"totalPages"`
}
