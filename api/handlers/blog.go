package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/BaSui01/agentlab/blog"
	"github.com/BaSui01/agentlab/types"
	"go.uber.org/zap"
)

// =============================================================================
// 📝 博客接口 Handler
// =============================================================================

// LikeResponse 点赞响应
type LikeResponse struct {
	Message string `json:"message"`
	Likes   int    `json:"likes"`
}

// BlogHandler 博客 CRUD、评论、分类、标签与 RSS
type BlogHandler struct {
	store   *blog.Store
	baseURL string
	logger  *zap.Logger
}

// NewBlogHandler 创建博客处理器；baseURL 用于 RSS 中的链接
func NewBlogHandler(store *blog.Store, baseURL string, logger *zap.Logger) *BlogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlogHandler{store: store, baseURL: baseURL, logger: logger}
}

// Routes 返回 "METHOD /path" 到处理函数的映射，路径以 /api/blog 为前缀
func (h *BlogHandler) Routes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"POST /api/blog/posts":                                  h.HandleCreatePost,
		"GET /api/blog/posts":                                   h.HandleListPosts,
		"GET /api/blog/posts/{slug}":                            h.HandleGetPost,
		"PUT /api/blog/posts/{id}":                              h.HandleUpdatePost,
		"DELETE /api/blog/posts/{id}":                           h.HandleDeletePost,
		"POST /api/blog/posts/{id}/like":                        h.HandleLikePost,
		"GET /api/blog/posts/{id}/comments":                     h.HandleListComments,
		"POST /api/blog/posts/{id}/comments":                    h.HandleCreateComment,
		"PUT /api/blog/posts/{id}/comments/{commentId}/approve": h.HandleApproveComment,
		"GET /api/blog/categories":                              h.HandleListCategories,
		"POST /api/blog/categories":                             h.HandleCreateCategory,
		"GET /api/blog/tags":                                    h.HandleListTags,
		"POST /api/blog/tags":                                   h.HandleCreateTag,
		"GET /api/blog/stats":                                   h.HandleStats,
		"GET /api/blog/search":                                  h.HandleSearch,
		"GET /api/blog/rss":                                     h.HandleRSS,
	}
}

// HandleCreatePost 创建文章；已登录时作者取当前用户名
// @Summary 创建文章
// @Tags blog
// @Accept json
// @Produce json
// @Param request body blog.PostCreate true "文章"
// @Success 201 {object} blog.Post
// @Failure 422 {object} Response
// @Router /api/blog/posts [post]
func (h *BlogHandler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	var in blog.PostCreate
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}
	if name, ok := types.Username(r.Context()); ok {
		in.Author = name
	}
	post, err := h.store.CreatePost(in)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	h.logger.Info("blog post created", zap.Int("id", post.ID), zap.String("slug", post.Slug))
	WriteJSON(w, http.StatusCreated, post)
}

// HandleListPosts 分页列出文章
// @Summary 文章列表
// @Tags blog
// @Produce json
// @Param q query string false "关键字"
// @Param category query string false "分类"
// @Param tags query string false "标签"
// @Param agentType query string false "Agent 类型"
// @Param published query bool false "是否已发布（默认 true）"
// @Param featured query bool false "是否精选"
// @Param page query int false "页码"
// @Param pageSize query int false "每页条数"
// @Param sortBy query string false "排序字段"
// @Param sortOrder query string false "asc / desc"
// @Success 200 {object} blog.Page
// @Router /api/blog/posts [get]
func (h *BlogHandler) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	page, err := h.store.ListPosts(q)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// HandleGetPost 按 slug 获取文章（增加浏览数）
func (h *BlogHandler) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.store.GetBySlug(r.PathValue("slug"))
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, post)
}

// HandleUpdatePost 部分更新文章
func (h *BlogHandler) HandleUpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.postID(w, r)
	if !ok {
		return
	}
	var in blog.PostUpdate
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}
	post, err := h.store.UpdatePost(id, in)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, post)
}

// HandleDeletePost 删除文章及其评论
func (h *BlogHandler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.postID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeletePost(id); err != nil {
		HandleError(w, err, h.logger)
		return
	}
	h.logger.Info("blog post deleted", zap.Int("id", id))
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Blog post deleted successfully"})
}

// HandleLikePost 点赞
func (h *BlogHandler) HandleLikePost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.postID(w, r)
	if !ok {
		return
	}
	likes, err := h.store.LikePost(id)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, LikeResponse{Message: "Blog post liked successfully", Likes: likes})
}

// HandleListComments 列出已审核的评论
func (h *BlogHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.postID(w, r)
	if !ok {
		return
	}
	comments, err := h.store.ListComments(id)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, comments)
}

// HandleCreateComment 提交评论（待审核）
func (h *BlogHandler) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.postID(w, r)
	if !ok {
		return
	}
	var in blog.CommentCreate
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}
	c, err := h.store.CreateComment(id, in)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, c)
}

// HandleApproveComment 审核通过评论
func (h *BlogHandler) HandleApproveComment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.postID(w, r)
	if !ok {
		return
	}
	commentID, ok := pathInt(r, "commentId")
	if !ok {
		WriteError(w, types.NewInvalidRequestError("invalid comment id"), h.logger)
		return
	}
	c, err := h.store.ApproveComment(id, commentID)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

// HandleListCategories 分类列表
func (h *BlogHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.store.ListCategories())
}

// HandleCreateCategory 创建分类
func (h *BlogHandler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in blog.CategoryCreate
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}
	c, err := h.store.CreateCategory(in)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, c)
}

// HandleListTags 标签列表
func (h *BlogHandler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.store.ListTags())
}

// HandleCreateTag 创建标签
func (h *BlogHandler) HandleCreateTag(w http.ResponseWriter, r *http.Request) {
	var in blog.TagCreate
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}
	t, err := h.store.CreateTag(in)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, t)
}

// HandleStats 博客统计
func (h *BlogHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.store.Stats())
}

// HandleSearch 检索已发布文章
// @Summary 搜索文章
// @Tags blog
// @Produce json
// @Param q query string true "关键字"
// @Param page query int false "页码"
// @Param pageSize query int false "每页条数（最大 50）"
// @Success 200 {object} blog.Page
// @Router /api/blog/search [get]
func (h *BlogHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	page, err := queryInt(values, "page")
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	pageSize, err := queryInt(values, "pageSize")
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	result, err := h.store.Search(values.Get("q"), page, pageSize)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// HandleRSS 输出 RSS 2.0
// @Summary RSS 订阅
// @Tags blog
// @Produce application/rss+xml
// @Router /api/blog/rss [get]
func (h *BlogHandler) HandleRSS(w http.ResponseWriter, r *http.Request) {
	feed, err := h.store.Feed(h.baseURL)
	if err != nil {
		HandleError(w, types.NewInternalError("failed to build feed").WithCause(err), h.logger)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(feed)
}

func (h *BlogHandler) postID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, ok := pathInt(r, "id")
	if !ok {
		WriteError(w, types.NewInvalidRequestError("invalid post id"), h.logger)
	}
	return id, ok
}

// parseListQuery 读取列表查询参数；缺省值由 blog.DefaultListQuery 提供
func parseListQuery(values url.Values) (blog.ListQuery, error) {
	q := blog.DefaultListQuery()
	q.Q = values.Get("q")
	q.Category = values.Get("category")
	q.Tags = values.Get("tags")
	q.AgentType = values.Get("agentType")
	if v := values.Get("sortBy"); v != "" {
		q.SortBy = v
	}
	if v := values.Get("sortOrder"); v != "" {
		q.SortOrder = v
	}

	var err error
	if q.Published, err = queryBool(values, "published", q.Published); err != nil {
		return q, err
	}
	if q.Featured, err = queryBool(values, "featured", nil); err != nil {
		return q, err
	}
	if v, err := queryInt(values, "page"); err != nil {
		return q, err
	} else if v != 0 {
		q.Page = v
	}
	if v, err := queryInt(values, "pageSize"); err != nil {
		return q, err
	} else if v != 0 {
		q.PageSize = v
	}
	return q, nil
}

// queryInt 缺省时返回 0
func queryInt(values url.Values, name string) (int, error) {
	raw := values.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, types.NewValidationError(name + " must be an integer")
	}
	if n < 1 {
		return 0, types.NewValidationError(name + " must be >= 1")
	}
	return n, nil
}

func queryBool(values url.Values, name string, def *bool) (*bool, error) {
	raw := values.Get(name)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, types.NewValidationError(name + " must be a boolean")
	}
	return &b, nil
}
