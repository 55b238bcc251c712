// Package blog 实现博客的内存存储：文章、评论、分类与标签的 CRUD，
// 过滤/排序/分页查询、Markdown 渲染、RSS 输出以及启动时的示例数据。
package blog
