// Copyright 2025-2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package sources 提供外部学术数据源适配器，当前实现 arXiv 论文检索。

# 核心接口/类型

  - ArxivSource — arXiv Atom API 客户端，带指数退避重试
  - ArxivPaper — 论文结构体（标题、摘要、作者、分类、PDF 链接等）
  - PaperSearcher — 论文检索接口，研究流水线与 search_papers 工具依赖它

# 主要能力

  - 按关键词检索（all:<query>），支持分类过滤、排序
  - 摘要与标题中的换行/多余空白统一折叠
  - 所有 HTTP 请求均使用 tlsutil.SecureHTTPClient
*/
package sources
