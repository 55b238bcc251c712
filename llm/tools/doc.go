/*
Package tools 提供 Agent 使用的工具注册表、并发执行器与内置工具。

内置工具：六个算术工具、search_web（Google Custom Search）、get_weather
（Nominatim + Open-Meteo）、get_latest_news（RSS/Atom）、fetch_web_content、
get_current_datetime、read_pdf 与 search_papers（arXiv）。外部服务失败时
这些工具返回面向用户的说明文本而不是错误，便于模型继续回答。
*/
package tools
