/*
包 auth 提供用户注册、登录与 JWT 访问令牌。

# 核心类型

  - HashPassword / VerifyPassword：bcrypt 口令散列。
  - TokenManager：签发与校验 HS256/HS384/HS512 访问令牌，
    校验时只接受配置的算法。
  - Service：Register、Authenticate、Login、CurrentUser。
  - UserStore：用户持久化接口，internal/database.UserStore 为 gorm 实现。
*/
package auth
