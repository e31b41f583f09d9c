package middlewares

import (
	t_token "marketplace_chat/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	//QueryToken token in query name, ws(s)://host/ws/chat/{room}/?token=
	QueryToken = "token"

	//CookieToken token in cookie name
	CookieToken = "auth_token"

	//TokenMemberID get member form token, set c.locals name
	TokenMemberID = "MemberID"
	//TokenRole get role form token, set c.locals name
	TokenRole = "role"
)

// JWTMiddleware validates JWT from query, cookie or Authorization header
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Query(QueryToken)

		// 查詢參數沒有 token, 嘗試 Cookie
		if tokenStr == "" {
			tokenStr = c.Cookies(CookieToken)
		}
		// 再嘗試 Authorization header
		if tokenStr == "" {
			tokenStr = c.Get(fiber.HeaderAuthorization)
		}

		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token",
			})
		}

		claims, err := t_token.ParseJWT(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(TokenMemberID, claims.MemberID)
		c.Locals(TokenRole, claims.Role)

		return c.Next()
	}
}

// MemberID read the member id stored by JWTMiddleware
func MemberID(c *fiber.Ctx) string {
	id, _ := c.Locals(TokenMemberID).(string)
	return id
}
