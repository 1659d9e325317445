package handler

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
)

// errNoUser signals that the request context carries no usable user id.
var errNoUser = errors.New("no authenticated user")

// getUserID extracts the authenticated user's id from the Echo
// context.  The JWTAuth middleware stores the raw "sub" claim, which
// arrives as a float64 from JSON decoding or occasionally as a string.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return 0, errNoUser
		}
		return uint64(t), nil
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		if err != nil || n == 0 {
			return 0, errNoUser
		}
		return n, nil
	default:
		return 0, errNoUser
	}
}
