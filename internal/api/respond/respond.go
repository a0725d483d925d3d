package respond

import (
	"encoding/base64"
	"net/http"

	"github.com/wb-go/wbf/ginext"
)

// Error represents a standard structure for error responses.
type Error struct {
	Error string `json:"error"`
}

// Status is the body of the health endpoint.
type Status struct {
	Status string `json:"status"`
}

// JSON sends a JSON response with the specified HTTP status code and data.
// It uses the Gin context to encode the data into JSON format.
func JSON(c *ginext.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// Encoded sends a 200 OK JSON response holding data as base64 text
// under the given field name.
func Encoded(c *ginext.Context, field string, data []byte) {
	JSON(c, http.StatusOK, map[string]string{
		field: base64.StdEncoding.EncodeToString(data),
	})
}

// Fail sends an error JSON response with the specified HTTP status code.
// The message is wrapped in an Error struct.
func Fail(c *ginext.Context, status int, message string) {
	JSON(c, status, Error{Error: message})
}
