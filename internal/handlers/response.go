package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qiwenmao/coatlab-backend/internal/bizcode"
)

// Envelope is the wire shape of every response: code 0 means success, any
// other value is a business failure. Business failures ride on HTTP 200; the
// transport status is reserved for malformed transport, not domain outcomes.
type Envelope struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

func RespondData(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Code: bizcode.OK, Data: data})
}

func RespondOK(c *gin.Context) {
	c.JSON(http.StatusOK, Envelope{Code: bizcode.OK})
}

// RespondErr maps a service error onto the envelope. Non-bizcode errors
// collapse to the generic service error code with the message passed through.
func RespondErr(c *gin.Context, err error) {
	code := bizcode.CodeOf(err)
	msg := bizcode.Message(code)
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	c.JSON(http.StatusOK, Envelope{Code: code, Msg: msg})
}
