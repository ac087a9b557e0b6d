package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chatline-backend/internal/platform/apierr"
)

type APIError struct {
	Message   string   `json:"message"`
	Code      string   `json:"code,omitempty"`
	FailedIDs []string `json:"failedIds,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError maps a service-layer error onto the wire. Validation and
// not-found errors carry their message through; anything mapped to a 5xx gets
// a generic message so backend internals never leak to clients. Partial
// failures additionally name the object ids that were left behind.
func RespondAPIError(c *gin.Context, err error) {
	var pf *apierr.PartialFailure
	if errors.As(err, &pf) {
		c.JSON(http.StatusInternalServerError, ErrorEnvelope{
			Error: APIError{
				Message:   "operation partially failed",
				Code:      "partial_failure",
				FailedIDs: pf.FailedIDs,
			},
		})
		return
	}

	var ae *apierr.Error
	if errors.As(err, &ae) {
		if ae.Status >= 500 {
			c.JSON(ae.Status, ErrorEnvelope{
				Error: APIError{Message: "internal error", Code: ae.Code},
			})
			return
		}
		RespondError(c, ae.Status, ae.Code, ae.Err)
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorEnvelope{
		Error: APIError{Message: "internal error", Code: "internal_error"},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
