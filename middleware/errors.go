package middleware

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"

	"go-tours/repositories"
	"go-tours/services"
	"go-tours/utils"

	"go.mongodb.org/mongo-driver/mongo"
)

const genericMessage = "Something went very wrong!"

// Handler is an HTTP handler that reports failures by returning them.
type Handler func(w http.ResponseWriter, r *http.Request) error

// ErrorPage renders failures of non-API requests as HTML.
type ErrorPage interface {
	RenderError(w http.ResponseWriter, status int, message string)
}

// ErrorHandler turns errors returned by handlers into responses. Production
// hides everything that is not operational.
type ErrorHandler struct {
	Production bool
	Pages      ErrorPage
}

// Wrap adapts h to http.Handler.
func (eh *ErrorHandler) Wrap(h Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			eh.Respond(w, r, err)
		}
	})
}

// Respond writes the error response for err.
func (eh *ErrorHandler) Respond(w http.ResponseWriter, r *http.Request, err error) {
	appErr := Translate(err)
	if !appErr.Operational {
		log.Printf("ERROR %s %s: %+v", r.Method, r.URL.Path, err)
	}

	if !strings.HasPrefix(r.URL.Path, "/api") && eh.Pages != nil {
		msg := appErr.Message
		if eh.Production && !appErr.Operational {
			msg = "Please try again later."
		}
		eh.Pages.RenderError(w, appErr.StatusCode, msg)
		return
	}

	if eh.Production {
		if !appErr.Operational {
			utils.RespondJSON(w, http.StatusInternalServerError, map[string]string{
				"status":  "error",
				"message": genericMessage,
			})
			return
		}
		utils.RespondJSON(w, appErr.StatusCode, map[string]string{
			"status":  appErr.Status,
			"message": appErr.Message,
		})
		return
	}

	utils.RespondJSON(w, appErr.StatusCode, map[string]interface{}{
		"status":  appErr.Status,
		"message": appErr.Message,
		"error":   err.Error(),
		"stack":   fmt.Sprintf("%+v", err),
	})
}

var dupValue = regexp.MustCompile(`dup key: \{ [^:]+: (.+?) \}`)

// Translate maps err onto an AppError. Errors that are not recognized come
// back as non-operational 500s carrying the original message.
func Translate(err error) *utils.AppError {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var castErr *utils.CastError
	if errors.As(err, &castErr) {
		return utils.BadRequest(castErr.Error())
	}
	var valErr *utils.ValidationError
	if errors.As(err, &valErr) {
		return utils.BadRequest(valErr.Error())
	}
	switch {
	case mongo.IsDuplicateKeyError(err):
		return utils.BadRequest(fmt.Sprintf("Duplicate field value: %s. Please use another value!", duplicateValue(err)))
	case errors.Is(err, utils.ErrInvalidToken):
		return utils.Unauthorized(services.MsgInvalidToken)
	case errors.Is(err, utils.ErrExpiredToken):
		return utils.Unauthorized(services.MsgExpiredToken)
	case errors.Is(err, utils.ErrBadBody):
		return utils.BadRequest("Invalid request body")
	case errors.Is(err, utils.ErrBodyTooLarge):
		return utils.NewAppError("Request body too large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, repositories.ErrNotFound):
		return utils.NotFound("No document found with that ID")
	}
	return &utils.AppError{
		StatusCode: http.StatusInternalServerError,
		Status:     "error",
		Message:    err.Error(),
	}
}

func duplicateValue(err error) string {
	if m := dupValue.FindStringSubmatch(err.Error()); m != nil {
		return m[1]
	}
	return "value"
}

// NotFoundHandler answers unmatched routes.
func (eh *ErrorHandler) NotFoundHandler() http.Handler {
	return eh.Wrap(func(w http.ResponseWriter, r *http.Request) error {
		return utils.NotFound(fmt.Sprintf("Can't find %s on this server!", r.URL.RequestURI()))
	})
}
