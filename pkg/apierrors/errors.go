package apierrors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/logger"
)

const refBase = "https://github.com/open-zaak/open-zaak/ref/fouten/"

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnauthorized     = errors.New("not authenticated")
	ErrConflict         = errors.New("conflict")
)

// ValidationError is a user input error rendered as one entry of invalidParams.
type ValidationError struct {
	Name   string `json:"name"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Name, e.Code, e.Reason)
}

// New returns a validation error without a field name. Serializers attach the name with Field.
func New(code, reason string) *ValidationError {
	return &ValidationError{Code: code, Reason: reason}
}

// NonField is used for errors that concern the object as a whole.
func NonField(code, reason string) *ValidationError {
	return &ValidationError{Name: "nonFieldErrors", Code: code, Reason: reason}
}

// Field attaches a field name to every validation error contained in err.
// Nested names are joined with a dot (relevanteAndereZaken.0.url style).
func Field(name string, err error) error {
	if err == nil {
		return nil
	}
	params := InvalidParams(err)
	if len(params) == 0 {
		return err
	}
	var result *multierror.Error
	for _, p := range params {
		n := name
		if p.Name != "" && p.Name != "nonFieldErrors" {
			n = name + "." + p.Name
		}
		result = multierror.Append(result, &ValidationError{Name: n, Code: p.Code, Reason: p.Reason})
	}
	return result.ErrorOrNil()
}

// IsValidation reports whether err carries at least one validation error and nothing else.
func IsValidation(err error) bool {
	return err != nil && len(InvalidParams(err)) > 0
}

// InvalidParams flattens validation errors from plain, multierror and ozzo values.
// Errors that are not input errors are dropped.
func InvalidParams(err error) []*ValidationError {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		out := []*ValidationError{}
		for _, e := range merr.Errors {
			out = append(out, InvalidParams(e)...)
		}
		return out
	}
	var oerrs validation.Errors
	if errors.As(err, &oerrs) {
		keys := make([]string, 0, len(oerrs))
		for k := range oerrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := []*ValidationError{}
		for _, k := range keys {
			for _, p := range InvalidParams(oerrs[k]) {
				name := k
				if p.Name != "" {
					name = k + "." + p.Name
				}
				out = append(out, &ValidationError{Name: name, Code: p.Code, Reason: p.Reason})
			}
		}
		return out
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return []*ValidationError{verr}
	}
	var oerr validation.Error
	if errors.As(err, &oerr) {
		return []*ValidationError{{Code: ozzoCode(oerr.Code()), Reason: oerr.Error()}}
	}
	return nil
}

func ozzoCode(code string) string {
	switch code {
	case "validation_required", "validation_nil_or_not_empty_required":
		return "required"
	case "validation_length_too_long", "validation_length_out_of_range":
		return "max_length"
	case "validation_match_invalid", "validation_date_invalid", "validation_in_invalid", "validation_length_invalid":
		return "invalid"
	}
	return strings.TrimPrefix(code, "validation_")
}

// Problem is the ZGW error body.
type Problem struct {
	Type          string             `json:"type"`
	Code          string             `json:"code"`
	Title         string             `json:"title"`
	Status        int                `json:"status"`
	Detail        string             `json:"detail"`
	Instance      string             `json:"instance"`
	InvalidParams []*ValidationError `json:"invalidParams,omitempty"`
}

func newProblem(status int, kind, code, title, detail string) Problem {
	return Problem{
		Type:     refBase + kind + "/",
		Code:     code,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: "urn:uuid:" + uuid.NewString(),
	}
}

// Respond renders err as a ZGW problem response.
func Respond(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, newProblem(http.StatusNotFound, "NotFound", "not_found", "Niet gevonden.", err.Error()))
	case errors.Is(err, ErrUnauthorized):
		c.AbortWithStatusJSON(http.StatusUnauthorized, newProblem(http.StatusUnauthorized, "NotAuthenticated", "not_authenticated", "Authenticatiegegevens zijn niet opgegeven.", err.Error()))
	case errors.Is(err, ErrPermissionDenied):
		c.AbortWithStatusJSON(http.StatusForbidden, newProblem(http.StatusForbidden, "PermissionDenied", "permission_denied", "Je hebt geen toestemming om deze actie uit te voeren.", err.Error()))
	case errors.Is(err, ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, newProblem(http.StatusConflict, "Conflict", "conflict", "De bewerking conflicteert met een gelijktijdige wijziging.", err.Error()))
	case IsValidation(err):
		p := newProblem(http.StatusBadRequest, "ValidationError", "invalid", "Invalid input.", "")
		p.InvalidParams = InvalidParams(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, p)
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, newProblem(http.StatusInternalServerError, "APIException", "error", "Er is een serverfout opgetreden.", ""))
	}
}
