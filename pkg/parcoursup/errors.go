package parcoursup

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

// AuthenticationError is returned when the mobile token or login exchange fails,
// either because of a non-success status or a missing field/header in the response.
type AuthenticationError struct {
	Step   string
	Status int
	Reason string
	Msg    string
	Err    error
}

func (e *AuthenticationError) Error() string {
	return formatError("authentication failed", e.Step, e.Status, e.Reason, e.Msg, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// ProtocolError is returned when a page of the desktop portal does not have the
// structure the client depends on (onload redirect target, form, hop bound), or
// could not be fetched at all.
type ProtocolError struct {
	Url string
	Msg string
	Err error
}

func (e *ProtocolError) Error() string {
	return formatError("protocol error", e.Url, 0, "", e.Msg, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ClassificationError is returned when a raw wish record cannot be turned into a Wish.
type ClassificationError struct {
	WishId string
	Code   *int
	Msg    string
	Err    error
}

func (e *ClassificationError) Error() string {
	subject := e.WishId
	if e.Code != nil {
		subject = fmt.Sprintf("%s (situation %d)", e.WishId, *e.Code)
	}
	return formatError("classification failed", subject, 0, "", e.Msg, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// FetchError is returned when a wish listing, wish detail or results page request
// returns a non-success status or cannot be made.
type FetchError struct {
	Url    string
	Status int
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	return formatError("fetch failed", e.Url, e.Status, e.Reason, "", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func formatError(kind, subject string, status int, reason, msg string, cause error) string {
	var out strings.Builder
	out.WriteString("parcoursup: ")
	out.WriteString(kind)
	if subject != "" {
		fmt.Fprintf(&out, " [%s]", subject)
	}
	if status != 0 {
		fmt.Fprintf(&out, ": %d %s", status, reason)
	}
	if msg != "" {
		fmt.Fprintf(&out, ": %s", msg)
	}
	if cause != nil {
		fmt.Fprintf(&out, ": %s", cause.Error())
	}
	return out.String()
}

// statusReason extracts the reason phrase out of a response, "404 Not Found" -> "Not Found".
func statusReason(res *resty.Response) string {
	status := res.Status()
	_, reason, found := strings.Cut(status, " ")
	if found && reason != "" {
		return reason
	}
	return http.StatusText(res.StatusCode())
}

func IsAuthenticationError(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

func IsProtocolError(err error) bool {
	var target *ProtocolError
	return errors.As(err, &target)
}

func IsClassificationError(err error) bool {
	var target *ClassificationError
	return errors.As(err, &target)
}

func IsFetchError(err error) bool {
	var target *FetchError
	return errors.As(err, &target)
}
