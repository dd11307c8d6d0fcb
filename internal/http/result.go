package httpapi

// Result is the JSON envelope every endpoint answers with. Code is
// ResultSuccess on success, otherwise an error code; Type mirrors it as
// "success" or "error".
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
	// ResultTokenExpired is paired with HTTP 401.
	ResultTokenExpired = 60401

	typeSuccess = "success"
	typeError   = "error"
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: typeSuccess, Message: "ok", Result: result}
}

// Fail reports a business failure; the HTTP status stays 200.
func Fail(message string) Result[any] { return failure(ResultError, message) }

func expired(message string) Result[any] { return failure(ResultTokenExpired, message) }

func failure(code int, message string) Result[any] {
	return Result[any]{Code: code, Type: typeError, Message: message}
}
