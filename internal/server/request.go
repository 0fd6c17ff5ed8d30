package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/wolfeidau/sopdesk/internal/auth"
	"github.com/wolfeidau/sopdesk/internal/entity"
	"github.com/wolfeidau/sopdesk/internal/store"
)

const maxBodyBytes = 1 << 20

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// bcrypt limits are in bytes, min and max count runes
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return auth.ValidPasswordLength(fl.Field().String())
	})
	return v
}

// decodeJSON reads the body into v and validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return withDetail(store.ErrValidation, "request body is required")
		}
		return withDetail(store.ErrValidation, "malformed request body: %s", err)
	}
	return s.validateStruct(v)
}

func (s *Server) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", store.ErrValidation, err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problem := fe.Field() + ": " + fe.Tag()
		if fe.Param() != "" {
			problem += "=" + fe.Param()
		}
		problems = append(problems, problem)
	}
	return withDetail(store.ErrValidation, "invalid request: %s", strings.Join(problems, ", "))
}

// listQuery parses skip, limit, query and value.
func listQuery(r *http.Request) (entity.ListOptions, error) {
	q := r.URL.Query()

	var opts entity.ListOptions
	var err error

	if opts.Page, err = intParam(q.Get("skip")); err != nil {
		return opts, withDetail(store.ErrValidation, "skip must be a non-negative integer")
	}
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		return opts, withDetail(store.ErrValidation, "limit must be a non-negative integer")
	}

	opts.Field = q.Get("query")
	opts.Query = q.Get("value")
	if opts.Field == "" && opts.Query != "" {
		return opts, withDetail(store.ErrValidation, "value requires query")
	}

	return opts, nil
}

func intParam(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative")
	}
	return n, nil
}

// loginForm reads OAuth2 password form fields.
func loginForm(r *http.Request) (username, password string, err error) {
	if err := r.ParseForm(); err != nil {
		return "", "", withDetail(store.ErrValidation, "malformed form body")
	}

	username = r.PostForm.Get("username")
	password = r.PostForm.Get("password")
	if username == "" || password == "" {
		return "", "", withDetail(store.ErrValidation, "username and password are required")
	}
	return username, password, nil
}
