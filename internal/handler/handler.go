package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/agenda/internal/reminder"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		_, err := reminder.ParseDate(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := reminder.ParseClock(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, ok := reminder.ParseWeekday(fl.Field().String())
		return ok
	})
	return v
}

// decodeJSON reads the body into dst and runs struct validation. The returned
// error is safe to show to the client.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid JSON")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return validationMessage(verrs[0])
		}
		return err
	}
	return nil
}

func validationMessage(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "ymd":
		return fmt.Errorf("%s must be a YYYY-MM-DD date", fe.Field())
	case "clock":
		return fmt.Errorf("%s must be a HH:MM time", fe.Field())
	case "weekday":
		return fmt.Errorf("%s contains an unknown weekday", fe.Field())
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Errorf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}
