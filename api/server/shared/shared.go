package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/gorilla/schema"
	"github.com/isafetyrobo/safety-agent/api/server/shared/apierrors"
	"github.com/isafetyrobo/safety-agent/internal/logger"
)

type ResultWriter interface {
	WriteResult(w http.ResponseWriter, r *http.Request, v interface{})
}

type DefaultResultWriter struct {
	logger *logger.Logger
}

func NewDefaultResultWriter(l *logger.Logger) ResultWriter {
	return &DefaultResultWriter{l}
}

func (j *DefaultResultWriter) WriteResult(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		apierrors.HandleAPIError(j.logger, w, r, apierrors.NewErrInternal(err), false)
	}
}

// Validator is implemented by request types that check their own fields
// after decoding.
type Validator interface {
	Validate() error
}

type RequestDecoderValidator interface {
	DecodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool
}

type DefaultRequestDecoderValidator struct {
	logger  *logger.Logger
	decoder *schema.Decoder
}

func NewDefaultRequestDecoderValidator(l *logger.Logger) RequestDecoderValidator {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	decoder.RegisterConverter(time.Time{}, convertTime)

	return &DefaultRequestDecoderValidator{l, decoder}
}

// DecodeAndValidate reads query parameters for GET and DELETE requests and a
// JSON body otherwise, then runs Validate if v has one. On failure it writes
// a 400 and returns false.
func (j *DefaultRequestDecoderValidator) DecodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	var err error

	switch r.Method {
	case http.MethodGet, http.MethodDelete:
		err = j.decoder.Decode(v, r.URL.Query())
	default:
		if r.Body != nil && r.ContentLength != 0 {
			err = json.NewDecoder(r.Body).Decode(v)

			if errors.Is(err, io.EOF) {
				err = nil
			}
		}
	}

	if err != nil {
		apierrors.HandleAPIError(j.logger, w, r, apierrors.NewErrPassThroughToClient(
			fmt.Errorf("could not decode request: %w", err),
			http.StatusBadRequest,
		), true)

		return false
	}

	if validator, ok := v.(Validator); ok {
		if err := validator.Validate(); err != nil {
			apierrors.HandleAPIError(j.logger, w, r, apierrors.NewErrPassThroughToClient(err, http.StatusBadRequest), true)

			return false
		}
	}

	return true
}

// convertTime accepts RFC 3339 timestamps and plain dates in query strings.
func convertTime(value string) reflect.Value {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return reflect.ValueOf(t)
		}
	}

	return reflect.Value{}
}
