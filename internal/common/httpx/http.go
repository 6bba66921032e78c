package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/apperrors"
)

// json sorts map keys so responses are byte-for-byte stable.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxRequestBody bounds JSON request bodies. Spreadsheet uploads use their own limit.
const maxRequestBody = 4 << 20

func GetRequestData(r *http.Request, data any) error {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return ErrReqMethodNotSupported()
	}
	if r.Body == nil || r.Body == http.NoBody {
		log.Ctx(r.Context()).Error().Msg("empty request body")
		return ErrUnableToParseReqData()
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(data); err != nil {
		log.Ctx(r.Context()).Debug().Err(err).Msg("unable to decode request body")
		return ErrUnableToParseReqData()
	}
	return nil
}

// ReadRequestBody returns the raw body, for handlers that inspect which fields were sent.
func ReadRequestBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, ErrUnableToParseReqData()
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return nil, ErrUnableToReadRequest()
	}
	if len(b) == 0 {
		return nil, ErrUnableToParseReqData()
	}
	return b, nil
}

type Response struct {
	StatusCode  int
	Location    string //in case of http.StatusCreated
	Response    any
	ContentType string
}

type RequestHandler func(r *http.Request) (*Response, error)

func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			ToHttpError(r.Context(), err).Send(w)
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		if rsp.ContentType == "" {
			rsp.ContentType = "application/json"
		}
		var location []string
		if rsp.Location != "" {
			location = append(location, rsp.Location)
		}
		if rsp.ContentType == "application/json" {
			SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response, location...)
		} else {
			ErrApplicationError("unsupported response type").Send(w)
		}
	})
}

// ToHttpError maps any error returned by a handler to the error sent on the wire.
func ToHttpError(ctx context.Context, err error) *Error {
	var httperror *Error
	if errors.As(err, &httperror) {
		return httperror
	}
	var appErr apperrors.Error
	if errors.As(err, &appErr) {
		statusCode := appErr.StatusCode()
		if statusCode == 0 {
			statusCode = http.StatusInternalServerError
		}
		if statusCode >= http.StatusInternalServerError {
			log.Ctx(ctx).Error().Err(err).Str("detail", appErr.ErrorAll()).Msg("request failed")
		}
		return &Error{
			StatusCode:  statusCode,
			Description: appErr.ErrorAll(),
		}
	}
	log.Ctx(ctx).Error().Err(err).Msg("unhandled error")
	return ErrApplicationError(err.Error())
}

func SendJsonRsp(ctx context.Context, w http.ResponseWriter, statusCode int, rsp any, location ...string) {
	if w == nil {
		return
	}
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	var body []byte
	if rsp != nil {
		var err error
		body, err = json.Marshal(rsp)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("unable to marshal response")
			ErrApplicationError().Send(w)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if len(location) > 0 && location[0] != "" {
		w.Header().Set("Location", location[0])
	}
	w.WriteHeader(statusCode)
	if body != nil {
		if _, err := w.Write(body); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("unable to write response")
		}
	}
}

type ResponseHandlerParam struct {
	Method  string
	Path    string
	Handler RequestHandler
}
