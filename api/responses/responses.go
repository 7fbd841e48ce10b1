package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
	"github.com/angelmondragon/catalog-backend/pkg/types"
)

// encodeFailures catches envelopes that could not be serialized after the
// status line went out; no request logger is in scope by then.
var encodeFailures = zerolog.New(os.Stderr).With().Timestamp().Str("component", "responses").Logger()

func WriteSuccess(w http.ResponseWriter, msg string, data any) {
	WriteSuccessStatus(w, http.StatusOK, msg, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, types.Envelope{Success: true, Msg: msg, Data: data})
}

// WriteCreated answers 201 and points Location at the new resource when it
// has a canonical read route.
func WriteCreated(w http.ResponseWriter, location, msg string, data any) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	WriteSuccessStatus(w, http.StatusCreated, msg, data)
}

// WriteError renders err as an error envelope. Messages of internal and
// dependency failures never reach the client; the full chain is logged.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	envelope := types.Envelope{
		Msg:   typed.PublicMessage(),
		Error: &types.Error{Code: string(typed.Code())},
	}
	if meta.DetailsAllowed {
		envelope.Error.Details = typed.Details()
	}

	logRejection(ctx, logg, err, meta.HTTPStatus)
	writeJSON(w, meta.HTTPStatus, envelope)
}

func logRejection(ctx context.Context, logg *logger.Logger, err error, status int) {
	if logg == nil {
		return
	}
	dump := pkgerrors.Dump(err)
	fields := map[string]any{
		"error":       dump.TopMessage,
		"error_code":  dump.Code,
		"error_chain": dump.Chain,
		"status":      status,
	}
	if dump.PGCode != "" {
		fields["pg_code"] = dump.PGCode
		fields["pg_constraint"] = dump.PGConstraint
		fields["pg_table"] = dump.PGTable
		fields["pg_column"] = dump.PGColumn
		fields["pg_detail"] = dump.PGDetail
		fields["pg_message"] = dump.PGMessage
	}
	ctx = logg.WithFields(ctx, fields)

	if status >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
		return
	}
	logg.Warn(ctx, "request.rejected")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		encodeFailures.Error().Err(err).Int("status", status).Msg("response.encode_failed")
	}
}
