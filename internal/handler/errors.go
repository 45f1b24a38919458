package handler

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/Duell10111/artemis-exam-agent/internal/client"
	"github.com/Duell10111/artemis-exam-agent/internal/response"
	"github.com/Duell10111/artemis-exam-agent/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// errorCode maps a service or port error to the bridge error code.
func errorCode(err error) response.ErrCode {
	var statusErr *client.StatusError
	var urlErr *url.Error
	switch {
	case errors.Is(err, service.ErrParticipationNotFound):
		return response.ErrParticipationNotFound
	case errors.Is(err, service.ErrExamNotLoaded):
		return response.ErrExamNotLoaded
	case errors.Is(err, client.ErrNoSubmission):
		return response.ErrNoSubmission
	case errors.Is(err, client.ErrUnsupportedExerciseType):
		return response.ErrUnsupportedExerciseType
	case errors.As(err, &statusErr), errors.As(err, &urlErr), errors.Is(err, context.DeadlineExceeded):
		return response.ErrUpstreamUnavailable
	default:
		return response.ErrInternal
	}
}

func failWithError(c *gin.Context, log zerolog.Logger, err error) {
	code := errorCode(err)
	if code == response.ErrInternal || code == response.ErrUpstreamUnavailable {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.FailCode(c, code)
}

// participationID parses the :participation_id path parameter.
func participationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("participation_id"), 10, 64)
	if err != nil || id <= 0 {
		response.FailCode(c, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
